package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
)

type ConversationStorage struct {
	mu            sync.Mutex
	conversations map[string][]model.Message
}

func NewConversationStorage() *ConversationStorage {
	return &ConversationStorage{
		conversations: make(map[string][]model.Message),
	}
}

func (c *ConversationStorage) GetConversation(_ context.Context, number string) (model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	messages, ok := c.conversations[number]
	if !ok {
		return model.Conversation{}, model.ErrConversationDoesNotExist
	}
	return model.Conversation{
		Number:   number,
		Messages: append([]model.Message(nil), messages...),
	}, nil
}

func (c *ConversationStorage) AddMessage(
	_ context.Context,
	number string,
	messageText string,
	messageSource model.MessageSource,
) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conversations[number] = append(
		c.conversations[number], model.Message{
			Source: messageSource,
			Body:   messageText,
		},
	)
	return nil
}

func (c *ConversationStorage) ListConversations(_ context.Context) ([]model.Conversation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	numbers := make([]string, 0, len(c.conversations))
	for number := range c.conversations {
		numbers = append(numbers, number)
	}
	sort.Strings(numbers)

	conversations := make([]model.Conversation, 0, len(numbers))
	for _, number := range numbers {
		conversations = append(
			conversations, model.Conversation{
				Number:   number,
				Messages: append([]model.Message(nil), c.conversations[number]...),
			},
		)
	}
	return conversations, nil
}
