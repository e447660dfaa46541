package key_value

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	"github.com/redis/go-redis/v9"
)

const convoKeyPrefix = "convo"

type messageInternal struct {
	Role    model.MessageSource `json:"role"`
	Content string              `json:"content"`
}

type conversationInternal struct {
	Content []messageInternal `json:"content"`
}

type ConversationStorage struct {
	rdb *redis.Client
}

func NewConversationStorage(rdb *redis.Client) *ConversationStorage {
	return &ConversationStorage{
		rdb: rdb,
	}
}

func (c *ConversationStorage) GetConversation(ctx context.Context, number string) (model.Conversation, error) {
	convoInt, err := c.getConversationInt(ctx, number)
	if err != nil {
		return model.Conversation{}, err
	}
	return convoFromInternal(number, convoInt), nil
}

// AddMessage appends one message to the sender's history, creating the
// conversation if it does not exist yet. The stored sequence only ever grows.
func (c *ConversationStorage) AddMessage(
	ctx context.Context,
	number string,
	messageText string,
	messageSource model.MessageSource,
) error {
	convoInt, err := c.getConversationInt(ctx, number)
	if err != nil {
		if !errors.Is(err, model.ErrConversationDoesNotExist) {
			return err
		}
		convoInt = conversationInternal{
			Content: make([]messageInternal, 0),
		}
	}
	convoInt.Content = append(
		convoInt.Content, messageInternal{
			Role:    messageSource,
			Content: messageText,
		},
	)
	if err = c.setConversationInt(ctx, number, convoInt); err != nil {
		return fmt.Errorf("failed to set internal conversation %s: %w", number, err)
	}
	return nil
}

// ListConversations scans every stored conversation for the admin dump.
func (c *ConversationStorage) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	conversations := make([]model.Conversation, 0)
	iter := c.rdb.Scan(ctx, 0, convoKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		number := strings.TrimPrefix(key, convoKeyPrefix)
		convoInt, err := c.getConversationInt(ctx, number)
		if err != nil {
			return nil, fmt.Errorf("failed to get conversation %s: %w", number, err)
		}
		conversations = append(conversations, convoFromInternal(number, convoInt))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan conversations: %w", err)
	}
	return conversations, nil
}

func (c *ConversationStorage) getConversationInt(ctx context.Context, number string) (conversationInternal, error) {
	convoRaw, err := c.rdb.Get(ctx, getConvoKey(number)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return conversationInternal{}, model.ErrConversationDoesNotExist
		}
		return conversationInternal{}, fmt.Errorf("failed to get conversation %s: %w", number, err)
	}
	var convoInt conversationInternal
	if err = json.Unmarshal([]byte(convoRaw), &convoInt); err != nil {
		return conversationInternal{}, fmt.Errorf("failed to unmarshal conversation %s: %w", number, err)
	}
	return convoInt, nil
}

func (c *ConversationStorage) setConversationInt(
	ctx context.Context, number string, convoInt conversationInternal,
) error {
	convoJSON, err := json.Marshal(convoInt)
	if err != nil {
		return fmt.Errorf("failed to marshal internal conversation: %w", err)
	}
	if err = c.rdb.Set(ctx, getConvoKey(number), convoJSON, 0).Err(); err != nil {
		return fmt.Errorf("failed to save conversation %s: %w", number, err)
	}
	return nil
}

func convoFromInternal(number string, convoInt conversationInternal) model.Conversation {
	messages := make([]model.Message, 0, len(convoInt.Content))
	for _, msg := range convoInt.Content {
		messages = append(
			messages, model.Message{
				Source: msg.Role,
				Body:   msg.Content,
			},
		)
	}
	return model.Conversation{
		Number:   number,
		Messages: messages,
	}
}

func getConvoKey(number string) string {
	return convoKeyPrefix + number
}
