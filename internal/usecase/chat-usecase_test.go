package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	in_memory "github.com/iamvkosarev/sms-gpt-bridge/internal/storage/in-memory"
)

type mockCompletion struct {
	response    string
	completeErr error
	flagged     bool
	moderateErr error

	completeCalls  int
	moderateCalls  int
	gotWindow      []model.Message
	gotMaxTokens   int
	gotTemperature float32
	gotModerated   string
}

func (m *mockCompletion) Complete(
	_ context.Context, window []model.Message, maxTokens int, temperature float32,
) (string, error) {
	m.completeCalls++
	m.gotWindow = window
	m.gotMaxTokens = maxTokens
	m.gotTemperature = temperature
	return m.response, m.completeErr
}

func (m *mockCompletion) Moderate(_ context.Context, input string) (bool, error) {
	m.moderateCalls++
	m.gotModerated = input
	return m.flagged, m.moderateErr
}

type sentMessage struct {
	number  string
	content string
}

type mockDelivery struct {
	mu   sync.Mutex
	err  error
	sent []sentMessage
}

func (m *mockDelivery) SendMessage(_ context.Context, number, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMessage{number: number, content: content})
	return m.err
}

func (m *mockDelivery) sentMessages() []sentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentMessage(nil), m.sent...)
}

type chatFixture struct {
	chat          *ChatUsecase
	settings      *SettingsUsecase
	conversations *in_memory.ConversationStorage
	completion    *mockCompletion
	delivery      *mockDelivery
}

func newChatFixture(t *testing.T, counter TokenCounter) *chatFixture {
	t.Helper()
	settings, err := NewSettingsUsecase(context.Background(), in_memory.NewSettingsStorage())
	require.NoError(t, err)

	conversations := in_memory.NewConversationStorage()
	completion := &mockCompletion{response: "a helpful answer"}
	delivery := &mockDelivery{}

	chat := NewChatUsecase(
		ChatUsecaseDeps{
			Conversations: conversations,
			Completion:    completion,
			Delivery:      delivery,
			Settings:      settings,
			Context:       NewContextBuilder(counter),
		}, config.Chat{GatewayTimeout: time.Second},
	)
	return &chatFixture{
		chat:          chat,
		settings:      settings,
		conversations: conversations,
		completion:    completion,
		delivery:      delivery,
	}
}

func inbound(content string) InboundMessage {
	return InboundMessage{
		Status:  StatusReceived,
		Number:  "+15551230000",
		Content: content,
	}
}

func storedMessages(t *testing.T, f *chatFixture) []model.Message {
	t.Helper()
	convo, err := f.conversations.GetConversation(context.Background(), "15551230000")
	require.NoError(t, err)
	return convo.Messages
}

func TestHandleInboundDeliveryReportIsLoggedAndDropped(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})

	err := f.chat.HandleInbound(
		context.Background(), InboundMessage{
			Status:  "ERROR",
			Number:  "+15551230000",
			Content: "irrelevant",
		},
	)
	require.NoError(t, err)
	require.Zero(t, f.completion.completeCalls)
	require.Empty(t, f.delivery.sentMessages())
	_, err = f.conversations.GetConversation(context.Background(), "15551230000")
	require.ErrorIs(t, err, model.ErrConversationDoesNotExist)
}

func TestHandleInboundHappyPath(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)

	require.Equal(t, 1, f.completion.completeCalls)
	require.Equal(t, 1, f.completion.moderateCalls)
	require.Equal(t, "a helpful answer", f.completion.gotModerated)
	require.Equal(t, model.MessageSourceSystem, f.completion.gotWindow[0].Source)
	require.Equal(t, model.DefaultTemperature, f.completion.gotTemperature)

	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, "+15551230000", sent[0].number)
	require.Equal(t, "a helpful answer", sent[0].content)

	messages := storedMessages(t, f)
	require.Equal(
		t, []model.Message{
			{Source: model.MessageSourceUser, Body: "hello"},
			{Source: model.MessageSourceAssistant, Body: "a helpful answer"},
		}, messages,
	)
}

func TestHandleInboundOversizeMessageRejectedBeforeAnySideEffect(t *testing.T) {
	f := newChatFixture(t, fixedCounter{counts: map[string]int{"big": 4000}, fallback: 1})

	err := f.chat.HandleInbound(context.Background(), inbound("big"))
	require.NoError(t, err)

	require.Zero(t, f.completion.completeCalls)
	require.Zero(t, f.completion.moderateCalls)
	_, err = f.conversations.GetConversation(context.Background(), "15551230000")
	require.ErrorIs(t, err, model.ErrConversationDoesNotExist)

	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, MessageTooLargeNotice, sent[0].content)
}

func TestHandleInboundRejectsWhenPromptLeavesNoRoom(t *testing.T) {
	counter := fixedCounter{
		counts: map[string]int{
			model.DefaultPrompt: 3995,
			"hello":             100,
		},
	}
	f := newChatFixture(t, counter)

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)

	require.Zero(t, f.completion.completeCalls)
	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, MessageTooLargeNotice, sent[0].content)

	// The user's turn was already recorded; no assistant turn was written.
	messages := storedMessages(t, f)
	require.Equal(
		t, []model.Message{
			{Source: model.MessageSourceUser, Body: "hello"},
		}, messages,
	)
}

func TestHandleInboundCompletionFailurePersistsErrorMessageTurn(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})
	f.completion.completeErr = errors.New("upstream exploded")

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)

	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, model.DefaultErrorMessage, sent[0].content)

	messages := storedMessages(t, f)
	require.Equal(
		t, model.Message{
			Source: model.MessageSourceAssistant,
			Body:   model.DefaultErrorMessage,
		}, messages[len(messages)-1],
	)
}

func TestHandleInboundModerationFailureIsAnUpstreamFailure(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})
	f.completion.moderateErr = errors.New("moderation down")

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)

	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, model.DefaultErrorMessage, sent[0].content)
}

func TestHandleInboundFlaggedCompletionIsSubstituted(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})
	f.completion.flagged = true

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)

	sent := f.delivery.sentMessages()
	require.Len(t, sent, 1)
	require.Equal(t, model.DefaultModerationMessage, sent[0].content)

	messages := storedMessages(t, f)
	require.Equal(
		t, model.Message{
			Source: model.MessageSourceAssistant,
			Body:   model.DefaultModerationMessage,
		}, messages[len(messages)-1],
	)
}

func TestHandleInboundStoredHistoryOnlyGrows(t *testing.T) {
	f := newChatFixture(t, fixedCounter{fallback: 1})

	options := model.Options{
		ContextMsgs:       2,
		MaxTokens:         model.DefaultMaxTokens,
		Temperature:       model.DefaultTemperature,
		Prompt:            model.DefaultPrompt,
		ErrorMessage:      model.DefaultErrorMessage,
		ModerationMessage: model.DefaultModerationMessage,
	}
	require.NoError(t, f.settings.UpdateOptions(context.Background(), model.DefaultPassword, options))

	for i := 0; i < 5; i++ {
		require.NoError(t, f.chat.HandleInbound(context.Background(), inbound("hello")))
	}

	// Ten turns stored even though the context window was capped at two prior
	// messages; trimming never reaches storage.
	messages := storedMessages(t, f)
	require.Len(t, messages, 10)
	require.LessOrEqual(t, len(f.completion.gotWindow), 4)
}

func TestHandleInboundPassesRemainingBudgetToCompletion(t *testing.T) {
	counter := fixedCounter{
		counts: map[string]int{
			model.DefaultPrompt: 100,
			"hello":             25,
		},
	}
	f := newChatFixture(t, counter)

	err := f.chat.HandleInbound(context.Background(), inbound("hello"))
	require.NoError(t, err)
	require.Equal(t, model.DefaultMaxTokens-125, f.completion.gotMaxTokens)
}
