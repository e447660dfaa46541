package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	"github.com/sourcegraph/conc"
)

const (
	// Gateway-side status marking an inbound message, as opposed to a
	// delivery report for one of our own sends.
	StatusReceived = "RECEIVED"

	MessageTooLargeNotice = "Your text is too large!"
)

type ConversationStorage interface {
	GetConversation(ctx context.Context, number string) (model.Conversation, error)
	AddMessage(ctx context.Context, number, messageText string, messageSource model.MessageSource) error
	ListConversations(ctx context.Context) ([]model.Conversation, error)
}

type CompletionGateway interface {
	Complete(ctx context.Context, window []model.Message, maxTokens int, temperature float32) (string, error)
	Moderate(ctx context.Context, input string) (bool, error)
}

type DeliveryGateway interface {
	SendMessage(ctx context.Context, number, content string) error
}

// InboundMessage is the webhook payload subset the bridge consumes.
type InboundMessage struct {
	Status  string
	Number  string
	Content string
}

type ChatUsecaseDeps struct {
	Conversations ConversationStorage
	Completion    CompletionGateway
	Delivery      DeliveryGateway
	Settings      *SettingsUsecase
	Context       *ContextBuilder
}

type ChatUsecase struct {
	ChatUsecaseDeps
	cfg config.Chat

	senderLocks sync.Map
}

func NewChatUsecase(deps ChatUsecaseDeps, cfg config.Chat) *ChatUsecase {
	return &ChatUsecase{
		ChatUsecaseDeps: deps,
		cfg:             cfg,
	}
}

// HandleInbound runs one inbound message through the full turn:
// validate, budget, complete, moderate, persist, deliver. Every failure
// terminates by putting a canned message in front of the sender; only the
// delivery-report and too-large paths skip persisting an assistant turn.
func (c *ChatUsecase) HandleInbound(ctx context.Context, inbound InboundMessage) error {
	msgID := uuid.NewString()

	if inbound.Status != StatusReceived {
		log.Printf("[%s] received delivery error from gateway, status %q", msgID, inbound.Status)
		return nil
	}

	number := strings.TrimPrefix(inbound.Number, "+")
	if number == "" || inbound.Content == "" {
		log.Printf("[%s] dropping malformed inbound payload", msgID)
		return nil
	}

	settings := c.Settings.Current()

	// Reject before persisting or calling any gateway: a single message must
	// leave room for a response.
	if !c.Context.Fits(inbound.Content, settings) {
		c.deliver(ctx, msgID, number, MessageTooLargeNotice)
		return nil
	}

	unlock := c.lockSender(number)
	defer unlock()

	prior, err := c.Conversations.GetConversation(ctx, number)
	if err != nil && !errors.Is(err, model.ErrConversationDoesNotExist) {
		c.deliver(ctx, msgID, number, settings.ErrorMessage)
		return fmt.Errorf("failed to get conversation: %w", err)
	}

	// The user's turn is recorded before anything else can fail.
	if err = c.Conversations.AddMessage(ctx, number, inbound.Content, model.MessageSourceUser); err != nil {
		c.deliver(ctx, msgID, number, settings.ErrorMessage)
		return fmt.Errorf("failed to add user message: %w", err)
	}

	inboundMsg := model.Message{
		Source: model.MessageSourceUser,
		Body:   inbound.Content,
	}
	window, responseBudget, err := c.Context.BuildContext(prior.Messages, inboundMsg, settings)
	if err != nil {
		if errors.Is(err, ErrMessageTooLarge) {
			c.deliver(ctx, msgID, number, MessageTooLargeNotice)
			return nil
		}
		c.deliver(ctx, msgID, number, settings.ErrorMessage)
		return fmt.Errorf("failed to build context: %w", err)
	}

	response, err := c.complete(ctx, window, responseBudget, settings.Temperature)
	if err != nil {
		log.Printf("[%s] completion failed: %v", msgID, err)
		c.failTurn(ctx, msgID, number, settings)
		return nil
	}

	flagged, err := c.moderate(ctx, response)
	if err != nil {
		log.Printf("[%s] moderation failed: %v", msgID, err)
		c.failTurn(ctx, msgID, number, settings)
		return nil
	}
	if flagged {
		// Still a successful turn; only the outgoing text is substituted.
		response = settings.ModerationMessage
	}

	wg := conc.NewWaitGroup()
	wg.Go(
		func() {
			if err := c.Conversations.AddMessage(ctx, number, response, model.MessageSourceAssistant); err != nil {
				log.Printf("[%s] failed to add assistant message: %v", msgID, err)
			}
		},
	)
	wg.Go(
		func() {
			c.deliver(ctx, msgID, number, response)
		},
	)
	wg.Wait()
	return nil
}

// ListConversations exposes the full stored history for the admin dump.
func (c *ChatUsecase) ListConversations(ctx context.Context) ([]model.Conversation, error) {
	return c.Conversations.ListConversations(ctx)
}

// failTurn reports an upstream failure to the sender and records the same
// text as the assistant turn, so history reflects what the user actually saw.
func (c *ChatUsecase) failTurn(ctx context.Context, msgID, number string, settings model.Settings) {
	c.deliver(ctx, msgID, number, settings.ErrorMessage)
	if err := c.Conversations.AddMessage(ctx, number, settings.ErrorMessage, model.MessageSourceAssistant); err != nil {
		log.Printf("[%s] failed to add error message to conversation: %v", msgID, err)
	}
}

func (c *ChatUsecase) complete(
	ctx context.Context, window []model.Message, responseBudget int, temperature float32,
) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	defer cancel()
	return c.Completion.Complete(ctx, window, responseBudget, temperature)
}

func (c *ChatUsecase) moderate(ctx context.Context, input string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	defer cancel()
	return c.Completion.Moderate(ctx, input)
}

// deliver sends through the SMS gateway, best effort. Delivery failures are
// logged and never rolled back into conversation state.
func (c *ChatUsecase) deliver(ctx context.Context, msgID, number, content string) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.GatewayTimeout)
	defer cancel()
	if err := c.Delivery.SendMessage(ctx, "+"+number, content); err != nil {
		log.Printf("[%s] failed to send message to %s: %v", msgID, number, err)
	}
}

// lockSender serializes turns for one sender so two concurrent webhooks
// cannot interleave their read-append-write cycles on the same history.
func (c *ChatUsecase) lockSender(number string) func() {
	muAny, _ := c.senderLocks.LoadOrStore(number, &sync.Mutex{})
	mu := muAny.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
