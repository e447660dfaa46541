package usecase

import (
	"errors"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
)

var (
	ErrMessageTooLarge = errors.New("message is too large for the token budget")
)

// responseTokenMargin is reserved out of the budget so the completion always
// has room to answer and estimator drift never overruns the API limit.
const responseTokenMargin = 10

type TokenCounter interface {
	Count(text string) int
}

// ContextBuilder turns full persisted history into the bounded message list
// sent to the completion API. Trimming only happens here, on the transient
// list; stored history is never touched.
type ContextBuilder struct {
	counter TokenCounter
}

func NewContextBuilder(counter TokenCounter) *ContextBuilder {
	return &ContextBuilder{
		counter: counter,
	}
}

// Fits reports whether a single message leaves room for a response at all.
// Checked before the inbound message is persisted or any gateway is called.
func (b *ContextBuilder) Fits(messageText string, settings model.Settings) bool {
	return b.counter.Count(messageText) <= settings.MaxTokens-responseTokenMargin
}

// BuildContext returns the context window for one completion call and the
// token budget left for the response. ContextMsgs caps the prior turns
// considered; the inbound message rides on top of that cap. The system
// prompt sits at index 0, does not count toward the cap, and is never
// evicted; eviction drops the oldest non-system message first until the
// window fits.
func (b *ContextBuilder) BuildContext(
	prior []model.Message, inbound model.Message, settings model.Settings,
) ([]model.Message, int, error) {
	recent := prior
	if len(recent) > settings.ContextMsgs {
		recent = recent[len(recent)-settings.ContextMsgs:]
	}

	window := make([]model.Message, 0, len(recent)+2)
	window = append(
		window, model.Message{
			Source: model.MessageSourceSystem,
			Body:   settings.Prompt,
		},
	)
	window = append(window, recent...)
	window = append(window, inbound)

	total := b.sumTokens(window)
	for total > settings.MaxTokens-responseTokenMargin && len(window) > 1 {
		window = append(window[:1], window[2:]...)
		// Re-sum from scratch after each eviction. ContextMsgs is small, so
		// correctness beats incremental bookkeeping here.
		total = b.sumTokens(window)
	}

	if len(window) <= 1 {
		return nil, 0, ErrMessageTooLarge
	}
	return window, settings.MaxTokens - total, nil
}

func (b *ContextBuilder) sumTokens(messages []model.Message) int {
	sum := 0
	for _, message := range messages {
		sum += b.counter.Count(message.Body)
	}
	return sum
}
