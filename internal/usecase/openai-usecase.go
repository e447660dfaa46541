package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"

	"github.com/sashabaranov/go-openai"
)

const (
	OpenAIRoleSystem    = "system"
	OpenAIRoleUser      = "user"
	OpenAIRoleAssistant = "assistant"
)

type OpenAIUsecase struct {
	cfg    config.OpenAI
	client *openai.Client
}

func NewOpenAIUsecase(cfg config.OpenAI) *OpenAIUsecase {
	clientConfig := openai.DefaultConfig(cfg.OpenAIAPIKey)
	if cfg.OpenAIBaseURL != "" {
		clientConfig.BaseURL = cfg.OpenAIBaseURL
	}
	return &OpenAIUsecase{
		cfg:    cfg,
		client: openai.NewClientWithConfig(clientConfig),
	}
}

// Complete sends the context window to the chat completions API. maxTokens
// is the budget left for the response after the prompt's share.
func (o *OpenAIUsecase) Complete(
	ctx context.Context, window []model.Message, maxTokens int, temperature float32,
) (string, error) {
	messages := make([]openai.ChatCompletionMessage, 0, len(window))
	for _, message := range window {
		messages = append(
			messages, openai.ChatCompletionMessage{
				Role:    parseMessageSourceToRole(message.Source),
				Content: message.Body,
			},
		)
	}

	resp, err := o.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model:       o.cfg.OpenAIModel,
			Messages:    messages,
			MaxTokens:   maxTokens,
			Temperature: temperature,
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to create chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no choices in completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// Moderate reports whether the moderation endpoint flags the text.
func (o *OpenAIUsecase) Moderate(ctx context.Context, input string) (bool, error) {
	resp, err := o.client.Moderations(
		ctx, openai.ModerationRequest{
			Input: input,
		},
	)
	if err != nil {
		return false, fmt.Errorf("failed to create moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return false, errors.New("no results in moderation response")
	}
	return resp.Results[0].Flagged, nil
}

func parseMessageSourceToRole(source model.MessageSource) string {
	switch source {
	case model.MessageSourceSystem:
		return OpenAIRoleSystem
	case model.MessageSourceAssistant:
		return OpenAIRoleAssistant
	default:
		return OpenAIRoleUser
	}
}
