package app

import (
	"context"
	"fmt"

	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/server"
	key_value "github.com/iamvkosarev/sms-gpt-bridge/internal/storage/key-value"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/usecase"
	"github.com/iamvkosarev/sms-gpt-bridge/pkg/sendblue"
	"github.com/iamvkosarev/sms-gpt-bridge/pkg/tokens"
	"github.com/redis/go-redis/v9"
)

func Run(ctx context.Context, cfg *config.Config) error {
	rdb := redis.NewClient(
		&redis.Options{
			Addr: cfg.Redis.Endpoint,
		},
	)
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	counter, err := tokens.NewCounter(cfg.OpenAI.OpenAIModel)
	if err != nil {
		return fmt.Errorf("failed to create token counter: %w", err)
	}

	sendblueOpts := []sendblue.Option{}
	if cfg.Sendblue.BaseURL != "" {
		sendblueOpts = append(sendblueOpts, sendblue.WithBaseURL(cfg.Sendblue.BaseURL))
	}
	sendblueClient, err := sendblue.NewClient(cfg.Sendblue.APIKey, cfg.Sendblue.APISecret, sendblueOpts...)
	if err != nil {
		return fmt.Errorf("failed to create sendblue client: %w", err)
	}

	settingsStorage := key_value.NewSettingsStorage(rdb)
	settingsUsecase, err := usecase.NewSettingsUsecase(ctx, settingsStorage)
	if err != nil {
		return fmt.Errorf("failed to create settings usecase: %w", err)
	}

	conversationStorage := key_value.NewConversationStorage(rdb)
	openAIUsecase := usecase.NewOpenAIUsecase(cfg.OpenAI)
	contextBuilder := usecase.NewContextBuilder(counter)

	chatUsecase := usecase.NewChatUsecase(
		usecase.ChatUsecaseDeps{
			Conversations: conversationStorage,
			Completion:    openAIUsecase,
			Delivery:      sendblueClient,
			Settings:      settingsUsecase,
			Context:       contextBuilder,
		}, cfg.Chat,
	)

	srv := server.New(
		cfg.Server, server.Deps{
			Chat:     chatUsecase,
			Settings: settingsUsecase,
		},
	)
	return srv.Run()
}
