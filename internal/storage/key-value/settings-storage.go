package key_value

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	"github.com/redis/go-redis/v9"
)

// Flat keys, one per tunable.
const (
	keyContextMsgs       = "context_msgs"
	keyMaxTokens         = "max_tokens"
	keyTemperature       = "temperature"
	keyPrompt            = "prompt"
	keyErrorMessage      = "error_message"
	keyModerationMessage = "moderation_message"
	keyPasswordHash      = "DASHBOARD_PASSWORD"
)

type SettingsStorage struct {
	rdb *redis.Client
}

func NewSettingsStorage(rdb *redis.Client) *SettingsStorage {
	return &SettingsStorage{
		rdb: rdb,
	}
}

// LoadSettings reads every settings key, seeding any missing key with its
// default. Keys that already exist are left untouched, so a partial first
// boot never loses operator changes.
func (s *SettingsStorage) LoadSettings(ctx context.Context, defaults model.Settings) (model.Settings, error) {
	settings := defaults

	contextMsgs, err := s.loadOrSeed(ctx, keyContextMsgs, strconv.Itoa(defaults.ContextMsgs))
	if err != nil {
		return model.Settings{}, err
	}
	if settings.ContextMsgs, err = strconv.Atoi(contextMsgs); err != nil {
		return model.Settings{}, fmt.Errorf("failed to parse %s: %w", keyContextMsgs, err)
	}

	maxTokens, err := s.loadOrSeed(ctx, keyMaxTokens, strconv.Itoa(defaults.MaxTokens))
	if err != nil {
		return model.Settings{}, err
	}
	if settings.MaxTokens, err = strconv.Atoi(maxTokens); err != nil {
		return model.Settings{}, fmt.Errorf("failed to parse %s: %w", keyMaxTokens, err)
	}

	temperature, err := s.loadOrSeed(
		ctx, keyTemperature, strconv.FormatFloat(float64(defaults.Temperature), 'f', -1, 32),
	)
	if err != nil {
		return model.Settings{}, err
	}
	temperatureF, err := strconv.ParseFloat(temperature, 32)
	if err != nil {
		return model.Settings{}, fmt.Errorf("failed to parse %s: %w", keyTemperature, err)
	}
	settings.Temperature = float32(temperatureF)

	if settings.Prompt, err = s.loadOrSeed(ctx, keyPrompt, defaults.Prompt); err != nil {
		return model.Settings{}, err
	}
	if settings.ErrorMessage, err = s.loadOrSeed(ctx, keyErrorMessage, defaults.ErrorMessage); err != nil {
		return model.Settings{}, err
	}
	if settings.ModerationMessage, err = s.loadOrSeed(ctx, keyModerationMessage, defaults.ModerationMessage); err != nil {
		return model.Settings{}, err
	}
	if settings.PasswordHash, err = s.loadOrSeed(ctx, keyPasswordHash, defaults.PasswordHash); err != nil {
		return model.Settings{}, err
	}
	return settings, nil
}

// SaveOptions writes all six tunables together.
func (s *SettingsStorage) SaveOptions(ctx context.Context, options model.Options) error {
	values := map[string]string{
		keyContextMsgs:       strconv.Itoa(options.ContextMsgs),
		keyMaxTokens:         strconv.Itoa(options.MaxTokens),
		keyTemperature:       strconv.FormatFloat(float64(options.Temperature), 'f', -1, 32),
		keyPrompt:            options.Prompt,
		keyErrorMessage:      options.ErrorMessage,
		keyModerationMessage: options.ModerationMessage,
	}
	for key, value := range values {
		if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
			return fmt.Errorf("failed to save %s: %w", key, err)
		}
	}
	return nil
}

func (s *SettingsStorage) SavePasswordHash(ctx context.Context, hash string) error {
	if err := s.rdb.Set(ctx, keyPasswordHash, hash, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", keyPasswordHash, err)
	}
	return nil
}

func (s *SettingsStorage) loadOrSeed(ctx context.Context, key, defaultValue string) (string, error) {
	value, err := s.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("failed to get %s: %w", key, err)
		}
		if err = s.rdb.Set(ctx, key, defaultValue, 0).Err(); err != nil {
			return "", fmt.Errorf("failed to seed %s: %w", key, err)
		}
		return defaultValue, nil
	}
	return value, nil
}
