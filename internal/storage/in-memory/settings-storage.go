package in_memory

import (
	"context"
	"sync"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
)

type SettingsStorage struct {
	mu       sync.Mutex
	seeded   bool
	settings model.Settings
}

func NewSettingsStorage() *SettingsStorage {
	return &SettingsStorage{}
}

func (s *SettingsStorage) LoadSettings(_ context.Context, defaults model.Settings) (model.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.seeded {
		s.settings = defaults
		s.seeded = true
	}
	return s.settings, nil
}

func (s *SettingsStorage) SaveOptions(_ context.Context, options model.Options) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.ContextMsgs = options.ContextMsgs
	s.settings.MaxTokens = options.MaxTokens
	s.settings.Temperature = options.Temperature
	s.settings.Prompt = options.Prompt
	s.settings.ErrorMessage = options.ErrorMessage
	s.settings.ModerationMessage = options.ModerationMessage
	return nil
}

func (s *SettingsStorage) SavePasswordHash(_ context.Context, hash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.settings.PasswordHash = hash
	return nil
}

// Stored returns the durable copy, for asserting write ordering in tests.
func (s *SettingsStorage) Stored() model.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}
