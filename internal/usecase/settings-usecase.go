package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/iamvkosarev/sms-gpt-bridge/internal/model"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrIncorrectPassword = errors.New("incorrect password")
	ErrInvalidOptions    = errors.New("invalid options")
)

type SettingsStorage interface {
	LoadSettings(ctx context.Context, defaults model.Settings) (model.Settings, error)
	SaveOptions(ctx context.Context, options model.Options) error
	SavePasswordHash(ctx context.Context, hash string) error
}

// SettingsUsecase holds the process-wide settings snapshot. Readers load one
// consistent snapshot per request; writers persist durably first and swap
// the snapshot second, so a crash mid-update never leaves memory ahead of
// the store.
type SettingsUsecase struct {
	storage  SettingsStorage
	snapshot atomic.Pointer[model.Settings]

	// serializes the rare admin writes
	writeMu sync.Mutex
}

func NewSettingsUsecase(ctx context.Context, storage SettingsStorage) (*SettingsUsecase, error) {
	defaults := model.DefaultSettings()
	hash, err := bcrypt.GenerateFromPassword([]byte(model.DefaultPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash default password: %w", err)
	}
	defaults.PasswordHash = string(hash)

	settings, err := storage.LoadSettings(ctx, defaults)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	u := &SettingsUsecase{
		storage: storage,
	}
	u.snapshot.Store(&settings)
	return u, nil
}

func (u *SettingsUsecase) Current() model.Settings {
	return *u.snapshot.Load()
}

// VerifyPassword compares a plaintext candidate against the stored bcrypt
// hash. Never compares raw strings.
func (u *SettingsUsecase) VerifyPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Current().PasswordHash), []byte(password)) == nil
}

// UpdateOptions writes all six tunables together; partial updates are not
// supported.
func (u *SettingsUsecase) UpdateOptions(ctx context.Context, password string, options model.Options) error {
	if !u.VerifyPassword(password) {
		return ErrIncorrectPassword
	}
	if err := validateOptions(options); err != nil {
		return err
	}

	u.writeMu.Lock()
	defer u.writeMu.Unlock()

	if err := u.storage.SaveOptions(ctx, options); err != nil {
		return fmt.Errorf("failed to save options: %w", err)
	}

	next := u.Current()
	next.ContextMsgs = options.ContextMsgs
	next.MaxTokens = options.MaxTokens
	next.Temperature = options.Temperature
	next.Prompt = options.Prompt
	next.ErrorMessage = options.ErrorMessage
	next.ModerationMessage = options.ModerationMessage
	u.snapshot.Store(&next)
	return nil
}

func (u *SettingsUsecase) ChangePassword(ctx context.Context, oldPassword, newPassword string) error {
	if !u.VerifyPassword(oldPassword) {
		return ErrIncorrectPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash new password: %w", err)
	}

	u.writeMu.Lock()
	defer u.writeMu.Unlock()

	if err = u.storage.SavePasswordHash(ctx, string(hash)); err != nil {
		return fmt.Errorf("failed to save password hash: %w", err)
	}

	next := u.Current()
	next.PasswordHash = string(hash)
	u.snapshot.Store(&next)
	return nil
}

func validateOptions(options model.Options) error {
	if options.ContextMsgs <= 0 {
		return fmt.Errorf("%w: context_msgs must be positive", ErrInvalidOptions)
	}
	if options.MaxTokens <= 0 {
		return fmt.Errorf("%w: max_tokens must be positive", ErrInvalidOptions)
	}
	if options.Temperature < 0 || options.Temperature > 2 {
		return fmt.Errorf("%w: temperature must be in [0, 2]", ErrInvalidOptions)
	}
	return nil
}
