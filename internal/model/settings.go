package model

// Settings is the tunable runtime configuration. It is read as a whole
// snapshot per request and replaced as a whole on admin updates, never
// mutated field by field.
type Settings struct {
	ContextMsgs       int
	MaxTokens         int
	Temperature       float32
	Prompt            string
	ErrorMessage      string
	ModerationMessage string
	PasswordHash      string
}

// Built-in defaults, seeded into the store on first boot. The default
// password is hashed at seed time and must be rotated before production use.
const (
	DefaultContextMsgs       = 5
	DefaultMaxTokens         = 4000
	DefaultTemperature       = float32(0.1)
	DefaultPrompt            = "You are a helpful assistant."
	DefaultErrorMessage      = "I'm sorry, I'm having trouble responding right now."
	DefaultModerationMessage = "I'm sorry, this content was flagged as inappropriate."
	DefaultPassword          = "1234"
)

func DefaultSettings() Settings {
	return Settings{
		ContextMsgs:       DefaultContextMsgs,
		MaxTokens:         DefaultMaxTokens,
		Temperature:       DefaultTemperature,
		Prompt:            DefaultPrompt,
		ErrorMessage:      DefaultErrorMessage,
		ModerationMessage: DefaultModerationMessage,
	}
}

// Options is the admin-updatable subset of Settings. All six fields are
// written together; partial updates are not supported.
type Options struct {
	ContextMsgs       int
	MaxTokens         int
	Temperature       float32
	Prompt            string
	ErrorMessage      string
	ModerationMessage string
}
