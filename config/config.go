package config

import (
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type OpenAI struct {
	OpenAIAPIKey  string `env:"OPENAI_API_KEY" env-required:"true"`
	OpenAIModel   string `yaml:"openai_model" env:"OPENAI_MODEL" env-default:"gpt-3.5-turbo"`
	OpenAIBaseURL string `yaml:"open_ai_base_url" env:"OPENAI_BASE_URL"`
}

type Sendblue struct {
	APIKey    string `env:"SENDBLUE_API_KEY" env-required:"true"`
	APISecret string `env:"SENDBLUE_API_SECRET" env-required:"true"`
	BaseURL   string `yaml:"sendblue_base_url" env:"SENDBLUE_BASE_URL"`
}

type Server struct {
	Addr          string `yaml:"addr" env:"HTTP_ADDR" env-default:":8080"`
	WebhookSecret string `env:"WEBHOOK_SECRET" env-required:"true"`
	StaticDir     string `yaml:"static_dir" env:"STATIC_DIR" env-default:"static"`
}

type Redis struct {
	Endpoint string `yaml:"endpoint" env:"REDIS_ENDPOINT" env-default:"localhost:6379"`
}

type Chat struct {
	// Applied to each completion, moderation, and delivery call; a timeout
	// is reported to the sender the same way as any other upstream failure.
	GatewayTimeout time.Duration `yaml:"gateway_timeout" env:"GATEWAY_TIMEOUT" env-default:"30s"`
}

type Config struct {
	OpenAI   OpenAI   `yaml:"openai"`
	Sendblue Sendblue `yaml:"sendblue"`
	Server   Server   `yaml:"server"`
	Redis    Redis    `yaml:"redis"`
	Chat     Chat     `yaml:"chat"`
}

func LoadConfig(cfgPath string) (*Config, error) {
	var cfg Config
	if cfgPath != "" {
		if err := cleanenv.ReadConfig(cfgPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
