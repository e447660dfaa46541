package main

import (
	"context"
	"flag"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/iamvkosarev/sms-gpt-bridge/config"
	"github.com/iamvkosarev/sms-gpt-bridge/internal/app"
)

func main() {
	cfgPath := flag.String("config", "", "path to optional yaml config")
	flag.Parse()

	// Optional .env, matching local development setups. Real environments set
	// the variables directly.
	_ = godotenv.Load()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	if err := app.Run(context.Background(), cfg); err != nil {
		slog.Error("bridge stopped", "err", err)
		os.Exit(1)
	}
}
