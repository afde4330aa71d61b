// Package cli holds the startup steps shared by cmd/assofin and
// cmd/assofin-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"assofin/internal/config"
	"assofin/internal/log"
	"assofin/internal/seed"
)

// LoadEnvFile loads the .env file for local development.
// A missing file is not an error.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger builds the process logger from LOG_LEVEL and LOG_FORMAT and
// installs it as the slog default.
func SetupLogger(component string) *log.Logger {
	logger := log.New(log.ConfigFromEnv(component))
	log.SetDefault(logger)
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// The process exits when the configuration is invalid.
func LoadAndValidateConfig(logger *log.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", log.FieldError, err)
		os.Exit(1)
	}
	return cfg
}

// SeedStore loads the seed file (the embedded defaults when path is empty)
// and applies it to an empty store.
func SeedStore(ctx context.Context, path string, categories seed.CategoryService, rules seed.RuleService, logger *log.Logger) error {
	f, err := seed.Load(path)
	if err != nil {
		return err
	}
	_, err = seed.Apply(ctx, f, categories, rules, logger)
	return err
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
