// Package cli holds the startup boilerplate shared by cmd/jizhang and
// cmd/jizhang-export.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/bcyyahz/jizhangAPP/internal/config"
	"github.com/bcyyahz/jizhangAPP/internal/log"
)

// Setup loads the optional .env file, builds the component logger, installs
// it as the slog default, and loads + validates configuration. Exits the
// process on invalid configuration.
func Setup(component string) (*config.Config, *log.Logger) {
	// .env is a development convenience; missing files are fine.
	_ = godotenv.Load()

	cfg := config.Load()
	logger := log.New(component, log.ParseLevel(cfg.LogLevel))
	log.SetDefault(logger)

	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg, logger
}
