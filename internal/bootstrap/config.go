package bootstrap

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/target/campus-portal/config"
)

// InitLogger initializes the structured logger. Development mode logs text at debug level.
func InitLogger(dev bool) *slog.Logger {
	logger := newLogger(os.Stdout, dev)
	slog.SetDefault(logger)
	return logger
}

func newLogger(w io.Writer, dev bool) *slog.Logger {
	if dev {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (config.AppConfig, error) {
	if err := loadDotEnv(); err != nil {
		return config.AppConfig{}, err
	}

	var cfg config.AppConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// LoadClientConfig loads only the CAMPUSCTL_ settings used by the console client.
func LoadClientConfig() (config.ClientConfig, error) {
	if err := loadDotEnv(); err != nil {
		return config.ClientConfig{}, err
	}

	var cfg config.ClientConfig
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "CAMPUSCTL_"}); err != nil {
		return cfg, fmt.Errorf("parse client config: %w", err)
	}

	cfg.Sanitize()
	return cfg, nil
}

// loadDotEnv loads a .env file if it exists (development).
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return fmt.Errorf("load .env file: %w", err)
		}
	}
	return nil
}
