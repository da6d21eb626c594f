// Package config loads the daemon settings from the environment.
// A .env file in the working directory is read first if present.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the settings of the progression daemon
type Config struct {
	DatabaseDriver string
	DatabaseURL    string
	ConnectTimeout time.Duration

	// Cron spec of the periodic pass over all active tournaments
	ResolveSchedule string

	WriteRetryAttempts int
	WriteRetryDelay    time.Duration
	Concurrency        int

	LogLevel       string
	LogDevelopment bool
}

// Loads the configuration from environment variables.
// Only DATABASE_URL is required.
func Load() (*Config, error) {
	// A missing .env file is not an error
	_ = godotenv.Load()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable is not set")
	}

	cfg := &Config{
		DatabaseDriver:  stringOr("DATABASE_DRIVER", "postgres"),
		DatabaseURL:     dbURL,
		ResolveSchedule: stringOr("RESOLVE_SCHEDULE", "@every 30s"),
		LogLevel:        stringOr("LOG_LEVEL", "info"),
	}

	var err error
	if cfg.ConnectTimeout, err = durationOr("DB_CONNECT_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.WriteRetryDelay, err = durationOr("WRITE_RETRY_DELAY", 100*time.Millisecond); err != nil {
		return nil, err
	}
	if cfg.WriteRetryAttempts, err = positiveIntOr("WRITE_RETRY_ATTEMPTS", 3); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = positiveIntOr("RESOLVE_CONCURRENCY", 4); err != nil {
		return nil, err
	}

	if dev := os.Getenv("LOG_DEVELOPMENT"); dev != "" {
		cfg.LogDevelopment, err = strconv.ParseBool(dev)
		if err != nil {
			return nil, fmt.Errorf("invalid LOG_DEVELOPMENT environment variable: %w", err)
		}
	}

	return cfg, nil
}

func stringOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return d, nil
}

func positiveIntOr(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	if n <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %d", key, n)
	}
	return n, nil
}
