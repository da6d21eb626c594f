package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/tourney")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	eq1 := cfg.DatabaseDriver == "postgres" && cfg.DatabaseURL == "postgres://localhost/tourney"
	eq2 := cfg.ResolveSchedule == "@every 30s" && cfg.ConnectTimeout == 5*time.Second
	eq3 := cfg.WriteRetryAttempts == 3 && cfg.Concurrency == 4 && cfg.LogLevel == "info"
	if !eq1 || !eq2 || !eq3 || cfg.LogDevelopment {
		t.Fatal("The default configuration is wrong")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "file:test.db")
	t.Setenv("DATABASE_DRIVER", "sqlite3")
	t.Setenv("RESOLVE_SCHEDULE", "*/10 * * * * *")
	t.Setenv("WRITE_RETRY_ATTEMPTS", "5")
	t.Setenv("WRITE_RETRY_DELAY", "250ms")
	t.Setenv("LOG_DEVELOPMENT", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	eq1 := cfg.DatabaseDriver == "sqlite3" && cfg.ResolveSchedule == "*/10 * * * * *"
	eq2 := cfg.WriteRetryAttempts == 5 && cfg.WriteRetryDelay == 250*time.Millisecond
	if !eq1 || !eq2 || !cfg.LogDevelopment {
		t.Fatal("The environment did not override the defaults")
	}
}

func TestLoadErrors(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	if _, err := Load(); err == nil {
		t.Fatal("A missing DATABASE_URL was accepted")
	}

	t.Setenv("DATABASE_URL", "postgres://localhost/tourney")
	cases := map[string]string{
		"WRITE_RETRY_ATTEMPTS": "0",
		"RESOLVE_CONCURRENCY":  "many",
		"DB_CONNECT_TIMEOUT":   "5",
		"LOG_DEVELOPMENT":      "maybe",
	}
	for key, value := range cases {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			if _, err := Load(); err == nil {
				t.Fatal("An invalid value was accepted")
			}
		})
	}
}
