package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseMaxConns != 25 {
		t.Fatalf("expected default max conns 25, got %d", cfg.DatabaseMaxConns)
	}

	if cfg.LogLevel != "info" {
		t.Fatalf("expected default log level info, got %s", cfg.LogLevel)
	}

	if cfg.OutboxBatchSize != 100 {
		t.Fatalf("expected default outbox batch 100, got %d", cfg.OutboxBatchSize)
	}

	if cfg.OutboxPollInterval != 5*time.Second {
		t.Fatalf("expected default poll interval 5s, got %s", cfg.OutboxPollInterval)
	}

	if cfg.RedisURL != "" {
		t.Fatalf("expected redis disabled by default, got %s", cfg.RedisURL)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://test:test@db:5432/test")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("OUTBOX_POLL_INTERVAL", "250ms")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.DatabaseURL != "postgres://test:test@db:5432/test" {
		t.Fatalf("unexpected database URL: %s", cfg.DatabaseURL)
	}

	if cfg.LogLevel != "debug" {
		t.Fatalf("unexpected log level: %s", cfg.LogLevel)
	}

	if cfg.OutboxPollInterval != 250*time.Millisecond {
		t.Fatalf("unexpected poll interval: %s", cfg.OutboxPollInterval)
	}
}
