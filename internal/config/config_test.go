package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ADMIN_EMAIL", "admin@gamestore.test")
	t.Setenv("ADMIN_PASSWORD", "secret")
	t.Setenv("SESSION_SECRET", "s3cr3t")
	t.Setenv("DB_PATH", "")
	t.Setenv("PORT", "")
	t.Setenv("BATCH_SIZE", "")
	t.Setenv("FEED_TIMEOUT", "")

	cfg := Load()

	if cfg.DBPath != defaultDBPath {
		t.Fatalf("DBPath = %q, want %q", cfg.DBPath, defaultDBPath)
	}
	if cfg.Port != defaultPort {
		t.Fatalf("Port = %q, want %q", cfg.Port, defaultPort)
	}
	if cfg.BatchSize != defaultBatchSize {
		t.Fatalf("BatchSize = %d, want %d", cfg.BatchSize, defaultBatchSize)
	}
	if cfg.FeedTimeout != defaultFeedTimeout {
		t.Fatalf("FeedTimeout = %s, want %s", cfg.FeedTimeout, defaultFeedTimeout)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_PATH", "/tmp/store.db")
	t.Setenv("PORT", "9090")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("FEED_TIMEOUT", "5s")

	cfg := Load()

	if cfg.DBPath != "/tmp/store.db" || cfg.Port != "9090" {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.BatchSize != 100 {
		t.Fatalf("BatchSize = %d, want 100", cfg.BatchSize)
	}
	if cfg.FeedTimeout != 5*time.Second {
		t.Fatalf("FeedTimeout = %s, want 5s", cfg.FeedTimeout)
	}
}

func TestLoadRejectsInvalidNumbers(t *testing.T) {
	t.Setenv("BATCH_SIZE", "not-a-number")
	t.Setenv("FEED_TIMEOUT", "-3s")

	cfg := Load()

	if cfg.BatchSize != defaultBatchSize {
		t.Fatalf("invalid BATCH_SIZE should fall back to %d, got %d", defaultBatchSize, cfg.BatchSize)
	}
	if cfg.FeedTimeout != defaultFeedTimeout {
		t.Fatalf("invalid FEED_TIMEOUT should fall back to %s, got %s", defaultFeedTimeout, cfg.FeedTimeout)
	}
}
