package infra

import (
	"testing"
	"time"
)

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("JWT_SECRET", "test-secret")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should fail without DATABASE_URL")
	}
}

func TestLoadConfigRequiresJWTSecret(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatalf("LoadConfig should fail without JWT_SECRET")
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("PORT", "")
	t.Setenv("DEFAULT_LOCALE", "")
	t.Setenv("WEBHOOK_MAX_RETRIES", "")
	t.Setenv("QUEUE_POLL_INTERVAL_SECONDS", "")
	t.Setenv("ELEVENLABS_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.Port != "8080" {
		t.Fatalf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.DefaultLocale != "fr" {
		t.Fatalf("DefaultLocale = %q, want fr", cfg.DefaultLocale)
	}
	if cfg.WebhookMaxRetries != 2 {
		t.Fatalf("WebhookMaxRetries = %d, want 2", cfg.WebhookMaxRetries)
	}
	if cfg.QueuePollInterval != 2*time.Minute {
		t.Fatalf("QueuePollInterval = %v, want 2m", cfg.QueuePollInterval)
	}
	// The TTS client appends /v1 itself; a versioned default here would
	// produce a doubled path segment.
	if cfg.ElevenLabsBaseURL != "https://api.elevenlabs.io" {
		t.Fatalf("ElevenLabsBaseURL = %q, want https://api.elevenlabs.io", cfg.ElevenLabsBaseURL)
	}
}

func TestLoadConfigHonorsOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("WEBHOOK_TIMEOUT_SECONDS", "5")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "7")
	t.Setenv("QUEUE_SNAPSHOT_PATH", "/var/lib/calmiverse/queue.json")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WebhookTimeout != 5*time.Second {
		t.Fatalf("WebhookTimeout = %v, want 5s", cfg.WebhookTimeout)
	}
	if cfg.RateLimitPerMin != 7 {
		t.Fatalf("RateLimitPerMin = %d, want 7", cfg.RateLimitPerMin)
	}
	if cfg.QueueSnapshotPath != "/var/lib/calmiverse/queue.json" {
		t.Fatalf("QueueSnapshotPath = %q", cfg.QueueSnapshotPath)
	}
}
