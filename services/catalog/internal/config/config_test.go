package config

import (
	"testing"
	"time"
)

func TestLoadOutbox(t *testing.T) {
	t.Setenv("OUTBOX_POLL_INTERVAL", "")
	t.Setenv("OUTBOX_BATCH_SIZE", "")
	cfg := LoadOutbox()
	if cfg.PollInterval != 2*time.Second || cfg.BatchSize != 100 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}

	t.Setenv("OUTBOX_POLL_INTERVAL", "500ms")
	t.Setenv("OUTBOX_BATCH_SIZE", "25")
	cfg = LoadOutbox()
	if cfg.PollInterval != 500*time.Millisecond || cfg.BatchSize != 25 {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
}

func TestLoadCache(t *testing.T) {
	t.Setenv("FILTER_OPTIONS_TTL", "")
	if got := LoadCache().OptionsTTL; got != time.Minute {
		t.Fatalf("expected 1m default, got %s", got)
	}
	t.Setenv("FILTER_OPTIONS_TTL", "-5s")
	if got := LoadCache().OptionsTTL; got != time.Minute {
		t.Fatalf("expected fallback for negative ttl, got %s", got)
	}
}
