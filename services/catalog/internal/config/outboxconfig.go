package config

import (
	"time"

	platformconfig "github.com/example/storyhub/internal/platform/config"
)

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

func LoadOutbox() OutboxConfig {
	return OutboxConfig{
		PollInterval: platformconfig.Duration("OUTBOX_POLL_INTERVAL", 2*time.Second),
		BatchSize:    platformconfig.Int("OUTBOX_BATCH_SIZE", 100),
	}
}
