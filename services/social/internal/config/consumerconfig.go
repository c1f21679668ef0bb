package config

import (
	"time"

	platformconfig "github.com/example/storyhub/internal/platform/config"
)

// ConsumerConfig tunes the catalog story-events consumer.
type ConsumerConfig struct {
	BatchSize int
	MaxWait   time.Duration
}

func LoadConsumer() ConsumerConfig {
	return ConsumerConfig{
		BatchSize: platformconfig.Int("WORKER_BATCH_SIZE", 100),
		MaxWait:   platformconfig.Duration("WORKER_BATCH_INTERVAL", 2*time.Second),
	}
}
