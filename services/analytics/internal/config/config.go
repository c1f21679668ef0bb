package config

import (
	"time"

	platformconfig "github.com/example/storyhub/internal/platform/config"
)

// Config holds the analytics consumer settings on top of the shared
// platform config.
type Config struct {
	BatchSize int           // NATS fetch batch size
	MaxWait   time.Duration // NATS fetch wait
	Durable   string
}

// Load reads Config from environment variables.
func Load() Config {
	return Config{
		BatchSize: platformconfig.Int("WORKER_BATCH_SIZE", 200),
		MaxWait:   platformconfig.Duration("WORKER_BATCH_INTERVAL", 2*time.Second),
		Durable:   platformconfig.String("ANALYTICS_DURABLE", "analytics_processor"),
	}
}
