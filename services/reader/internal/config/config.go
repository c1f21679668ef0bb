package config

import (
	"time"

	platformconfig "github.com/example/storyhub/internal/platform/config"
)

type ReaderConfig struct {
	GRPCAddr      string
	FlushInterval time.Duration
}

func Load() ReaderConfig {
	return ReaderConfig{
		GRPCAddr:      platformconfig.String("GRPC_ADDR", ":9092"),
		FlushInterval: platformconfig.Duration("PROGRESS_FLUSH_INTERVAL", 5*time.Minute),
	}
}
