package config

import (
	"time"

	platformconfig "github.com/example/storyhub/internal/platform/config"
)

type CacheConfig struct {
	OptionsTTL time.Duration
}

func LoadCache() CacheConfig {
	return CacheConfig{OptionsTTL: platformconfig.Duration("FILTER_OPTIONS_TTL", time.Minute)}
}
