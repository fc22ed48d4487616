package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if FEEDCAST_CONFIG is set
//  3. env (prefix FEEDCAST_)
func Load(ctx context.Context) (*Config, error) {
	// Start with defaults
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("FEEDCAST_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: FEEDCAST_ADDR, FEEDCAST_QUEUE_SIZE, ...
	// Map env keys like FEEDCAST_QUEUE_SIZE -> queue_size (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("FEEDCAST_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "feedcast_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Basic validation
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	switch cfg.Store {
	case StoreRedis:
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("%w: redis_addr is required when store is redis", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return nil, fmt.Errorf("%w: store must be redis or memory", ErrInvalidConfig)
	}
	if cfg.FeedMaxEntries <= 0 {
		return nil, fmt.Errorf("%w: feed_max_entries must be positive", ErrInvalidConfig)
	}
	if cfg.MergeWindowHours <= 0 {
		return nil, fmt.Errorf("%w: merge_window_hours must be positive", ErrInvalidConfig)
	}
	return &cfg, nil
}
