// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Store backend names.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the health/metrics HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// Store selects the score store backend: redis or memory.
	Store string `koanf:"store"`

	// RedisAddr is the Redis host:port when Store is redis.
	RedisAddr string `koanf:"redis_addr"`

	// RedisDB selects the Redis logical database.
	RedisDB int `koanf:"redis_db"`

	// RedisPassword is the optional Redis AUTH password.
	RedisPassword string `koanf:"redis_password"`

	// SQLitePath points at the canonical activity/follower database.
	// Empty disables the social store; fan-out then skips follower feeds.
	SQLitePath string `koanf:"sqlite_path"`

	// EventQueueSize bounds the in-memory feed event queue.
	EventQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of fan-out workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the delivery deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// FeedMaxEntries caps the number of aggregate entries kept per feed.
	FeedMaxEntries int `koanf:"feed_max_entries"`

	// MergeWindowHours bounds how old an entry may be and still receive
	// new contributions.
	MergeWindowHours int `koanf:"merge_window_hours"`

	// FollowLookbackDays bounds how much of a followee's history is
	// copied into a new follower's feed.
	FollowLookbackDays int `koanf:"follow_lookback_days"`
}

// New creates a Config with defaults.
func New() *Config {
	c := &Config{
		LogLevel:           "info",
		Addr:               ":9080",
		Store:              StoreMemory,
		RedisAddr:          "",
		RedisDB:            0,
		SQLitePath:         "",
		EventQueueSize:     100_000,
		WorkerCount:        runtime.NumCPU() * 4,
		DedupeSize:         500_000,
		FeedMaxEntries:     300,
		MergeWindowHours:   12,
		FollowLookbackDays: 30,
	}
	return c
}
