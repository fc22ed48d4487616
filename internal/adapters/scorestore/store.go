// Package scorestore defines the ordered-score store contract backing
// feeds, with Redis sorted sets as the production backend and an
// in-process backend for tests and single-node deployments.
package scorestore

import "context"

// Member is one scored member of a feed's sorted set.
type Member struct {
	Value string
	Score int64
}

// Store provides sorted-set semantics addressed by a string feed key.
// Scores are unix seconds. Implementations either succeed or return an
// error; they never retry on their own.
type Store interface {
	// Add inserts value with score, replacing the score if value exists.
	Add(ctx context.Context, key string, score int64, value string) error

	// Remove deletes members by exact value. Missing members are ignored.
	Remove(ctx context.Context, key string, values ...string) error

	// RangeDesc returns every member of key ordered by score descending,
	// ties broken by value ascending.
	RangeDesc(ctx context.Context, key string) ([]Member, error)

	// RangeByScoreDesc returns members with score >= min, ordered by
	// score descending.
	RangeByScoreDesc(ctx context.Context, key string, min int64) ([]Member, error)

	// Card returns the number of members in key.
	Card(ctx context.Context, key string) (int64, error)

	// TrimToNewest removes the lowest-scored members beyond the max
	// newest ones. The removal is conditional: when the key is modified
	// concurrently between read and write the pass is abandoned and
	// aborted is true with no error and no partial removal.
	TrimToNewest(ctx context.Context, key string, max int64) (removed int64, aborted bool, err error)
}
