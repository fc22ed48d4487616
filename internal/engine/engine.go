// Package engine implements the feed aggregation core: merging activities
// into aggregate entries, reversing contributions, bounding feed size, and
// fanning one activity out to every feed it belongs to.
package engine

import (
	"context"
	"time"

	"github.com/stylehive/feedcast/internal/adapters/scorestore"
	"github.com/stylehive/feedcast/pkg/logger"
)

// Default engine configuration constants.
const (
	defaultMergeWindow = 12 * time.Hour
	defaultMaxEntries  = 300
)

// FollowerEnumerator supplies the current followers of a user. Staleness
// is tolerated; an error is treated as "no follower targets this pass".
type FollowerEnumerator interface {
	Followers(ctx context.Context, userID string) ([]string, error)
}

// Engine coordinates aggregation, retraction, trimming, and fan-out
// against one score store. Concurrent calls against the same feed key may
// race; aggregation is deliberately not serialized per key (lost updates
// are accepted), only trimming is guarded.
type Engine struct {
	store     scorestore.Store
	followers FollowerEnumerator

	now         func() time.Time
	mergeWindow time.Duration
	maxEntries  int64

	log logger.Logger
}

// Option applies a configuration option to the Engine.
type Option func(*Engine)

// WithClock injects the time source used for the merge window.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// WithMergeWindow sets how recent an entry must be to receive new
// contributions.
func WithMergeWindow(window time.Duration) Option {
	return func(e *Engine) {
		if window > 0 {
			e.mergeWindow = window
		}
	}
}

// WithMaxEntries sets the per-feed entry bound enforced by trimming.
func WithMaxEntries(max int64) Option {
	return func(e *Engine) {
		if max > 0 {
			e.maxEntries = max
		}
	}
}

// WithLogger sets a custom logger for the engine.
func WithLogger(log logger.Logger) Option {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// New constructs an Engine over store. followers may be nil when the
// deployment has no follower source; fan-out then covers only the private
// and public feeds.
func New(store scorestore.Store, followers FollowerEnumerator, opts ...Option) *Engine {
	e := &Engine{
		store:       store,
		followers:   followers,
		now:         time.Now,
		mergeWindow: defaultMergeWindow,
		maxEntries:  defaultMaxEntries,
		log:         logger.Get().Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
