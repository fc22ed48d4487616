package engine

import (
	"context"
	"fmt"

	"github.com/stylehive/feedcast/pkg/logger"
	"github.com/stylehive/feedcast/pkg/metrics"
)

// Trim bounds the feed at key to the newest maxEntries entries. The
// removal is optimistic: when the feed changed between read and write the
// pass is abandoned without error and without retrying; the next write to
// the feed triggers another attempt. A transiently oversized feed is
// accepted.
func (e *Engine) Trim(ctx context.Context, key string) error {
	removed, aborted, err := e.store.TrimToNewest(ctx, key, e.maxEntries)
	if err != nil {
		return fmt.Errorf("trim feed: %w", err)
	}
	if aborted {
		metrics.RecordTrimAbort()
		e.log.Debug(ctx, "trim pass abandoned, feed changed concurrently",
			logger.String("key", key),
		)
		return nil
	}
	if removed > 0 {
		metrics.RecordTrimEvictions(int(removed))
	}
	return nil
}
