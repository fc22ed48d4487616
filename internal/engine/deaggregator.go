package engine

import (
	"context"
	"fmt"

	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/pkg/logger"
	"github.com/stylehive/feedcast/pkg/metrics"
)

// Retract reverses activity's contribution to the feed at key, shrinking
// or deleting matching aggregate entries. The whole feed is scanned,
// regardless of the merge window: retractions must find arbitrarily old
// entries. Retracting an activity that was never aggregated here is a
// no-op, not an error.
func (e *Engine) Retract(ctx context.Context, key string, a model.Activity) error {
	members, err := e.store.RangeDesc(ctx, key)
	if err != nil {
		return fmt.Errorf("scan feed for retraction: %w", err)
	}

	for _, m := range members {
		entry, err := feed.DecodeEntry(m.Value)
		if err != nil {
			e.log.Warn(ctx, "skipping undecodable feed member",
				logger.String("key", key),
				logger.Error(err),
			)
			continue
		}
		if !entry.Matches(a) {
			continue
		}

		hasUser := entry.HasUser(a.ActorID)
		hasActivity := entry.HasActivity(a.ID)
		if !hasUser && !hasActivity {
			continue
		}

		if len(entry.UserIDs) == 1 && len(entry.ActivityIDs) == 1 {
			if hasUser && hasActivity {
				if err := e.store.Remove(ctx, key, m.Value); err != nil {
					return fmt.Errorf("delete drained entry: %w", err)
				}
				metrics.RecordRetraction()
			}
			// A partial match on a single/single entry is stale state;
			// left untouched rather than guessing a repair.
			continue
		}

		// Remove whichever of actor id / activity id is present, but only
		// from a set large enough to survive the removal.
		shrunk := entry
		if hasUser && len(entry.UserIDs) > 1 {
			shrunk = shrunk.WithoutUser(a.ActorID)
		}
		if hasActivity && len(entry.ActivityIDs) > 1 {
			shrunk = shrunk.WithoutActivity(a.ID)
		}

		encoded, err := shrunk.Encode()
		if err != nil {
			return err
		}
		if encoded == m.Value {
			continue
		}
		// Replace at the same score; retraction never refreshes rank.
		if err := e.store.Remove(ctx, key, m.Value); err != nil {
			return fmt.Errorf("remove superseded entry: %w", err)
		}
		if err := e.store.Add(ctx, key, m.Score, encoded); err != nil {
			return fmt.Errorf("insert shrunk entry: %w", err)
		}
		metrics.RecordRetraction()
	}

	return nil
}
