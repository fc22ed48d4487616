package engine

import (
	"context"
	"fmt"

	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/internal/domain/rules"
	"github.com/stylehive/feedcast/pkg/logger"
	"github.com/stylehive/feedcast/pkg/metrics"
)

// Outcome reports what Aggregate did with an activity.
type Outcome int

const (
	// OutcomeSkipped means an inclusion rule kept the activity off this feed.
	OutcomeSkipped Outcome = iota
	// OutcomeCreated means a fresh single-user single-activity entry was added.
	OutcomeCreated
	// OutcomeMerged means the activity was folded into an existing entry.
	OutcomeMerged
	// OutcomeDuplicate means the contribution was already present; no-op.
	OutcomeDuplicate
)

// String returns the log name of the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeMerged:
		return "merged"
	case OutcomeDuplicate:
		return "duplicate"
	default:
		return "skipped"
	}
}

// Aggregate idempotently folds activity into the (audience, gender) feed.
// Inclusion rules may skip the feed entirely; otherwise the activity is
// merged into the newest structurally-eligible entry within the merge
// window (first fit) or opens a fresh entry. Entries are immutable values:
// a merge deletes the old member and inserts the replacement. The feed is
// trimmed after any mutation.
func (e *Engine) Aggregate(ctx context.Context, audience feed.Audience, gender model.Gender, a model.Activity) (Outcome, error) {
	rule := rules.For(a.Verb)

	// Inclusion rules: decide whether this activity belongs here at all.
	switch {
	case rule.PrivateOnly && !audience.IsPrivateOf(a.ActorID):
		return OutcomeSkipped, nil
	case audience.IsPublic() && !rule.PublicEligible:
		return OutcomeSkipped, nil
	case audience.IsPublic() && a.Gender != model.GenderNone && a.Gender != gender:
		return OutcomeSkipped, nil
	case !audience.IsPublic() && !audience.IsPrivateOf(a.ActorID) &&
		rule.Gendered && a.Gender != model.GenderNone && a.Gender != gender:
		return OutcomeSkipped, nil
	}

	key := audience.Key(gender)
	minScore := e.now().Add(-e.mergeWindow).Unix()

	candidates, err := e.store.RangeByScoreDesc(ctx, key, minScore)
	if err != nil {
		return OutcomeSkipped, fmt.Errorf("read merge candidates: %w", err)
	}

	// Newest first, first fit wins.
	for _, m := range candidates {
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

		if entry.HasUser(a.ActorID) && entry.HasActivity(a.ID) {
			metrics.RecordAggregateDuplicate()
			return OutcomeDuplicate, nil
		}
		if entry.Frozen() {
			continue
		}

		var merged feed.Entry
		switch {
		case rule.MergeByActivity && len(entry.UserIDs) == 1 &&
			entry.UserIDs[0] == a.ActorID && !entry.HasActivity(a.ID):
			merged = entry.WithActivity(a.ID)
		case len(entry.ActivityIDs) == 1 &&
			entry.ActivityIDs[0] == a.ID && !entry.HasUser(a.ActorID):
			merged = entry.WithUser(a.ActorID)
		default:
			continue
		}

		if err := e.replace(ctx, key, m.Value, merged, a.Score()); err != nil {
			return OutcomeSkipped, err
		}
		metrics.RecordAggregateMerged()
		if err := e.Trim(ctx, key); err != nil {
			return OutcomeMerged, err
		}
		return OutcomeMerged, nil
	}

	encoded, err := feed.NewEntry(a).Encode()
	if err != nil {
		return OutcomeSkipped, err
	}
	if err := e.store.Add(ctx, key, a.Score(), encoded); err != nil {
		return OutcomeSkipped, fmt.Errorf("insert aggregate entry: %w", err)
	}
	metrics.RecordAggregateCreated()
	if err := e.Trim(ctx, key); err != nil {
		return OutcomeCreated, err
	}
	return OutcomeCreated, nil
}

// replace swaps an existing member for its successor at score.
func (e *Engine) replace(ctx context.Context, key, old string, next feed.Entry, score int64) error {
	encoded, err := next.Encode()
	if err != nil {
		return err
	}
	if err := e.store.Remove(ctx, key, old); err != nil {
		return fmt.Errorf("remove superseded entry: %w", err)
	}
	if err := e.store.Add(ctx, key, score, encoded); err != nil {
		return fmt.Errorf("insert replacement entry: %w", err)
	}
	return nil
}
