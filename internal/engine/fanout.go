package engine

import (
	"context"
	"errors"
	"time"

	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/pkg/logger"
	"github.com/stylehive/feedcast/pkg/metrics"
)

// DispatchOption adjusts one dispatch pass.
type DispatchOption func(*dispatchConfig)

type dispatchConfig struct {
	clearFirst bool
	onlyUserID string
}

// WithClearFirst runs a retract sweep over the same targets before a push,
// clearing stale aggregation state when an activity's attributes changed.
func WithClearFirst() DispatchOption {
	return func(c *dispatchConfig) {
		c.clearFirst = true
	}
}

// WithOnlyUser restricts fan-out to one user's normal feeds, used when a
// follow edge changed and a single follower's feed must catch up.
func WithOnlyUser(userID string) DispatchOption {
	return func(c *dispatchConfig) {
		if userID != "" {
			c.onlyUserID = userID
		}
	}
}

// target is one (audience, gender) feed a dispatch pass touches.
type target struct {
	audience feed.Audience
	gender   model.Gender
}

// Dispatch fans activity out to every feed it can appear in or must be
// removed from: the actor's private feed, the public feed, and every
// follower's feed, each in both gender partitions. Targets are
// independent; a failure on one target never prevents attempts on the
// rest, and the joined error reports every failed target.
func (e *Engine) Dispatch(ctx context.Context, a model.Activity, direction model.Direction, opts ...DispatchOption) error {
	var cfg dispatchConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	start := time.Now()
	defer func() {
		metrics.RecordFanoutLatency(float64(time.Since(start).Milliseconds()))
	}()
	metrics.RecordFanout()

	targets := e.resolveTargets(ctx, a, cfg)

	var errs []error
	for _, t := range targets {
		if err := e.dispatchTarget(ctx, t, a, direction, cfg.clearFirst); err != nil {
			metrics.RecordFanoutTargetError()
			e.log.Error(ctx, "fan-out target failed",
				logger.String("key", t.audience.Key(t.gender)),
				logger.String("direction", direction.String()),
				logger.String("activity", a.ID),
				logger.Error(err),
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// DispatchEvent runs one queued feed event through Dispatch.
func (e *Engine) DispatchEvent(ctx context.Context, ev model.FeedEvent) error {
	var opts []DispatchOption
	if ev.ClearFirst {
		opts = append(opts, WithClearFirst())
	}
	if ev.OnlyUserID != "" {
		opts = append(opts, WithOnlyUser(ev.OnlyUserID))
	}
	return e.Dispatch(ctx, ev.Activity, ev.Direction, opts...)
}

func (e *Engine) resolveTargets(ctx context.Context, a model.Activity, cfg dispatchConfig) []target {
	genders := model.Genders()

	if cfg.onlyUserID != "" {
		targets := make([]target, 0, len(genders))
		for _, g := range genders {
			targets = append(targets, target{audience: feed.User(cfg.onlyUserID), gender: g})
		}
		return targets
	}

	var targets []target
	for _, g := range genders {
		targets = append(targets, target{audience: feed.UserPrivate(a.ActorID), gender: g})
	}
	for _, g := range genders {
		targets = append(targets, target{audience: feed.Public(), gender: g})
	}

	if e.followers == nil {
		return targets
	}
	followerIDs, err := e.followers.Followers(ctx, a.ActorID)
	if err != nil {
		// An unavailable follower list means nothing to do for follower
		// feeds this pass; the private and public targets still run.
		e.log.Warn(ctx, "follower list unavailable, skipping follower feeds",
			logger.String("actor", a.ActorID),
			logger.Error(err),
		)
		return targets
	}
	for _, id := range followerIDs {
		for _, g := range genders {
			targets = append(targets, target{audience: feed.User(id), gender: g})
		}
	}
	return targets
}

func (e *Engine) dispatchTarget(ctx context.Context, t target, a model.Activity, direction model.Direction, clearFirst bool) error {
	key := t.audience.Key(t.gender)
	if direction == model.Retract {
		return e.Retract(ctx, key, a)
	}
	if clearFirst {
		if err := e.Retract(ctx, key, a); err != nil {
			return err
		}
	}
	_, err := e.Aggregate(ctx, t.audience, t.gender, a)
	return err
}
