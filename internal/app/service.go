// Package service wires intake deduplication, the event queue, the
// fan-out worker pool and the aggregation engine into one unit.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	eventqueue "github.com/stylehive/feedcast/internal/adapters/mq/queue"
	workerpool "github.com/stylehive/feedcast/internal/adapters/mq/worker"
	"github.com/stylehive/feedcast/internal/adapters/scorestore"
	"github.com/stylehive/feedcast/internal/adapters/social"
	"github.com/stylehive/feedcast/internal/domain/dedupe"
	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/internal/engine"
	"github.com/stylehive/feedcast/pkg/logger"
	"github.com/stylehive/feedcast/pkg/metrics"
)

const defaultFollowLookback = 30 * 24 * time.Hour

// Service implements the feed intake operations.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      scorestore.Store
	social     social.Store
	deduper    dedupe.Deduper
	eventQueue eventqueue.Queue
	engine     *engine.Engine
	workerPool *workerpool.Pool

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	maxEntries     int64
	mergeWindow    time.Duration
	followLookback time.Duration
	now            func() time.Time

	// State
	started bool
	stopCh  chan struct{}

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithWorkerCount sets the number of fan-out workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the maximum size of the event queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets the size of the delivery deduplication cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithScoreStore sets the feed score store backend. Defaults to the
// in-memory store when unset.
func WithScoreStore(store scorestore.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithSocialStore sets the canonical activity and follower store. When
// unset, fan-out skips follower feeds and follow changes are rejected.
func WithSocialStore(store social.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.social = store
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithMergeWindow sets how old an entry may be and still receive new
// contributions.
func WithMergeWindow(window time.Duration) Option {
	return func(s *Service) {
		if window > 0 {
			s.mergeWindow = window
		}
	}
}

// WithMaxEntries caps the number of aggregate entries kept per feed.
func WithMaxEntries(max int64) Option {
	return func(s *Service) {
		if max > 0 {
			s.maxEntries = max
		}
	}
}

// WithFollowLookback bounds how much history is replayed into a new
// follower's feed.
func WithFollowLookback(lookback time.Duration) Option {
	return func(s *Service) {
		if lookback > 0 {
			s.followLookback = lookback
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount:    runtime.NumCPU() * 4,
		queueSize:      100000,
		dedupeSize:     500000,
		followLookback: defaultFollowLookback,
		now:            time.Now,
		stopCh:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting feed service...")

	if s.store == nil {
		s.store = scorestore.NewMemoryStore()
		s.logger.Info(ctx, "using in-memory score store")
	}

	var followers engine.FollowerEnumerator
	if s.social != nil {
		followers = s.social
	}

	engineOpts := []engine.Option{
		engine.WithClock(s.now),
		engine.WithLogger(s.logger),
	}
	if s.mergeWindow > 0 {
		engineOpts = append(engineOpts, engine.WithMergeWindow(s.mergeWindow))
	}
	if s.maxEntries > 0 {
		engineOpts = append(engineOpts, engine.WithMaxEntries(s.maxEntries))
	}
	s.engine = engine.New(s.store, followers, engineOpts...)

	s.deduper = dedupe.NewInMemoryDeduper(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.eventQueue = eventqueue.NewInMemoryQueue(
		eventqueue.WithCapacity(s.queueSize),
		eventqueue.WithBufferSize(s.queueSize),
	)

	s.workerPool = workerpool.NewPool(s.workerCount, s.eventQueue, s.engine)
	s.workerPool.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "feed service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
	)

	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	s.logger.Info(context.Background(), "stopping feed service...")

	// Close the queue first so workers drain and exit on their own.
	if q, ok := s.eventQueue.(*eventqueue.InMemoryQueue); ok {
		_ = q.Close()
	}

	if s.workerPool != nil {
		s.workerPool.Stop()
	}

	select {
	case <-s.stopCh:
		// Channel already closed
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(context.Background(), "feed service stopped")
}

// OnActivityCreated records the activity in the canonical store when one
// is configured and schedules fan-out to every eligible feed. Redelivery
// of the same activity id is absorbed by the deduper.
func (s *Service) OnActivityCreated(ctx context.Context, a model.Activity) error {
	if err := s.ready(); err != nil {
		return err
	}
	if a.ID == "" {
		return ErrEmptyActivityID
	}

	if s.social != nil {
		if err := s.social.PutActivity(ctx, a); err != nil && !errors.Is(err, social.ErrAlreadyExists) {
			return fmt.Errorf("store activity: %w", err)
		}
	}

	deliveryID := a.ID + "|push"
	if s.SeenAndRecord(ctx, deliveryID) {
		s.logger.Debug(ctx, "duplicate activity delivery, skipping",
			logger.String("activityID", a.ID),
		)
		return nil
	}

	ev := model.FeedEvent{
		DeliveryID: deliveryID,
		Activity:   a,
		Direction:  model.Push,
	}
	if !s.eventQueue.Enqueue(ctx, ev) {
		// Allow the caller to retry the same delivery later.
		s.Unrecord(ctx, deliveryID)
		return ErrBackpressure
	}
	metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	return nil
}

// OnActivityRetracted marks the activity inactive and schedules its
// removal from every feed it reached. Idempotent per activity id.
func (s *Service) OnActivityRetracted(ctx context.Context, a model.Activity) error {
	if err := s.ready(); err != nil {
		return err
	}
	if a.ID == "" {
		return ErrEmptyActivityID
	}

	if s.social != nil {
		if err := s.social.DeactivateActivity(ctx, a.ID); err != nil {
			return fmt.Errorf("deactivate activity: %w", err)
		}
	}

	deliveryID := a.ID + "|retract"
	if s.SeenAndRecord(ctx, deliveryID) {
		s.logger.Debug(ctx, "duplicate retraction delivery, skipping",
			logger.String("activityID", a.ID),
		)
		return nil
	}

	ev := model.FeedEvent{
		DeliveryID: deliveryID,
		Activity:   a,
		Direction:  model.Retract,
	}
	if !s.eventQueue.Enqueue(ctx, ev) {
		s.Unrecord(ctx, deliveryID)
		return ErrBackpressure
	}
	metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	return nil
}

// OnFollowChanged updates the follower edge and replays the followee's
// recent activities into (or out of) the follower's feeds. Replay is
// bounded by the follow lookback window.
func (s *Service) OnFollowChanged(ctx context.Context, followerID, followeeID string, nowFollowing bool) error {
	if err := s.ready(); err != nil {
		return err
	}
	if s.social == nil {
		return fmt.Errorf("follow change for %s: social store not configured", followerID)
	}

	if nowFollowing {
		if err := s.social.PutFollow(ctx, followerID, followeeID); err != nil {
			return fmt.Errorf("record follow: %w", err)
		}
	} else {
		if err := s.social.DeleteFollow(ctx, followerID, followeeID); err != nil {
			return fmt.Errorf("remove follow: %w", err)
		}
	}

	since := s.now().Add(-s.followLookback)
	activities, err := s.social.RecentByActor(ctx, followeeID, since)
	if err != nil {
		return fmt.Errorf("load recent activities: %w", err)
	}

	direction := model.Push
	if !nowFollowing {
		direction = model.Retract
	}

	for _, a := range activities {
		ev := model.FeedEvent{
			DeliveryID: uuid.NewString(),
			Activity:   a,
			Direction:  direction,
			OnlyUserID: followerID,
		}
		if !s.eventQueue.Enqueue(ctx, ev) {
			return ErrBackpressure
		}
	}

	s.logger.Debug(ctx, "follow change replay scheduled",
		logger.String("followerID", followerID),
		logger.String("followeeID", followeeID),
		logger.Int("activities", len(activities)),
	)
	metrics.UpdateQueueSize(s.eventQueue.Len(ctx))
	return nil
}

// SeenAndRecord atomically checks if a delivery id was seen and records
// it if not. Returns true if the delivery was already seen.
func (s *Service) SeenAndRecord(ctx context.Context, id string) bool {
	seen := s.deduper.SeenAndRecord(ctx, id)
	if seen {
		metrics.RecordEventDuplicate()
	}
	return seen
}

// Unrecord removes a delivery id from the seen list, allowing a retry.
func (s *Service) Unrecord(ctx context.Context, id string) {
	s.deduper.Unrecord(ctx, id)
}

// Size returns the current number of entries in the deduper.
func (s *Service) Size() int64 {
	if s.deduper == nil {
		return 0
	}
	return s.deduper.Size()
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
		"queueSize":   s.queueSize,
		"dedupeSize":  s.dedupeSize,
	}

	if s.started {
		queueLen := s.eventQueue.Len(ctx)
		stats["queueLength"] = queueLen
		stats["dedupeEntries"] = s.Size()

		metrics.UpdateQueueSize(queueLen)
		metrics.UpdateWorkerCount(s.workerCount)
	}

	return stats
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}
