package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	worker "github.com/stylehive/feedcast/internal/adapters/mq/worker"
	"github.com/stylehive/feedcast/internal/domain/model"
	logging "github.com/stylehive/feedcast/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logging.Init(); err != nil {
		panic(err)
	}
}

// Mock implementations for testing.
type mockQueue struct {
	eventChan chan worker.Event
}

func newMockQueue() *mockQueue {
	return &mockQueue{
		eventChan: make(chan worker.Event, 10),
	}
}

func (mq *mockQueue) Dequeue(ctx context.Context) <-chan worker.Event {
	return mq.eventChan
}

func (mq *mockQueue) addEvent(event worker.Event) {
	mq.eventChan <- event
}

type mockDispatcher struct {
	mu        sync.Mutex
	seen      []string
	failures  map[string]error
	processed chan struct{}
}

func newMockDispatcher() *mockDispatcher {
	return &mockDispatcher{
		failures:  make(map[string]error),
		processed: make(chan struct{}, 16),
	}
}

func (md *mockDispatcher) DispatchEvent(ctx context.Context, ev model.FeedEvent) error {
	md.mu.Lock()
	md.seen = append(md.seen, ev.Activity.ID)
	err := md.failures[ev.Activity.ID]
	md.mu.Unlock()

	md.processed <- struct{}{}
	return err
}

func (md *mockDispatcher) setError(activityID string, err error) {
	md.mu.Lock()
	defer md.mu.Unlock()
	md.failures[activityID] = err
}

func (md *mockDispatcher) seenIDs() []string {
	md.mu.Lock()
	defer md.mu.Unlock()
	return append([]string(nil), md.seen...)
}

func testEvent(activityID string) worker.Event {
	return model.FeedEvent{
		DeliveryID: activityID + "|push",
		Activity: model.Activity{
			ID:         activityID,
			ActorID:    "user-a",
			Verb:       model.VerbLikeProduct,
			TargetType: "product",
		},
		Direction: model.Push,
	}
}

func waitProcessed(t *testing.T, md *mockDispatcher, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-md.processed:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func TestFanoutWorker(t *testing.T) {
	convey.Convey("Given a worker over a mock queue and dispatcher", t, func() {
		mq := newMockQueue()
		md := newMockDispatcher()
		w := worker.NewFanoutWorker(mq, md, worker.WithName("test-worker"))

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When an event arrives", func() {
			mq.addEvent(testEvent("act-1"))
			waitProcessed(t, md, 1)

			convey.Convey("Then the dispatcher receives it", func() {
				convey.So(md.seenIDs(), convey.ShouldResemble, []string{"act-1"})
			})
		})

		convey.Convey("When the dispatcher fails for one event", func() {
			md.setError("act-bad", errors.New("target store down"))
			mq.addEvent(testEvent("act-bad"))
			mq.addEvent(testEvent("act-good"))
			waitProcessed(t, md, 2)

			convey.Convey("Then the worker keeps processing later events", func() {
				convey.So(md.seenIDs(), convey.ShouldResemble, []string{"act-bad", "act-good"})
			})
		})

		convey.Convey("When the worker is shut down", func() {
			err := w.Shutdown(context.Background())

			convey.Convey("Then shutdown completes cleanly", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}

func TestFanoutWorkerStopsOnClosedQueue(t *testing.T) {
	convey.Convey("Given a worker whose queue closes", t, func() {
		mq := newMockQueue()
		md := newMockDispatcher()
		w := worker.NewFanoutWorker(mq, md)

		done := make(chan struct{})
		go func() {
			w.Run(context.Background())
			close(done)
		}()

		close(mq.eventChan)

		convey.Convey("Then the run loop exits", func() {
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				t.Fatal("worker did not exit after queue close")
			}
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool of four workers", t, func() {
		mq := newMockQueue()
		md := newMockDispatcher()
		p := worker.NewPool(4, mq, md)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		p.Start(ctx)

		convey.Convey("When events arrive", func() {
			for i := 0; i < 8; i++ {
				mq.addEvent(testEvent("act-" + string(rune('a'+i))))
			}
			waitProcessed(t, md, 8)

			convey.Convey("Then every event is dispatched exactly once", func() {
				convey.So(md.seenIDs(), convey.ShouldHaveLength, 8)
			})
		})

		convey.Convey("When the pool shuts down", func() {
			cancel()
			err := p.Shutdown(context.Background())

			convey.Convey("Then shutdown completes", func() {
				convey.So(err, convey.ShouldBeNil)
			})
		})
	})
}
