package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/stylehive/feedcast/internal/adapters/scorestore"
	service "github.com/stylehive/feedcast/internal/app"
	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func testActivity(id, actor string) model.Activity {
	return model.Activity{
		ID:         id,
		ActorID:    actor,
		Verb:       model.VerbCreate,
		TargetType: "look",
		TargetID:   "look-1",
		CreatedAt:  testNow,
		Active:     true,
	}
}

// waitForCard polls until the feed at key holds want members or the
// deadline passes. Fan-out is asynchronous; tests observe its effect.
func waitForCard(ctx context.Context, store scorestore.Store, key string, want int64) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		n, err := store.Card(ctx, key)
		if err == nil && n == want {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Size(), ShouldEqual, 0)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithMaxEntries(100),
			service.WithMergeWindow(6*time.Hour),
			service.WithFollowLookback(7*24*time.Hour),
		)

		Convey("Then it should be created successfully", func() {
			So(svc, ShouldNotBeNil)
		})
	})
}

func TestService_StartStop(t *testing.T) {
	Convey("Given a service", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(2))

		Convey("When starting it", func() {
			err := svc.Start(ctx)
			So(err, ShouldBeNil)
			defer svc.Stop()

			Convey("Then starting again is a no-op", func() {
				So(svc.Start(ctx), ShouldBeNil)
			})

			Convey("Then stats report the running state", func() {
				stats := svc.GetStats()
				So(stats["started"], ShouldBeTrue)
				So(stats["workerCount"], ShouldEqual, 2)
			})
		})

		Convey("When using it before start", func() {
			err := svc.OnActivityCreated(ctx, testActivity("act-1", "user-a"))

			Convey("Then the call is rejected", func() {
				So(err, ShouldEqual, service.ErrNotStarted)
			})
		})
	})
}

func TestService_OnActivityCreated(t *testing.T) {
	Convey("Given a running service over an inspectable store", t, func() {
		ctx := context.Background()
		store := scorestore.NewMemoryStore()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithScoreStore(store),
			service.WithClock(func() time.Time { return testNow }),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When an activity is created", func() {
			So(svc.OnActivityCreated(ctx, testActivity("act-1", "user-a")), ShouldBeNil)

			Convey("Then it eventually lands on the actor's feeds", func() {
				key := feed.UserPrivate("user-a").Key(model.GenderMale)
				So(waitForCard(ctx, store, key, 1), ShouldBeTrue)

				publicKey := feed.Public().Key(model.GenderFemale)
				So(waitForCard(ctx, store, publicKey, 1), ShouldBeTrue)
			})

			Convey("And the delivery is recorded for deduplication", func() {
				So(svc.Size(), ShouldEqual, 1)

				Convey("So a redelivery is absorbed", func() {
					So(svc.OnActivityCreated(ctx, testActivity("act-1", "user-a")), ShouldBeNil)
					So(svc.Size(), ShouldEqual, 1)
				})
			})
		})

		Convey("When an activity arrives without an id", func() {
			anon := testActivity("", "user-a")

			Convey("Then creation and retraction deliveries are rejected", func() {
				So(svc.OnActivityCreated(ctx, anon), ShouldEqual, service.ErrEmptyActivityID)
				So(svc.OnActivityRetracted(ctx, anon), ShouldEqual, service.ErrEmptyActivityID)

				Convey("And nothing was recorded for deduplication", func() {
					So(svc.Size(), ShouldEqual, 0)
				})
			})
		})

		Convey("When an activity is created and then retracted", func() {
			So(svc.OnActivityCreated(ctx, testActivity("act-1", "user-a")), ShouldBeNil)

			key := feed.UserPrivate("user-a").Key(model.GenderMale)
			So(waitForCard(ctx, store, key, 1), ShouldBeTrue)

			So(svc.OnActivityRetracted(ctx, testActivity("act-1", "user-a")), ShouldBeNil)

			Convey("Then its feeds drain back to empty", func() {
				So(waitForCard(ctx, store, key, 0), ShouldBeTrue)
				So(waitForCard(ctx, store, feed.Public().Key(model.GenderMale), 0), ShouldBeTrue)
			})

			Convey("And the retraction delivery is deduplicated separately", func() {
				So(svc.Size(), ShouldEqual, 2)
			})
		})
	})
}

func TestService_OnFollowChangedWithoutSocialStore(t *testing.T) {
	Convey("Given a running service without a social store", t, func() {
		ctx := context.Background()
		svc := service.New(service.WithWorkerCount(1))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When a follow change arrives", func() {
			err := svc.OnFollowChanged(ctx, "fan-1", "user-a", true)

			Convey("Then it is rejected", func() {
				So(err, ShouldNotBeNil)
			})
		})
	})
}
