package service_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stylehive/feedcast/internal/adapters/scorestore"
	"github.com/stylehive/feedcast/internal/adapters/social/sqlite"
	service "github.com/stylehive/feedcast/internal/app"
	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService_FollowReplayIntegration(t *testing.T) {
	Convey("Given a running service backed by a sqlite social store", t, func() {
		ctx := context.Background()
		now := testNow

		socialStore, err := sqlite.Open(filepath.Join(t.TempDir(), "social.db"))
		So(err, ShouldBeNil)
		defer func() { _ = socialStore.Close() }()

		store := scorestore.NewMemoryStore()
		svc := service.New(
			service.WithWorkerCount(2),
			service.WithScoreStore(store),
			service.WithSocialStore(socialStore),
			service.WithClock(func() time.Time { return now }),
			service.WithFollowLookback(30*24*time.Hour),
		)
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		Convey("When user A creates two looks before anyone follows them", func() {
			for i := 1; i <= 2; i++ {
				a := model.Activity{
					ID:         fmt.Sprintf("act-%d", i),
					ActorID:    "user-a",
					Verb:       model.VerbCreate,
					TargetType: "look",
					TargetID:   fmt.Sprintf("look-%d", i),
					CreatedAt:  now.Add(-time.Duration(i) * time.Hour),
					Active:     true,
				}
				So(svc.OnActivityCreated(ctx, a), ShouldBeNil)
			}

			fanKey := feed.User("fan-1").Key(model.GenderMale)
			publicKey := feed.Public().Key(model.GenderMale)
			So(waitForCard(ctx, store, publicKey, 2), ShouldBeTrue)
			So(waitForCard(ctx, store, fanKey, 0), ShouldBeTrue)

			Convey("And fan-1 then follows user A", func() {
				So(svc.OnFollowChanged(ctx, "fan-1", "user-a", true), ShouldBeNil)

				Convey("Then the recent history replays into fan-1's feed", func() {
					So(waitForCard(ctx, store, fanKey, 2), ShouldBeTrue)
				})

				Convey("Then the follow edge is durable", func() {
					followers, err := socialStore.Followers(ctx, "user-a")
					So(err, ShouldBeNil)
					So(followers, ShouldResemble, []string{"fan-1"})
				})

				Convey("And a later activity reaches fan-1 directly", func() {
					So(waitForCard(ctx, store, fanKey, 2), ShouldBeTrue)

					a := model.Activity{
						ID:         "act-3",
						ActorID:    "user-a",
						Verb:       model.VerbCreate,
						TargetType: "look",
						TargetID:   "look-3",
						CreatedAt:  now,
						Active:     true,
					}
					So(svc.OnActivityCreated(ctx, a), ShouldBeNil)
					So(waitForCard(ctx, store, fanKey, 3), ShouldBeTrue)
				})

				Convey("And unfollowing drains fan-1's feed again", func() {
					So(waitForCard(ctx, store, fanKey, 2), ShouldBeTrue)

					So(svc.OnFollowChanged(ctx, "fan-1", "user-a", false), ShouldBeNil)
					So(waitForCard(ctx, store, fanKey, 0), ShouldBeTrue)

					Convey("While the public feed is untouched", func() {
						So(waitForCard(ctx, store, publicKey, 2), ShouldBeTrue)
					})
				})
			})

			Convey("And retracting one activity removes it everywhere", func() {
				a := model.Activity{
					ID:         "act-1",
					ActorID:    "user-a",
					Verb:       model.VerbCreate,
					TargetType: "look",
					TargetID:   "look-1",
					CreatedAt:  now.Add(-time.Hour),
					Active:     true,
				}
				So(svc.OnActivityRetracted(ctx, a), ShouldBeNil)

				So(waitForCard(ctx, store, publicKey, 1), ShouldBeTrue)

				Convey("Then the canonical record is inactive", func() {
					got, err := socialStore.GetActivity(ctx, "act-1")
					So(err, ShouldBeNil)
					So(got.Active, ShouldBeFalse)
				})
			})
		})
	})
}
