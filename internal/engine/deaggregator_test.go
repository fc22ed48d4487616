package engine_test

import (
	"context"
	"testing"

	"github.com/stylehive/feedcast/internal/adapters/scorestore"
	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRetractSingleContribution(t *testing.T) {
	ctx := context.Background()

	Convey("Given a feed with one single-contribution entry", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		audience := feed.UserPrivate("user-a")
		key := audience.Key(model.GenderMale)

		a := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
		_, err := e.Aggregate(ctx, audience, model.GenderMale, a)
		So(err, ShouldBeNil)

		Convey("When the activity is retracted", func() {
			So(e.Retract(ctx, key, a), ShouldBeNil)

			Convey("Then the feed is empty again", func() {
				n, err := store.Card(ctx, key)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})

			Convey("And retracting again is a no-op", func() {
				So(e.Retract(ctx, key, a), ShouldBeNil)

				n, err := store.Card(ctx, key)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})

		Convey("When retracting an activity that never aggregated here", func() {
			other := activity("act-9", "user-z", model.VerbLikeProduct, "product", "prod-9")
			So(e.Retract(ctx, key, other), ShouldBeNil)

			Convey("Then the entry is left alone", func() {
				n, err := store.Card(ctx, key)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})
	})
}

func TestRetractShrinksLargerEntries(t *testing.T) {
	ctx := context.Background()

	Convey("Given an entry aggregating two activities of one user", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		audience := feed.UserPrivate("user-a")
		key := audience.Key(model.GenderMale)

		a1 := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
		a2 := activity("act-2", "user-a", model.VerbLikeProduct, "product", "prod-2")
		_, err := e.Aggregate(ctx, audience, model.GenderMale, a1)
		So(err, ShouldBeNil)
		_, err = e.Aggregate(ctx, audience, model.GenderMale, a2)
		So(err, ShouldBeNil)

		Convey("When one activity is retracted", func() {
			So(e.Retract(ctx, key, a1), ShouldBeNil)

			Convey("Then the entry shrinks to the surviving activity", func() {
				members, err := store.RangeDesc(ctx, key)
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 1)

				entries := decodeAll(t, members)
				So(entries[0].UserIDs, ShouldResemble, []string{"user-a"})
				So(entries[0].ActivityIDs, ShouldResemble, []string{"act-2"})
			})

			Convey("And retracting the survivor deletes the entry", func() {
				So(e.Retract(ctx, key, a2), ShouldBeNil)

				n, err := store.Card(ctx, key)
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 0)
			})
		})
	})

	Convey("Given an entry aggregating two users of one activity", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		audience := feed.User("fan-1")
		key := audience.Key(model.GenderMale)

		a := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
		b := activity("act-1", "user-b", model.VerbLikeProduct, "product", "prod-1")
		_, err := e.Aggregate(ctx, audience, model.GenderMale, a)
		So(err, ShouldBeNil)
		_, err = e.Aggregate(ctx, audience, model.GenderMale, b)
		So(err, ShouldBeNil)

		Convey("When user A's contribution is retracted", func() {
			So(e.Retract(ctx, key, a), ShouldBeNil)

			Convey("Then only user B remains on the entry", func() {
				members, err := store.RangeDesc(ctx, key)
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 1)

				entries := decodeAll(t, members)
				So(entries[0].UserIDs, ShouldResemble, []string{"user-b"})
				So(entries[0].ActivityIDs, ShouldResemble, []string{"act-1"})
			})
		})
	})
}

func TestRetractKeepsEntryScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an entry whose rank predates the retraction", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		audience := feed.UserPrivate("user-a")
		key := audience.Key(model.GenderMale)

		a1 := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
		a2 := activity("act-2", "user-a", model.VerbLikeProduct, "product", "prod-2")
		_, err := e.Aggregate(ctx, audience, model.GenderMale, a1)
		So(err, ShouldBeNil)
		_, err = e.Aggregate(ctx, audience, model.GenderMale, a2)
		So(err, ShouldBeNil)

		before, err := store.RangeDesc(ctx, key)
		So(err, ShouldBeNil)
		So(before, ShouldHaveLength, 1)

		Convey("When a contribution is retracted", func() {
			So(e.Retract(ctx, key, a2), ShouldBeNil)

			Convey("Then the shrunk entry keeps the old score", func() {
				after, err := store.RangeDesc(ctx, key)
				So(err, ShouldBeNil)
				So(after, ShouldHaveLength, 1)
				So(after[0].Score, ShouldEqual, before[0].Score)
			})
		})
	})
}

func TestRetractStaleSingleEntry(t *testing.T) {
	ctx := context.Background()

	Convey("Given a single-contribution entry with a mismatched activity id", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		key := feed.UserPrivate("user-a").Key(model.GenderMale)

		stale := feed.Entry{
			Verb:        model.VerbLikeProduct,
			TargetType:  "product",
			UserIDs:     []string{"user-a"},
			ActivityIDs: []string{"act-other"},
		}
		encoded, err := stale.Encode()
		So(err, ShouldBeNil)
		So(store.Add(ctx, key, testNow.Unix(), encoded), ShouldBeNil)

		Convey("When retracting the same user's different activity", func() {
			a := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
			So(e.Retract(ctx, key, a), ShouldBeNil)

			Convey("Then the stale entry is left untouched", func() {
				members, err := store.RangeDesc(ctx, key)
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 1)
				So(members[0].Value, ShouldEqual, encoded)
			})
		})
	})
}

func TestRetractSkipsUndecodableMembers(t *testing.T) {
	ctx := context.Background()

	Convey("Given a feed polluted with an undecodable member", t, func() {
		store := scorestore.NewMemoryStore()
		e := newTestEngine(store, nil)
		audience := feed.UserPrivate("user-a")
		key := audience.Key(model.GenderMale)

		So(store.Add(ctx, key, testNow.Unix(), "{corrupt"), ShouldBeNil)

		a := activity("act-1", "user-a", model.VerbLikeProduct, "product", "prod-1")
		_, err := e.Aggregate(ctx, audience, model.GenderMale, a)
		So(err, ShouldBeNil)

		Convey("When retracting the valid activity", func() {
			So(e.Retract(ctx, key, a), ShouldBeNil)

			Convey("Then only the corrupt member survives the sweep", func() {
				members, err := store.RangeDesc(ctx, key)
				So(err, ShouldBeNil)
				So(members, ShouldHaveLength, 1)
				So(members[0].Value, ShouldEqual, "{corrupt")
			})
		})
	})
}
