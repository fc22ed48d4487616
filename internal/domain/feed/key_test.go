package feed_test

import (
	"testing"

	"github.com/stylehive/feedcast/internal/domain/feed"
	"github.com/stylehive/feedcast/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestAudienceKeys(t *testing.T) {
	Convey("Given the three audience kinds", t, func() {
		Convey("Then each resolves to its documented key shape", func() {
			So(feed.Public().Key(model.GenderMale), ShouldEqual, "feed:public:m")
			So(feed.Public().Key(model.GenderFemale), ShouldEqual, "feed:public:f")
			So(feed.User("user-a").Key(model.GenderMale), ShouldEqual, "feed:user:user-a:m")
			So(feed.UserPrivate("user-a").Key(model.GenderFemale), ShouldEqual, "feed:private:user-a:f")
		})

		Convey("Then no two distinct audiences collide on a key", func() {
			keys := map[string]struct{}{}
			audiences := []feed.Audience{
				feed.Public(),
				feed.User("user-a"),
				feed.User("user-b"),
				feed.UserPrivate("user-a"),
				feed.UserPrivate("user-b"),
			}
			for _, a := range audiences {
				for _, g := range model.Genders() {
					k := a.Key(g)
					_, dup := keys[k]
					So(dup, ShouldBeFalse)
					keys[k] = struct{}{}
				}
			}
		})
	})
}

func TestAudiencePredicates(t *testing.T) {
	Convey("Given audience predicates", t, func() {
		So(feed.Public().IsPublic(), ShouldBeTrue)
		So(feed.User("user-a").IsPublic(), ShouldBeFalse)

		So(feed.UserPrivate("user-a").IsPrivateOf("user-a"), ShouldBeTrue)
		So(feed.UserPrivate("user-a").IsPrivateOf("user-b"), ShouldBeFalse)
		So(feed.User("user-a").IsPrivateOf("user-a"), ShouldBeFalse)

		So(feed.Public().UserID(), ShouldBeEmpty)
		So(feed.User("user-a").UserID(), ShouldEqual, "user-a")
	})
}
