package rules_test

import (
	"testing"

	"github.com/stylehive/feedcast/internal/domain/model"
	"github.com/stylehive/feedcast/internal/domain/rules"
	. "github.com/smartystreets/goconvey/convey"
)

func TestVerbRules(t *testing.T) {
	Convey("Given the per-verb rule table", t, func() {
		Convey("Then follow stays on the actor's private feed only", func() {
			r := rules.For(model.VerbFollow)
			So(r.PrivateOnly, ShouldBeTrue)
			So(r.PublicEligible, ShouldBeFalse)
			So(r.MergeByActivity, ShouldBeTrue)
		})

		Convey("Then product likes merge and reach the public feed", func() {
			r := rules.For(model.VerbLikeProduct)
			So(r.MergeByActivity, ShouldBeTrue)
			So(r.PublicEligible, ShouldBeTrue)
			So(r.Gendered, ShouldBeFalse)
		})

		Convey("Then look likes never merge repeat actions from one user", func() {
			r := rules.For(model.VerbLikeLook)
			So(r.MergeByActivity, ShouldBeFalse)
			So(r.PublicEligible, ShouldBeTrue)
		})

		Convey("Then product additions are gendered and off the public feed", func() {
			r := rules.For(model.VerbAddProduct)
			So(r.Gendered, ShouldBeTrue)
			So(r.PublicEligible, ShouldBeFalse)
			So(r.MergeByActivity, ShouldBeTrue)
		})

		Convey("Then creations are public and never merge", func() {
			r := rules.For(model.VerbCreate)
			So(r.PublicEligible, ShouldBeTrue)
			So(r.MergeByActivity, ShouldBeFalse)
		})

		Convey("Then an unknown verb gets the permissive fallback", func() {
			r := rules.For(model.Verb("remix"))
			So(r.MergeByActivity, ShouldBeTrue)
			So(r.PublicEligible, ShouldBeTrue)
			So(r.Gendered, ShouldBeFalse)
			So(r.PrivateOnly, ShouldBeFalse)
		})
	})
}
