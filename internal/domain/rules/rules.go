// Package rules centralizes per-verb feed behavior so new verbs are added
// by data, not by scattered conditionals.
package rules

import "github.com/stylehive/feedcast/internal/domain/model"

// Rule describes how one verb behaves during aggregation and fan-out.
type Rule struct {
	// MergeByActivity allows a repeat activity from the same user to be
	// appended to that user's existing entry. Verbs with this off always
	// open a fresh entry per activity.
	MergeByActivity bool

	// PublicEligible allows the verb onto the public feed at all.
	PublicEligible bool

	// Gendered applies the feed-gender partition on follower feeds, not
	// just the public feed.
	Gendered bool

	// PrivateOnly restricts the verb to the acting user's own private
	// feed; it never reaches the public feed or anyone else's feed.
	PrivateOnly bool
}

var table = map[model.Verb]Rule{
	model.VerbFollow:      {MergeByActivity: true, PublicEligible: false, PrivateOnly: true},
	model.VerbLikeProduct: {MergeByActivity: true, PublicEligible: true},
	model.VerbLikeLook:    {MergeByActivity: false, PublicEligible: true},
	model.VerbAddProduct:  {MergeByActivity: true, PublicEligible: false, Gendered: true},
	model.VerbCreate:      {MergeByActivity: false, PublicEligible: true},
}

// fallback covers verbs the table does not know about.
var fallback = Rule{MergeByActivity: true, PublicEligible: true}

// For returns the rule for verb.
func For(verb model.Verb) Rule {
	if r, ok := table[verb]; ok {
		return r
	}
	return fallback
}
