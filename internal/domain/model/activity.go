// Package model contains domain models passed between layers.
package model

import "time"

// Verb identifies the kind of social action an activity records.
type Verb string

// Known verbs. New verbs only need a rules-table entry, not code changes.
const (
	VerbFollow      Verb = "follow"
	VerbLikeProduct Verb = "like_product"
	VerbLikeLook    Verb = "like_look"
	VerbAddProduct  Verb = "add_product"
	VerbCreate      Verb = "create"
)

// Gender tags an activity or a feed partition.
type Gender string

const (
	GenderMale   Gender = "m"
	GenderFemale Gender = "f"
	GenderNone   Gender = ""
)

// Genders lists the feed partitions every fan-out targets.
func Genders() []Gender {
	return []Gender{GenderMale, GenderFemale}
}

// Activity is the canonical durable record of one social action.
// Identity is (ActorID, Verb, TargetType, TargetID); the canonical store
// guarantees at most one active record per identity.
type Activity struct {
	ID         string
	ActorID    string
	Verb       Verb
	TargetType string
	TargetID   string
	Gender     Gender
	CreatedAt  time.Time
	Active     bool
}

// Score is the feed ranking score for this activity, seconds precision.
func (a Activity) Score() int64 {
	return a.CreatedAt.Unix()
}

// Direction selects whether an event adds to or removes from feeds.
type Direction int

const (
	Push Direction = iota
	Retract
)

// String returns the wire/log name of the direction.
func (d Direction) String() string {
	if d == Retract {
		return "retract"
	}
	return "push"
}

// FeedEvent is the unit of work flowing through the queue to the fan-out
// workers.
type FeedEvent struct {
	// DeliveryID identifies one delivery for intake deduplication.
	// Empty means the delivery is never deduplicated.
	DeliveryID string

	Activity  Activity
	Direction Direction

	// ClearFirst asks the dispatcher to run a retract sweep over the same
	// targets before pushing, clearing stale aggregation state after an
	// activity's attributes changed.
	ClearFirst bool

	// OnlyUserID restricts fan-out to a single user's feeds. Used when a
	// follow edge changes and one follower's feed must catch up or forget.
	OnlyUserID string
}
