// Package social defines persistence contracts for the canonical activity
// log and the follower graph. Both are external collaborators of the feed
// engine: the engine reads them and never owns their lifecycle.
package social

import (
	"context"
	"errors"
	"time"

	"github.com/stylehive/feedcast/internal/domain/model"
)

// ErrNotFound indicates a requested record is missing.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// ActivityReader reads canonical activity records.
type ActivityReader interface {
	// GetActivity returns the activity with id, ErrNotFound when missing.
	GetActivity(ctx context.Context, id string) (model.Activity, error)

	// RecentByActor returns the actor's active activities created at or
	// after since, newest first.
	RecentByActor(ctx context.Context, actorID string, since time.Time) ([]model.Activity, error)
}

// ActivityWriter records canonical activities. Creation is idempotent per
// (actor, verb, target type, target id): at most one active record may
// exist per identity.
type ActivityWriter interface {
	// PutActivity inserts one activity, ErrAlreadyExists when an active
	// record with the same identity exists.
	PutActivity(ctx context.Context, a model.Activity) error

	// DeactivateActivity marks the activity inactive, freeing its
	// identity for re-creation. Missing ids are a no-op.
	DeactivateActivity(ctx context.Context, id string) error
}

// FollowerEnumerator supplies the current followers of a user.
type FollowerEnumerator interface {
	Followers(ctx context.Context, userID string) ([]string, error)
}

// FollowWriter maintains the follower graph.
type FollowWriter interface {
	PutFollow(ctx context.Context, followerID, followeeID string) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) error
}

// Store bundles the full social persistence surface.
type Store interface {
	ActivityReader
	ActivityWriter
	FollowerEnumerator
	FollowWriter
}
