// Package feed defines feed addressing and the aggregate entry record
// stored in the score store.
package feed

import (
	"fmt"

	"github.com/stylehive/feedcast/internal/domain/model"
)

type audienceKind int

const (
	kindPublic audienceKind = iota
	kindUser
	kindUserPrivate
)

// Audience identifies one logical feed owner: the public stream, a user's
// normal feed, or a user's private (own-activity) feed.
type Audience struct {
	kind   audienceKind
	userID string
}

// Public is the audience of the site-wide feed.
func Public() Audience {
	return Audience{kind: kindPublic}
}

// User is the audience of a user's normal feed, the one showing activity
// of people they follow.
func User(userID string) Audience {
	return Audience{kind: kindUser, userID: userID}
}

// UserPrivate is the audience of a user's private feed, the one showing
// the user's own activity back to themselves.
func UserPrivate(userID string) Audience {
	return Audience{kind: kindUserPrivate, userID: userID}
}

// IsPublic reports whether the audience is the public feed.
func (a Audience) IsPublic() bool { return a.kind == kindPublic }

// IsPrivateOf reports whether the audience is userID's private feed.
func (a Audience) IsPrivateOf(userID string) bool {
	return a.kind == kindUserPrivate && a.userID == userID
}

// UserID returns the owning user id, empty for the public feed.
func (a Audience) UserID() string { return a.userID }

// Key resolves the sorted-set key for this audience and gender partition.
// Pure and total; no two distinct (audience, gender) pairs collide.
func (a Audience) Key(g model.Gender) string {
	switch a.kind {
	case kindUser:
		return fmt.Sprintf("feed:user:%s:%s", a.userID, g)
	case kindUserPrivate:
		return fmt.Sprintf("feed:private:%s:%s", a.userID, g)
	default:
		return fmt.Sprintf("feed:public:%s", g)
	}
}
