package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/stylehive/feedcast/internal/domain/model"
)

// ErrEmptyEntry indicates an entry with no contributing users or
// activities; such entries are deleted, never persisted.
var ErrEmptyEntry = errors.New("aggregate entry has an empty contribution set")

// Entry is one ranked aggregate feed record summarizing one or more
// activities sharing a verb and target type. Entries are immutable values;
// any change produces a new entry that replaces the old member wholesale.
type Entry struct {
	Verb        model.Verb `json:"v"`
	TargetType  string     `json:"t"`
	UserIDs     []string   `json:"u"`
	ActivityIDs []string   `json:"a"`
}

// NewEntry builds a fresh single-user, single-activity entry for activity.
func NewEntry(a model.Activity) Entry {
	return Entry{
		Verb:        a.Verb,
		TargetType:  a.TargetType,
		UserIDs:     []string{a.ActorID},
		ActivityIDs: []string{a.ID},
	}
}

// Encode serializes the entry to its canonical string form. Field order is
// fixed and both id sets are sorted ascending, so equal entries always
// encode to identical bytes; the store deduplicates on exact equality.
func (e Entry) Encode() (string, error) {
	if len(e.UserIDs) == 0 || len(e.ActivityIDs) == 0 {
		return "", ErrEmptyEntry
	}
	c := e.normalized()
	raw, err := json.Marshal(c)
	if err != nil {
		return "", fmt.Errorf("encode aggregate entry: %w", err)
	}
	return string(raw), nil
}

// DecodeEntry parses the canonical string form back into an entry.
func DecodeEntry(raw string) (Entry, error) {
	var e Entry
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, fmt.Errorf("decode aggregate entry: %w", err)
	}
	if len(e.UserIDs) == 0 || len(e.ActivityIDs) == 0 {
		return Entry{}, ErrEmptyEntry
	}
	return e.normalized(), nil
}

func (e Entry) normalized() Entry {
	users := append([]string(nil), e.UserIDs...)
	acts := append([]string(nil), e.ActivityIDs...)
	sort.Strings(users)
	sort.Strings(acts)
	return Entry{Verb: e.Verb, TargetType: e.TargetType, UserIDs: users, ActivityIDs: acts}
}

// Matches reports whether the entry aggregates the same verb and target
// type as a. Entries never merge across (verb, target type) pairs.
func (e Entry) Matches(a model.Activity) bool {
	return e.Verb == a.Verb && e.TargetType == a.TargetType
}

// HasUser reports whether id contributes to the entry.
func (e Entry) HasUser(id string) bool { return contains(e.UserIDs, id) }

// HasActivity reports whether id contributes to the entry.
func (e Entry) HasActivity(id string) bool { return contains(e.ActivityIDs, id) }

// Frozen reports whether both contribution sets exceed size one. Frozen
// entries never receive further contributions; they only shrink.
func (e Entry) Frozen() bool {
	return len(e.UserIDs) > 1 && len(e.ActivityIDs) > 1
}

// WithUser returns a copy with id added to the contributing users.
func (e Entry) WithUser(id string) Entry {
	c := e.normalized()
	c.UserIDs = append(c.UserIDs, id)
	return c.normalized()
}

// WithActivity returns a copy with id added to the contributing activities.
func (e Entry) WithActivity(id string) Entry {
	c := e.normalized()
	c.ActivityIDs = append(c.ActivityIDs, id)
	return c.normalized()
}

// WithoutUser returns a copy with id removed from the contributing users.
func (e Entry) WithoutUser(id string) Entry {
	c := e.normalized()
	c.UserIDs = remove(c.UserIDs, id)
	return c
}

// WithoutActivity returns a copy with id removed from the contributing
// activities.
func (e Entry) WithoutActivity(id string) Entry {
	c := e.normalized()
	c.ActivityIDs = remove(c.ActivityIDs, id)
	return c
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func remove(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
