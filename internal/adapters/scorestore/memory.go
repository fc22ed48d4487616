package scorestore

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore implements Store with an in-process map. Ordering matches
// the Redis backend: score descending, value ascending on ties. Used by
// tests and as the single-node backend.
type MemoryStore struct {
	mu   sync.RWMutex
	keys map[string]map[string]int64
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{keys: make(map[string]map[string]int64)}
}

// Add inserts value with score, replacing the score if value exists.
func (s *MemoryStore) Add(ctx context.Context, key string, score int64, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.keys[key]
	if !ok {
		set = make(map[string]int64)
		s.keys[key] = set
	}
	set[value] = score
	return nil
}

// Remove deletes members by exact value.
func (s *MemoryStore) Remove(ctx context.Context, key string, values ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.keys[key]
	if !ok {
		return nil
	}
	for _, v := range values {
		delete(set, v)
	}
	if len(set) == 0 {
		delete(s.keys, key)
	}
	return nil
}

// RangeDesc returns every member ordered by score descending.
func (s *MemoryStore) RangeDesc(ctx context.Context, key string) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(key, nil), nil
}

// RangeByScoreDesc returns members with score >= min, score descending.
func (s *MemoryStore) RangeByScoreDesc(ctx context.Context, key string, min int64) ([]Member, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sortedLocked(key, func(score int64) bool { return score >= min }), nil
}

// Card returns the number of members in key.
func (s *MemoryStore) Card(ctx context.Context, key string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.keys[key])), nil
}

// TrimToNewest removes the lowest-scored members beyond the max newest
// ones. The whole pass runs under one lock, so it never aborts.
func (s *MemoryStore) TrimToNewest(ctx context.Context, key string, max int64) (int64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.keys[key]
	if !ok {
		return 0, false, nil
	}
	excess := int64(len(set)) - max
	if excess <= 0 {
		return 0, false, nil
	}

	members := s.sortedLocked(key, nil)
	victims := members[int64(len(members))-excess:]
	for _, m := range victims {
		delete(set, m.Value)
	}
	if len(set) == 0 {
		delete(s.keys, key)
	}
	return excess, false, nil
}

// sortedLocked returns key's members score descending, value ascending on
// ties, optionally filtered. Callers must hold at least a read lock.
func (s *MemoryStore) sortedLocked(key string, keep func(int64) bool) []Member {
	set := s.keys[key]
	members := make([]Member, 0, len(set))
	for v, score := range set {
		if keep != nil && !keep(score) {
			continue
		}
		members = append(members, Member{Value: v, Score: score})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Value < members[j].Value
	})
	return members
}
