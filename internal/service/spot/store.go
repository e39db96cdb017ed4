// internal/service/spot/store.go

package spot

import (
	"strings"
	"sync"

	"slonstudy/internal/domain/spot"
)

// MemoryStore keeps the spots of the latest fetch in memory
type MemoryStore struct {
	spots []spot.StudySpot
	mu    sync.RWMutex
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		spots: []spot.StudySpot{},
	}
}

// ReplaceAll swaps the entire contents; nothing from before is kept
func (s *MemoryStore) ReplaceAll(spots []spot.StudySpot) {
	// Copy so later changes to the caller's slice can't leak in
	next := make([]spot.StudySpot, len(spots))
	copy(next, spots)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.spots = next
}

// All returns a copy of the current contents
func (s *MemoryStore) All() []spot.StudySpot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	spots := make([]spot.StudySpot, len(s.spots))
	copy(spots, s.spots)

	return spots
}

// FilterByName returns the spots whose name contains query, ignoring case,
// in store order. A blank query returns everything.
func (s *MemoryStore) FilterByName(query string) []spot.StudySpot {
	if IsBlank(query) {
		return s.All()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := []spot.StudySpot{}
	for _, sp := range s.spots {
		if MatchesQuery(sp, query) {
			matches = append(matches, sp)
		}
	}

	return matches
}

// Len returns the number of spots held
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.spots)
}

// MatchesQuery reports whether the spot's name contains query, ignoring
// case. Every spot matches a blank query.
func MatchesQuery(sp spot.StudySpot, query string) bool {
	if IsBlank(query) {
		return true
	}
	return strings.Contains(strings.ToLower(sp.Name), strings.ToLower(query))
}

// IsBlank reports whether s is empty or whitespace only
func IsBlank(s string) bool {
	return strings.TrimSpace(s) == ""
}
