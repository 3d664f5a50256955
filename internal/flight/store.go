// Package flight holds the normalized position model and the per-flight state
// table the engine tracks.
package flight

import (
	"sort"
	"sync"
	"time"
)

// StaleAfter is how long a flight may go unheard before a sweep evicts it
const StaleAfter = 10 * time.Minute

// Store keeps the latest position per flight id. Positions are immutable, so
// readers may keep the pointers they are handed.
type Store struct {
	mu         sync.RWMutex
	flights    map[string]*Position
	staleAfter time.Duration
}

// NewStore creates an empty store that evicts flights older than staleAfter.
// A non-positive staleAfter selects StaleAfter.
func NewStore(staleAfter time.Duration) *Store {
	if staleAfter <= 0 {
		staleAfter = StaleAfter
	}
	return &Store{
		flights:    make(map[string]*Position),
		staleAfter: staleAfter,
	}
}

// Upsert stores pos as the current entry for its flight and returns the entry
// it replaced, if any. The last call wins regardless of timestamps.
func (s *Store) Upsert(pos *Position) (prev *Position, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok = s.flights[pos.FlightID]
	s.flights[pos.FlightID] = pos
	return prev, ok
}

// Sweep removes every flight whose last position is older than now minus the
// stale window and returns the evicted flight ids.
func (s *Store) Sweep(now time.Time) []string {
	cutoff := now.Add(-s.staleAfter)

	s.mu.Lock()
	defer s.mu.Unlock()

	var evicted []string
	for id, pos := range s.flights {
		if pos.Timestamp.Before(cutoff) {
			delete(s.flights, id)
			evicted = append(evicted, id)
		}
	}
	return evicted
}

// Get returns the current entry for a flight
func (s *Store) Get(id string) (*Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pos, ok := s.flights[id]
	return pos, ok
}

// Len returns the number of tracked flights
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flights)
}

// Snapshot returns the current entries ordered by flight id
func (s *Store) Snapshot() []*Position {
	s.mu.RLock()
	out := make([]*Position, 0, len(s.flights))
	for _, pos := range s.flights {
		out = append(out, pos)
	}
	s.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FlightID < out[j].FlightID })
	return out
}
