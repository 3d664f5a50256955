package sink

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/yegors/overhead/internal/render"
)

// DefaultRecentSize is how many flights the recent-alert cache remembers
const DefaultRecentSize = 128

// Recent keeps the latest alert of the most recently alerting flights in memory
// for the API and the websocket backlog
type Recent struct {
	cache *lru.Cache[string, *render.Alert]
}

// NewRecent creates a cache remembering up to size flights
func NewRecent(size int) (*Recent, error) {
	if size <= 0 {
		size = DefaultRecentSize
	}
	cache, err := lru.New[string, *render.Alert](size)
	if err != nil {
		return nil, fmt.Errorf("create recent alert cache: %w", err)
	}
	return &Recent{cache: cache}, nil
}

func (r *Recent) Name() string { return "recent" }

func (r *Recent) Send(_ context.Context, alert *render.Alert) error {
	r.cache.Add(alert.Position.FlightID, alert)
	return nil
}

// List returns up to limit alerts, the most recently alerting flight first.
// A limit <= 0 returns all of them.
func (r *Recent) List(limit int) []*render.Alert {
	keys := r.cache.Keys()
	if limit <= 0 || limit > len(keys) {
		limit = len(keys)
	}
	out := make([]*render.Alert, 0, limit)
	for i := len(keys) - 1; i >= 0 && len(out) < limit; i-- {
		if a, ok := r.cache.Peek(keys[i]); ok {
			out = append(out, a)
		}
	}
	return out
}

// Get returns the latest alert for a flight
func (r *Recent) Get(flightID string) (*render.Alert, bool) {
	return r.cache.Peek(flightID)
}

// Len returns the number of flights in the cache
func (r *Recent) Len() int {
	return r.cache.Len()
}
