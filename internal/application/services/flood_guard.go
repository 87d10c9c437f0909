package services

import (
	"sync"
	"time"

	"github.com/dapursambal/storefront/pkg/errors"
)

// FloodGuard is a per-key sliding window limiter for public form posts.
// State is process-local.
type FloodGuard struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu    sync.Mutex
	hits  map[string][]time.Time
	calls int
}

// NewFloodGuard allows limit posts per window for each key
func NewFloodGuard(limit int, window time.Duration) *FloodGuard {
	return &FloodGuard{
		limit:  limit,
		window: window,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Check records a post from key, or returns a RateLimitedError when the window is full
func (g *FloodGuard) Check(key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	cutoff := now.Add(-g.window)

	g.calls++
	if g.calls%1024 == 0 {
		g.sweep(cutoff)
	}

	recent := prune(g.hits[key], cutoff)
	if len(recent) >= g.limit {
		g.hits[key] = recent
		return errors.NewRateLimitedError(recent[0].Add(g.window).Sub(now))
	}
	g.hits[key] = append(recent, now)
	return nil
}

func (g *FloodGuard) sweep(cutoff time.Time) {
	for key, times := range g.hits {
		if recent := prune(times, cutoff); len(recent) == 0 {
			delete(g.hits, key)
		} else {
			g.hits[key] = recent
		}
	}
}

func prune(times []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(times) && !times[i].After(cutoff) {
		i++
	}
	return times[i:]
}
