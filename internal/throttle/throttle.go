// Package throttle limits how often a client may request a report.
package throttle

import (
	"errors"
	"sync"
	"time"
)

// ErrLimited is returned when a client has used up its window
var ErrLimited = errors.New("too many requests")

// Limiter is a sliding-window request log per client. Expired entries are
// evicted when a client is seen again and idle clients are swept on access.
type Limiter struct {
	limit  int
	window time.Duration

	mu        sync.Mutex
	hits      map[string][]time.Time
	lastSweep time.Time
}

// New creates a limiter allowing limit requests per window
func New(limit int, window time.Duration) *Limiter {
	return &Limiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a request from client at now and returns ErrLimited when the
// client already made limit requests within the trailing window. Rejected
// requests are not recorded.
func (l *Limiter) Allow(client string, now time.Time) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep(now)

	recent := evict(l.hits[client], now.Add(-l.window))
	if len(recent) >= l.limit {
		l.hits[client] = recent
		return ErrLimited
	}
	l.hits[client] = append(recent, now)
	return nil
}

// Remaining returns how many requests client may still make at now
func (l *Limiter) Remaining(client string, now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := evict(l.hits[client], now.Add(-l.window))
	return max(0, l.limit-len(recent))
}

// Clients returns the number of clients currently tracked
func (l *Limiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

// sweep drops clients with no request inside the window, at most once per window
func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.window {
		return
	}
	l.lastSweep = now
	cutoff := now.Add(-l.window)
	for client, hits := range l.hits {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(l.hits, client)
		}
	}
}

// evict drops timestamps at or before cutoff; hits are in ascending order
func evict(hits []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}
