package http

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps the number of new websocket connections per minute.
// A limit of zero disables it.
type RateLimiter struct {
	limit int

	mu      sync.Mutex
	counter int
}

// NewRateLimiter builds a limiter allowing limit connections per minute.
func NewRateLimiter(limit int) *RateLimiter {
	if limit < 0 {
		limit = 0
	}
	return &RateLimiter{limit: limit}
}

// Allow reports whether another connection may be accepted this minute.
func (r *RateLimiter) Allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.counter++
	return r.counter <= r.limit
}

// Run resets the counter every minute until the context is cancelled.
func (r *RateLimiter) Run(ctx context.Context) {
	if r == nil || r.limit <= 0 {
		return
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.counter = 0
			r.mu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}
