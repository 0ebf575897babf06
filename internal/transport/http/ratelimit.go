package http

import (
	"sync"
	"time"
)

// rateLimiter caps inbound frames per connection within a fixed window.
// A zero or negative limit disables it.
type rateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time

	start time.Time
	used  int
}

func newRateLimiter(limit int) *rateLimiter {
	return &rateLimiter{limit: limit, window: time.Minute, now: time.Now}
}

func (r *rateLimiter) allow() bool {
	if r == nil || r.limit <= 0 {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	if r.start.IsZero() || now.Sub(r.start) >= r.window {
		r.start = now
		r.used = 0
	}
	if r.used >= r.limit {
		return false
	}
	r.used++
	return true
}
