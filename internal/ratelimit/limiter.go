// Package ratelimit implements an in-process fixed-window request limiter.
//
// Windows are kept in an LRU bounded by UniqueTokenPerInterval. When the
// bound is hit the least recently used key is evicted, which at worst gives
// that client a fresh window. The limiter is process-local; with several
// replicas each one enforces its own count.
package ratelimit

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/simplelru"
)

// Options configures a Limiter
type Options struct {
	Interval               time.Duration
	UniqueTokenPerInterval int
	// Now overrides the clock, for tests
	Now func() time.Time
}

// Result is the outcome of a single Check
type Result struct {
	IsRateLimited bool
	Limit         int
	Remaining     int
	ResetAt       time.Time
}

type window struct {
	start time.Time
	count int
}

// Limiter counts requests per key in fixed windows of Options.Interval
type Limiter struct {
	mu       sync.Mutex
	windows  *simplelru.LRU[string, *window]
	interval time.Duration
	now      func() time.Time
}

// New creates a limiter. Non-positive options fall back to a 60s interval and 500 keys.
func New(opts Options) *Limiter {
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.UniqueTokenPerInterval <= 0 {
		opts.UniqueTokenPerInterval = 500
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	// Only errors on a non-positive size, which is ruled out above
	windows, _ := simplelru.NewLRU[string, *window](opts.UniqueTokenPerInterval, nil)

	return &Limiter{
		windows:  windows,
		interval: opts.Interval,
		now:      opts.Now,
	}
}

// Check counts one request for key and reports whether it exceeds limit.
// The Nth call in a window is allowed; the (N+1)th is limited. Limited calls
// still count, so a client hammering the endpoint stays limited until the
// window resets.
func (l *Limiter) Check(limit int, key string) Result {
	now := l.now()

	l.mu.Lock()
	w, ok := l.windows.Get(key)
	if !ok || now.Sub(w.start) >= l.interval {
		w = &window{start: now}
		l.windows.Add(key, w)
	}
	w.count++
	count := w.count
	resetAt := w.start.Add(l.interval)
	l.mu.Unlock()

	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}
	return Result{
		IsRateLimited: count > limit,
		Limit:         limit,
		Remaining:     remaining,
		ResetAt:       resetAt,
	}
}

// Len returns the number of keys currently tracked
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.windows.Len()
}

// Reset forgets every window
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.windows.Purge()
	l.mu.Unlock()
}
