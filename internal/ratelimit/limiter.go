package ratelimit

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Limiter is a best-effort fixed-window counter. It is explicitly allowed
// to lose its state (process restart, cache eviction); correctness must
// never depend on it. It is injected as a dependency, never held as
// package-level state.
type Limiter struct {
	counters *gocache.Cache
	limit    int64
	window   time.Duration
}

// New creates a limiter allowing limit requests per key per window.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		counters: gocache.New(window, 2*window),
		limit:    int64(limit),
		window:   window,
	}
}

// Allow reports whether the key may proceed. On any counter anomaly it
// fails open.
func (l *Limiter) Allow(key string) bool {
	if err := l.counters.Add(key, int64(1), l.window); err == nil {
		return true
	}
	count, err := l.counters.IncrementInt64(key, 1)
	if err != nil {
		// Entry expired between Add and Increment; treat as a fresh window.
		return true
	}
	return count <= l.limit
}

// Remaining returns how many requests are left in the key's window.
func (l *Limiter) Remaining(key string) int64 {
	raw, ok := l.counters.Get(key)
	if !ok {
		return l.limit
	}
	count, ok := raw.(int64)
	if !ok {
		return l.limit
	}
	if count >= l.limit {
		return 0
	}
	return l.limit - count
}
