// Package ratelimit implements a per-key token bucket used to throttle
// API callers. Buckets refill lazily on each Allow call.
package ratelimit

import (
	"errors"
	"sync"
	"time"
)

// ErrRateLimited is returned when a key has no tokens left.
var ErrRateLimited = errors.New("rate limit exceeded")

// Config sizes the buckets.
type Config struct {
	RequestsPerMinute int // 0 = unlimited.
	BurstSize         int // 0 = RequestsPerMinute.
}

// Limiter keeps one bucket per key. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64 // tokens per second
	burst   float64
	now     func() time.Time
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New returns a limiter for cfg, or nil when cfg allows unlimited requests.
// A nil *Limiter allows everything.
func New(cfg Config) *Limiter {
	if cfg.RequestsPerMinute <= 0 {
		return nil
	}
	burst := cfg.BurstSize
	if burst <= 0 {
		burst = cfg.RequestsPerMinute
	}
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    float64(cfg.RequestsPerMinute) / 60,
		burst:   float64(burst),
		now:     time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	if l != nil && now != nil {
		l.now = now
	}
	return l
}

// Allow takes one token from key's bucket.
func (l *Limiter) Allow(key string) error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: l.burst, lastFill: now}
		l.buckets[key] = b
	}

	b.tokens = min(l.burst, b.tokens+now.Sub(b.lastFill).Seconds()*l.rate)
	b.lastFill = now

	if b.tokens < 1 {
		return ErrRateLimited
	}
	b.tokens--
	return nil
}
