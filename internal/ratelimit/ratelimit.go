// Package ratelimit provides per-key request limiters: an in-process token
// bucket and a Redis fixed window shared between replicas.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

type bucket struct {
	lim  *rate.Limiter
	seen time.Time
}

// Memory is a per-key token bucket refilling max tokens per window. Buckets
// idle for longer than idleTTL are evicted.
type Memory struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	limit     rate.Limit
	burst     int
	idleTTL   time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// MemoryOption configures a Memory limiter.
type MemoryOption func(*Memory)

// WithClock overrides the limiter clock.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) { m.now = now }
}

// NewMemory allows max requests per window for each key.
func NewMemory(window time.Duration, max int, opts ...MemoryOption) *Memory {
	if max < 1 {
		max = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	m := &Memory{
		buckets: make(map[string]*bucket),
		limit:   rate.Every(window / time.Duration(max)),
		burst:   max,
		idleTTL: 5 * window,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.lastSweep = m.now()
	return m
}

// Allow consumes a token for key.
func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > m.idleTTL {
		m.sweep(now)
	}

	b, ok := m.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(m.limit, m.burst)}
		m.buckets[key] = b
	}
	b.seen = now
	return b.lim.AllowN(now, 1), nil
}

// Len returns the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.buckets)
}

func (m *Memory) sweep(now time.Time) {
	for k, b := range m.buckets {
		if now.Sub(b.seen) > m.idleTTL {
			delete(m.buckets, k)
		}
	}
	m.lastSweep = now
}
