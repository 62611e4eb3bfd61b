package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is the in-process sliding window used while Redis is unavailable.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemoryLimiter returns an in-memory limiter.
func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{windows: make(map[string][]time.Time), now: time.Now}
}

// Check enforces a sliding-window limit for key.
func (m *MemoryLimiter) Check(_ context.Context, key string, limit int, window time.Duration) (*Result, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	hits := keepRecent(m.windows[key], now.Add(-window))
	allowed := len(hits) < limit
	if allowed {
		hits = append(hits, now)
	}
	m.windows[key] = hits

	result := &Result{Allowed: allowed, Remaining: max(limit-len(hits), 0), ResetAt: now.Add(window)}
	if !allowed {
		return result, ErrLimitExceeded
	}
	return result, nil
}

// Sweep forgets keys that saw no request for maxAge.
func (m *MemoryLimiter) Sweep(maxAge time.Duration) int {
	cutoff := m.now().Add(-maxAge)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for key, hits := range m.windows {
		if len(hits) == 0 || hits[len(hits)-1].Before(cutoff) {
			delete(m.windows, key)
			removed++
		}
	}
	return removed
}

func keepRecent(hits []time.Time, windowStart time.Time) []time.Time {
	i := 0
	for i < len(hits) && hits[i].Before(windowStart) {
		i++
	}
	return hits[i:]
}
