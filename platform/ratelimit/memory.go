package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter is a per-key sliding-window limiter backed by an in-process
// map. Suitable for single-instance deployments and tests; multi-instance
// deployments need the shared Redis store for correct counting.
type MemoryLimiter struct {
	mu     sync.Mutex
	events map[string][]time.Time
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewMemoryLimiter creates an in-process limiter allowing limit events per window.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		events: make(map[string][]time.Time),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records an event for key and reports whether it fits the window.
func (m *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	cutoff := now.Add(-m.window)

	kept := m.events[key][:0]
	for _, t := range m.events[key] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}

	result := Result{Limit: m.limit, Reset: now.Add(m.window)}
	if len(kept) > 0 {
		result.Reset = kept[0].Add(m.window)
	}

	if len(kept) >= m.limit {
		m.events[key] = kept
		return result, nil
	}

	kept = append(kept, now)
	m.events[key] = kept
	result.Allowed = true
	result.Remaining = m.limit - len(kept)
	return result, nil
}
