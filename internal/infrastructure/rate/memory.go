package rate

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold bounds the bucket map; once it grows past this the next
// window rollover also drops every expired bucket.
const sweepThreshold = 1024

type bucket struct {
	start time.Time
	count int
}

// Memory is an in-process fixed-window limiter keyed by caller identity.
type Memory struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	buckets map[string]*bucket
}

// NewMemory builds a limiter allowing limit calls per key per window.
func NewMemory(limit int, window time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		window:  window,
		buckets: make(map[string]*bucket),
	}
}

// Allow consumes one slot for key. It never returns an error.
func (m *Memory) Allow(_ context.Context, key string, now time.Time) (bool, time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.buckets[key]
	if !ok || now.Sub(b.start) >= m.window {
		if len(m.buckets) >= sweepThreshold {
			m.sweep(now)
		}
		b = &bucket{start: now}
		m.buckets[key] = b
	}

	if b.count >= m.limit {
		return false, m.window - now.Sub(b.start), nil
	}
	b.count++
	return true, 0, nil
}

// sweep drops expired buckets. Callers hold the mutex.
func (m *Memory) sweep(now time.Time) {
	for key, b := range m.buckets {
		if now.Sub(b.start) >= m.window {
			delete(m.buckets, key)
		}
	}
}
