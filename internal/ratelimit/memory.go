package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	start time.Time
	count int
}

// Memory is a per-process fixed-window limiter.
type Memory struct {
	mu      sync.Mutex
	limit   int
	period  time.Duration
	windows map[string]*window
	now     func() time.Time
}

func NewMemory(limit int, period time.Duration) *Memory {
	return &Memory{
		limit:   limit,
		period:  period,
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	if m.limit <= 0 {
		return true, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	w, ok := m.windows[key]
	if !ok || now.Sub(w.start) >= m.period {
		if len(m.windows) > 10000 {
			m.sweep(now)
		}
		m.windows[key] = &window{start: now, count: 1}
		return true, nil
	}
	if w.count >= m.limit {
		return false, nil
	}
	w.count++
	return true, nil
}

func (m *Memory) sweep(now time.Time) {
	for key, w := range m.windows {
		if now.Sub(w.start) >= m.period {
			delete(m.windows, key)
		}
	}
}
