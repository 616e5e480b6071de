package ratelimit

import (
	"context"
	"sync"
	"time"
)

const pruneEvery = 1024

type window struct {
	start time.Time
	size  time.Duration
	count int
}

// MemoryLimiter keeps counters in process memory. Quotas are per process.
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	calls   int
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

// Admit reports whether one more request from identity on routeClass fits the quota.
func (l *MemoryLimiter) Admit(_ context.Context, identity, routeClass string, maxRequests int, win time.Duration) bool {
	if maxRequests <= 0 || win <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	start := windowStart(now, win)
	key := routeClass + ":" + identity

	l.calls++
	if l.calls%pruneEvery == 0 {
		l.prune(now)
	}

	w, ok := l.windows[key]
	if !ok || !w.start.Equal(start) || w.size != win {
		w = &window{start: start, size: win}
		l.windows[key] = w
	}

	if w.count >= maxRequests {
		return false
	}

	w.count++
	return true
}

func (l *MemoryLimiter) prune(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.start.Add(w.size)) {
			delete(l.windows, key)
		}
	}
}
