package admission

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the table size above which stale windows are dropped.
const sweepThreshold = 1024

type window struct {
	start time.Time
	count int
}

// MemoryLimiter is a fixed-window limiter local to one relay process.
type MemoryLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
}

func NewMemoryLimiter(limit int, period time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		period:  period,
		now:     time.Now,
		windows: make(map[string]*window),
	}
}

func (l *MemoryLimiter) Allow(ctx context.Context, origin string) (Decision, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.windows) > sweepThreshold {
		for k, w := range l.windows {
			if now.Sub(w.start) >= l.period {
				delete(l.windows, k)
			}
		}
	}

	w, ok := l.windows[origin]
	if !ok || now.Sub(w.start) >= l.period {
		w = &window{start: now}
		l.windows[origin] = w
	}
	w.count++

	if w.count > l.limit {
		return Decision{RetryAfter: w.start.Add(l.period).Sub(now)}, nil
	}
	return Decision{Allowed: true, Remaining: l.limit - w.count}, nil
}
