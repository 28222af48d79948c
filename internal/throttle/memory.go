package throttle

import (
	"context"
	"sync"
	"time"
)

// MemoryLimiter keeps windows in process. It is used when no Redis address is
// configured, which limits it to single-instance deployments.
type MemoryLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
}

type bucket struct {
	count     int
	windowEnd time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
}

func (l *MemoryLimiter) Hit(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.windowEnd) {
		b = &bucket{windowEnd: now.Add(window)}
		l.buckets[key] = b
	}
	b.count++

	res := Result{Count: b.count, Allowed: b.count <= limit}
	if !res.Allowed {
		res.RetryAfter = b.windowEnd.Sub(now)
	}
	return res, nil
}

func (l *MemoryLimiter) Reset(_ context.Context, key string) error {
	l.mu.Lock()
	delete(l.buckets, key)
	l.mu.Unlock()
	return nil
}
