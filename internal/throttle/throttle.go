package throttle

import (
	"context"
	"time"
)

// Result describes a counter after one hit inside a fixed window.
type Result struct {
	Count      int
	Allowed    bool
	RetryAfter time.Duration
}

// Limiter counts events per key inside fixed windows. The first hit on a key
// opens the window; the count resets once the window elapses.
type Limiter interface {
	Hit(ctx context.Context, key string, limit int, window time.Duration) (Result, error)
	Reset(ctx context.Context, key string) error
}
