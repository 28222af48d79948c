package throttle

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisLimiter struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisLimiter(rdb *redis.Client, prefix string) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, prefix: prefix}
}

func (l *RedisLimiter) key(k string) string {
	return l.prefix + k
}

func (l *RedisLimiter) Hit(ctx context.Context, key string, limit int, window time.Duration) (Result, error) {
	k := l.key(key)

	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, k)
		ttl = pipe.PTTL(ctx, k)
		return nil
	})
	if err != nil {
		return Result{}, err
	}

	count := int(incr.Val())
	remaining := ttl.Val()

	// first hit in the window, or a key that lost its expiry
	if count == 1 || remaining < 0 {
		if err := l.rdb.PExpire(ctx, k, window).Err(); err != nil {
			return Result{}, err
		}
		remaining = window
	}

	res := Result{Count: count, Allowed: count <= limit}
	if !res.Allowed {
		res.RetryAfter = remaining
	}
	return res, nil
}

func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, l.key(key)).Err()
}
