package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter per key.
type RateLimiter struct {
	rdb    *redis.Client
	limit  int64
	window time.Duration
	prefix string
}

func NewRateLimiter(rdb *redis.Client, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{rdb: rdb, limit: int64(limit), window: window, prefix: "rc:rl"}
}

type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

func (l *RateLimiter) key(scope, id string) string {
	return fmt.Sprintf("%s:%s:%s", l.prefix, scope, id)
}

// Allow counts one hit for id in scope. The window starts at the first hit.
func (l *RateLimiter) Allow(ctx context.Context, scope, id string) (Decision, error) {
	k := l.key(scope, id)
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return Decision{}, err
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return Decision{}, err
		}
	}

	d := Decision{Allowed: n <= l.limit, Remaining: int(max(l.limit-n, 0))}
	if !d.Allowed {
		ttl, err := l.rdb.PTTL(ctx, k).Result()
		if err != nil {
			return Decision{}, err
		}
		d.RetryAfter = ttl
		if ttl <= 0 {
			d.RetryAfter = l.window
		}
	}
	return d, nil
}
