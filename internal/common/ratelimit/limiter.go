// Package ratelimit implements a Redis fixed-window limiter.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Result describes one limiter decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter allows Limit calls per Window for each key.
type Limiter struct {
	client redis.Cmdable
	prefix string
	limit  int
	window time.Duration
}

func New(client redis.Cmdable, prefix string, limit int, window time.Duration) *Limiter {
	return &Limiter{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow counts one call against key. On Redis errors the call is allowed and the
// error is returned so callers can log it.
func (l *Limiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	count, err := l.client.Incr(ctx, redisKey).Result()
	if err != nil {
		return Result{Allowed: true, Remaining: l.limit}, fmt.Errorf("rate limit incr: %w", err)
	}
	if count == 1 {
		if err := l.client.Expire(ctx, redisKey, l.window).Err(); err != nil {
			return Result{Allowed: true, Remaining: l.limit - 1}, fmt.Errorf("rate limit expire: %w", err)
		}
	}

	if int(count) <= l.limit {
		return Result{Allowed: true, Remaining: l.limit - int(count)}, nil
	}

	ttl, err := l.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// Key lost its expiry; restore it so the window cannot stick.
		_ = l.client.Expire(ctx, redisKey, l.window).Err()
		ttl = l.window
	}
	return Result{Allowed: false, Remaining: 0, RetryAfter: ttl}, nil
}
