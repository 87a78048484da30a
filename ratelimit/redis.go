package ratelimit

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gatehouse-auth/gatehouse/core"
)

// RedisLimiter is a fixed-window limiter sharing its counters across
// instances through Redis.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

var _ core.RateLimiter = (*RedisLimiter)(nil)

func NewRedis(client redis.UniversalClient, cfg Config) *RedisLimiter {
	return &RedisLimiter{
		redis:  client,
		config: cfg.withDefaults(),
		prefix: "grl:",
	}
}

// Allow increments the counter for key and returns core.ErrRateLimited once
// the window budget is spent.
func (l *RedisLimiter) Allow(ctx context.Context, key string) error {
	count, err := l.redis.Incr(ctx, l.prefix+key).Result()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, l.prefix+key, l.config.Window).Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
		}
	}

	if count > int64(l.config.Max) {
		return core.ErrRateLimited
	}
	return nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := l.redis.Del(ctx, l.prefix+key).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrBackendUnavailable, err)
	}
	return nil
}
