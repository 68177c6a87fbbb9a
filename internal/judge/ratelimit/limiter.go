// Package ratelimit caps how often clients may start runs, using fixed
// windows counted in the shared cache.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"offlinejudge/internal/common/cache"
	appErr "offlinejudge/pkg/errors"
)

const keyPrefix = "judge:rate:"

// Limiter enforces fixed-window limits using Redis.
type Limiter struct {
	cache        cache.Cache
	window       time.Duration
	redisTimeout time.Duration
}

func NewLimiter(cacheClient cache.Cache, window, redisTimeout time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	if redisTimeout <= 0 {
		redisTimeout = time.Second
	}
	return &Limiter{cache: cacheClient, window: window, redisTimeout: redisTimeout}
}

// Allow counts one hit on key and fails with TooManyRequests once more than
// max hits landed in the current window. A zero window uses the default.
func (l *Limiter) Allow(ctx context.Context, key string, max int, window time.Duration) error {
	if l == nil || l.cache == nil {
		return appErr.New(appErr.ServiceUnavailable).WithMessage("rate limit cache is unavailable")
	}
	if max <= 0 {
		return nil
	}
	if window <= 0 {
		window = l.window
	}
	key = keyPrefix + key

	ctxCache, cancel := context.WithTimeout(ctx, l.redisTimeout)
	defer cancel()

	acquired, err := l.cache.SetNX(ctxCache, key, 1, window)
	if err != nil {
		return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
	}
	count := int64(1)
	if !acquired {
		count, err = l.cache.Incr(ctxCache, key)
		if err != nil {
			return appErr.Wrapf(err, appErr.CacheError, "rate limit check failed")
		}
		// A key left without expiry would block the client forever.
		if ttl, ttlErr := l.cache.TTL(ctxCache, key); ttlErr == nil && ttl <= 0 {
			_ = l.cache.Expire(ctxCache, key, window)
		}
	}
	if count > int64(max) {
		return appErr.New(appErr.TooManyRequests).WithMessage(fmt.Sprintf("rate limit exceeded for %s", key))
	}
	return nil
}
