package ratelimit

import (
	"context"
	"testing"
	"time"

	"offlinejudge/internal/common/cache"
	appErr "offlinejudge/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T) (*Limiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	rc, err := cache.NewRedisCacheWithClient(client)
	if err != nil {
		t.Fatalf("new redis cache: %v", err)
	}
	return NewLimiter(rc, time.Minute, time.Second), mr
}

func TestLimiterAllow(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if err := limiter.Allow(ctx, "route:run", 2, 0); err != nil {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	err := limiter.Allow(ctx, "route:run", 2, 0)
	if !appErr.Is(err, appErr.TooManyRequests) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if ttl := mr.TTL(keyPrefix + "route:run"); ttl != time.Minute {
		t.Fatalf("expected default window ttl, got %s", ttl)
	}

	mr.FastForward(time.Minute)
	if err := limiter.Allow(ctx, "route:run", 2, 0); err != nil {
		t.Fatalf("new window must allow: %v", err)
	}
}

func TestLimiterRestoresMissingExpiry(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	key := keyPrefix + "ip:10.0.0.1:run"
	if err := mr.Set(key, "3"); err != nil {
		t.Fatalf("seed key: %v", err)
	}
	if err := limiter.Allow(context.Background(), "ip:10.0.0.1:run", 10, 5*time.Second); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if got, _ := mr.Get(key); got != "4" {
		t.Fatalf("expected counter 4, got %s", got)
	}
	if ttl := mr.TTL(key); ttl != 5*time.Second {
		t.Fatalf("expected ttl to be restored, got %s", ttl)
	}
}

func TestLimiterUnavailable(t *testing.T) {
	var limiter *Limiter
	if err := limiter.Allow(context.Background(), "k", 1, 0); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
	if err := NewLimiter(nil, 0, 0).Allow(context.Background(), "k", 1, 0); !appErr.Is(err, appErr.ServiceUnavailable) {
		t.Fatalf("expected unavailable error, got %v", err)
	}
}

func TestLimiterZeroMaxDisables(t *testing.T) {
	limiter, mr := newTestLimiter(t)
	if err := limiter.Allow(context.Background(), "k", 0, 0); err != nil {
		t.Fatalf("allow: %v", err)
	}
	if mr.Exists(keyPrefix + "k") {
		t.Fatalf("disabled limit must not touch the cache")
	}
}
