package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc, err := NewRedisCacheWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	t.Cleanup(func() { _ = rc.Close() })
	return rc, mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	rc, mr := newTestCache(t)
	ctx := context.Background()

	if v, err := rc.Get(ctx, "judge:run:missing"); err != nil || v != "" {
		t.Fatalf("missing key should read empty: %q %v", v, err)
	}
	if err := rc.Set(ctx, "judge:run:1", "pending", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if v, _ := rc.Get(ctx, "judge:run:1"); v != "pending" {
		t.Fatalf("unexpected value %q", v)
	}
	ok, err := rc.SetNX(ctx, "judge:run:1", "other", time.Minute)
	if err != nil || ok {
		t.Fatalf("SetNX must not overwrite: %v %v", ok, err)
	}

	n, err := rc.Incr(ctx, "judge:rate:ip")
	if err != nil || n != 1 {
		t.Fatalf("incr: %d %v", n, err)
	}
	if err := rc.Expire(ctx, "judge:rate:ip", 30*time.Second); err != nil {
		t.Fatalf("expire: %v", err)
	}
	if ttl, _ := rc.TTL(ctx, "judge:rate:ip"); ttl != 30*time.Second {
		t.Fatalf("unexpected ttl %s", ttl)
	}
	mr.FastForward(time.Minute)
	if v, _ := rc.Get(ctx, "judge:run:1"); v != "" {
		t.Fatalf("expected expiry, got %q", v)
	}
}

func TestNewRedisCacheWithConfig(t *testing.T) {
	if _, err := NewRedisCacheWithConfig(&RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
	mr := miniredis.RunT(t)
	cfg := &RedisConfig{Addr: mr.Addr()}
	rc, err := NewRedisCacheWithConfig(cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer rc.Close()
	if cfg.PoolSize != 20 || cfg.DialTimeout != 5*time.Second {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if err := rc.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}
