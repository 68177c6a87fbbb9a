// Package cache is the shared key-value store behind run status and rate limits.
package cache

import (
	"context"
	"time"
)

// Cache lists the operations run status and rate limiting rely on.
type Cache interface {
	// Get returns "" and a nil error for a missing key.
	Get(ctx context.Context, key string) (string, error)
	// Set stores value; a zero ttl keeps it forever.
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	// SetNX stores value only when key is absent and reports whether it did.
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// TTL follows redis: -1 for no expiry, -2 for a missing key.
	TTL(ctx context.Context, key string) (time.Duration, error)
}
