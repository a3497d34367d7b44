package cache

import (
	"context"
	"time"
)

// Counter counts events inside a fixed window. Rate limits need nothing more.
type Counter interface {
	// IncrementWithTTL returns the count after incrementing and the time left in the window.
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Store is the shared key/value surface behind cycle leases and rate limits.
type Store interface {
	Counter
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, keys ...string) error
}

var _ Store = (*DatabaseStore)(nil)
