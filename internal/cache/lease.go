package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrLeaseHeld is returned when another holder owns the lease.
var ErrLeaseHeld = errors.New("cache: lease held")

// Lease is an exclusive, self-expiring claim on a key. The first increment inside the ttl
// wins; the winner records a holder token so a stale holder cannot release its successor.
type Lease struct {
	store  Store
	key    string
	holder []byte
}

// AcquireLease claims key for ttl.
func AcquireLease(ctx context.Context, store Store, key string, ttl time.Duration) (*Lease, error) {
	if store == nil {
		return nil, errors.New("cache: store is required")
	}
	count, _, err := store.IncrementWithTTL(ctx, key, ttl)
	if err != nil {
		return nil, err
	}
	if count > 1 {
		return nil, ErrLeaseHeld
	}

	lease := &Lease{store: store, key: key, holder: []byte(uuid.NewString())}
	if err := store.Set(ctx, lease.holderKey(), lease.holder, ttl); err != nil {
		_ = store.Delete(ctx, key)
		return nil, fmt.Errorf("cache: record lease holder: %w", err)
	}
	return lease, nil
}

// Key returns the leased key.
func (l *Lease) Key() string {
	if l == nil {
		return ""
	}
	return l.key
}

// Release frees the lease for the next holder. It is a no-op once the lease expired and
// someone else took it over.
func (l *Lease) Release(ctx context.Context) error {
	if l == nil {
		return nil
	}
	current, ok, err := l.store.Get(ctx, l.holderKey())
	if err != nil {
		return err
	}
	if !ok || !bytes.Equal(current, l.holder) {
		return nil
	}
	return l.store.Delete(ctx, l.key, l.holderKey())
}

func (l *Lease) holderKey() string {
	return l.key + ":holder"
}
