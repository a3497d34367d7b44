package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/charlesng35/studynotify/internal/cache"
)

// RateStore coordinates rate limiting counters for a specific key.
type RateStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, ttl time.Duration, err error)
}

const memorySweepInterval = time.Minute

// memoryRateStore keeps fixed-window counters for a single process.
type memoryRateStore struct {
	mu        sync.Mutex
	data      map[string]*memoryCounter
	clock     func() time.Time
	nextSweep time.Time
}

type memoryCounter struct {
	count     int
	windowEnd time.Time
}

// NewMemoryRateStore constructs an in-memory rate store. Expired counters are swept at most
// once a minute, during an increment.
func NewMemoryRateStore() RateStore {
	return &memoryRateStore{
		data:  make(map[string]*memoryCounter),
		clock: time.Now,
	}
}

func (s *memoryRateStore) Increment(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	now := s.clock()

	s.mu.Lock()
	defer s.mu.Unlock()

	if !now.Before(s.nextSweep) {
		for k, counter := range s.data {
			if now.After(counter.windowEnd) {
				delete(s.data, k)
			}
		}
		s.nextSweep = now.Add(memorySweepInterval)
	}

	counter, ok := s.data[key]
	if !ok || now.After(counter.windowEnd) {
		counter = &memoryCounter{windowEnd: now.Add(window)}
		s.data[key] = counter
	}
	counter.count++

	return counter.count, counter.windowEnd.Sub(now), nil
}

// storeRateStore shares counters through a cache.Counter so limits hold across replicas.
type storeRateStore struct {
	store cache.Counter
}

// NewCacheRateStore wraps a cache counter in a RateStore implementation.
func NewCacheRateStore(store cache.Counter) RateStore {
	if store == nil {
		return nil
	}
	return &storeRateStore{store: store}
}

func (s *storeRateStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}
	count, ttl, err := s.store.IncrementWithTTL(ctx, "ratelimit:"+key, window)
	return int(count), ttl, err
}
