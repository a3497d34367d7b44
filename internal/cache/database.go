package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/studynotify/internal/models"
)

var errNotInitialised = errors.New("cache: database store not initialised")

// DatabaseStore implements the cache Store interface using the primary SQL database.
type DatabaseStore struct {
	db  *gorm.DB
	now func() time.Time
}

// Option customises a DatabaseStore.
type Option func(*DatabaseStore)

// WithClock overrides the time source used for expiry.
func WithClock(now func() time.Time) Option {
	return func(s *DatabaseStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewDatabaseStore constructs a database-backed Store.
func NewDatabaseStore(db *gorm.DB, opts ...Option) *DatabaseStore {
	if db == nil {
		return nil
	}
	store := &DatabaseStore{db: db, now: time.Now}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// IncrementWithTTL bumps the counter for key in a single upsert. An expired counter restarts
// at one with a new window; a live window is never extended.
func (s *DatabaseStore) IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if s == nil {
		return 0, 0, errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if window <= 0 {
		window = time.Minute
	}

	now := s.now().UTC()
	fresh := models.CacheEntry{Key: key, Hits: 1, ExpiresAt: now.Add(window)}

	// hits is assigned before expires_at: MySQL evaluates assignments left to right.
	table := fresh.TableName()
	expired := table + ".expires_at <= ?"
	upsert := clause.OnConflict{
		Columns: []clause.Column{{Name: "key"}},
		DoUpdates: clause.Set{
			{Column: clause.Column{Name: "hits"}, Value: gorm.Expr("CASE WHEN "+expired+" THEN 1 ELSE "+table+".hits + 1 END", now)},
			{Column: clause.Column{Name: "expires_at"}, Value: gorm.Expr("CASE WHEN "+expired+" THEN ? ELSE "+table+".expires_at END", now, fresh.ExpiresAt)},
			{Column: clause.Column{Name: "updated_at"}, Value: now},
		},
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(upsert).Create(&fresh).Error; err != nil {
			return err
		}
		return tx.Where(keyCondition(key)).Take(&entry).Error
	})
	if err != nil {
		return 0, 0, fmt.Errorf("cache: increment %s: %w", key, err)
	}

	return entry.Hits, entry.ExpiresAt.Sub(now), nil
}

// Set upserts the value for a given key with expiry. A non-positive ttl never expires.
func (s *DatabaseStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s == nil {
		return errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	expiry := time.Time{}
	if ttl > 0 {
		expiry = s.now().UTC().Add(ttl)
	}

	entry := models.CacheEntry{
		Key:       key,
		Value:     value,
		ExpiresAt: expiry,
	}

	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "key"}},
			DoUpdates: clause.AssignmentColumns([]string{"value", "expires_at", "updated_at"}),
		}).Create(&entry).Error
}

// Get retrieves a value by key, respecting expiry.
func (s *DatabaseStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s == nil {
		return nil, false, errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var entry models.CacheEntry
	err := s.db.WithContext(ctx).Where(keyCondition(key)).Take(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if !entry.ExpiresAt.IsZero() && s.now().After(entry.ExpiresAt) {
		_ = s.Delete(ctx, key)
		return nil, false, nil
	}

	return entry.Value, true, nil
}

// Delete removes keys from the store.
func (s *DatabaseStore) Delete(ctx context.Context, keys ...string) error {
	if s == nil {
		return errNotInitialised
	}
	if len(keys) == 0 {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	return s.db.WithContext(ctx).Where(map[string]any{"key": keys}).Delete(&models.CacheEntry{}).Error
}

// PruneExpired removes entries whose expiry has passed. Entries without expiry are kept.
func (s *DatabaseStore) PruneExpired(ctx context.Context) (int64, error) {
	if s == nil {
		return 0, errNotInitialised
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := s.db.WithContext(ctx).
		Where("expires_at > ? AND expires_at <= ?", time.Time{}, s.now().UTC()).
		Delete(&models.CacheEntry{})
	return result.RowsAffected, result.Error
}

// keyCondition addresses the key column through a quoted map condition; KEY is reserved in MySQL.
func keyCondition(key string) map[string]any {
	return map[string]any{"key": key}
}
