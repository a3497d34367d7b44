package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// UserDirectory lists users worth evaluating: anyone with stored preferences or with
// coursework due inside the lookahead window.
type UserDirectory struct {
	db        *gorm.DB
	lookahead time.Duration
	now       func() time.Time
}

var _ trigger.UserDirectory = (*UserDirectory)(nil)

// UserDirectoryOption customises the directory.
type UserDirectoryOption func(*UserDirectory)

// WithLookahead sets how far ahead upcoming assignments qualify a user.
func WithLookahead(d time.Duration) UserDirectoryOption {
	return func(u *UserDirectory) {
		if d > 0 {
			u.lookahead = d
		}
	}
}

// WithDirectoryClock overrides the time source.
func WithDirectoryClock(now func() time.Time) UserDirectoryOption {
	return func(u *UserDirectory) {
		if now != nil {
			u.now = now
		}
	}
}

// NewUserDirectory constructs a UserDirectory.
func NewUserDirectory(db *gorm.DB, opts ...UserDirectoryOption) (*UserDirectory, error) {
	if db == nil {
		return nil, errors.New("user directory: db is required")
	}
	dir := &UserDirectory{
		db:        db,
		lookahead: 14 * 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(dir)
	}
	return dir, nil
}

// ActiveUserIDs returns the distinct user ids in a stable order.
func (u *UserDirectory) ActiveUserIDs(ctx context.Context) ([]string, error) {
	ctx = ensureContext(ctx)
	db := u.db.WithContext(ctx)

	var fromPreferences []string
	if err := db.Model(&models.NotificationPreference{}).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &fromPreferences).Error; err != nil {
		return nil, fmt.Errorf("user directory: list preference users: %w", err)
	}

	now := u.now().UTC()
	var fromAssignments []string
	if err := db.Model(&models.Assignment{}).
		Where("due_at >= ? AND due_at < ?", now, now.Add(u.lookahead)).
		Distinct("user_id").
		Order("user_id ASC").
		Pluck("user_id", &fromAssignments).Error; err != nil {
		return nil, fmt.Errorf("user directory: list assignment users: %w", err)
	}

	return normaliseIDs(append(fromPreferences, fromAssignments...)), nil
}
