package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// UpdatePreferencesInput carries a partial preference update. Nil fields keep their value.
type UpdatePreferencesInput struct {
	InAppEnabled *bool
	EmailEnabled *bool
	PushEnabled  *bool
	SMSEnabled   *bool

	DeadlineEnabled     *bool
	MoodEnabled         *bool
	PerformanceEnabled  *bool
	AISuggestionEnabled *bool
	AchievementEnabled  *bool

	QuietHoursStart *string
	QuietHoursEnd   *string
	Timezone        *string

	MaxNotificationsPerDay       *int
	MinHoursBetweenNotifications *float64
}

// PreferencesService stores per-user notification preferences.
type PreferencesService struct {
	db *gorm.DB
}

var _ trigger.PreferencesRepository = (*PreferencesService)(nil)

// NewPreferencesService constructs a PreferencesService.
func NewPreferencesService(db *gorm.DB) (*PreferencesService, error) {
	if db == nil {
		return nil, errors.New("preferences service: db is required")
	}
	return &PreferencesService{db: db}, nil
}

// Get returns the engine view of a user's preferences, or trigger.ErrPreferencesNotFound.
func (s *PreferencesService) Get(ctx context.Context, userID string) (trigger.Preferences, error) {
	row, err := s.Load(ctx, userID)
	if err != nil {
		return trigger.Preferences{}, err
	}
	return MapPreferences(*row), nil
}

// Load returns the stored preference row.
func (s *PreferencesService) Load(ctx context.Context, userID string) (*models.NotificationPreference, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("preferences service: user id is required")
	}

	var row models.NotificationPreference
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, trigger.ErrPreferencesNotFound
		}
		return nil, fmt.Errorf("preferences service: load preferences: %w", err)
	}
	return &row, nil
}

// Upsert applies a partial update, creating the row with column defaults when absent.
func (s *PreferencesService) Upsert(ctx context.Context, userID string, input UpdatePreferencesInput) (*models.NotificationPreference, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, errors.New("preferences service: user id is required")
	}

	db := s.db.WithContext(ctx)
	var row models.NotificationPreference
	if err := db.Where(models.NotificationPreference{UserID: userID}).FirstOrCreate(&row).Error; err != nil {
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("preferences service: create preferences: %w", err)
		}
		// Lost a create race; the row exists now.
		if err := db.Where("user_id = ?", userID).Take(&row).Error; err != nil {
			return nil, fmt.Errorf("preferences service: load preferences: %w", err)
		}
	}

	if updates := preferenceUpdates(input); len(updates) > 0 {
		if err := db.Model(&row).Updates(updates).Error; err != nil {
			return nil, fmt.Errorf("preferences service: update preferences: %w", err)
		}
	}
	if err := db.Where("id = ?", row.ID).Take(&row).Error; err != nil {
		return nil, fmt.Errorf("preferences service: reload preferences: %w", err)
	}
	return &row, nil
}

// MapPreferences converts a stored row into the engine's preference view.
func MapPreferences(row models.NotificationPreference) trigger.Preferences {
	return trigger.Preferences{
		UserID: row.UserID,
		Channels: trigger.Channels{
			InApp: row.InAppEnabled,
			Email: row.EmailEnabled,
			Push:  row.PushEnabled,
			SMS:   row.SMSEnabled,
		},
		Toggles: map[trigger.Category]bool{
			trigger.CategoryDeadline:     row.DeadlineEnabled,
			trigger.CategoryMood:         row.MoodEnabled,
			trigger.CategoryPerformance:  row.PerformanceEnabled,
			trigger.CategoryAISuggestion: row.AISuggestionEnabled,
			trigger.CategoryAchievement:  row.AchievementEnabled,
		},
		QuietHoursStart: row.QuietHoursStart,
		QuietHoursEnd:   row.QuietHoursEnd,
		Timezone:        row.Timezone,
		MaxPerDay:       row.MaxNotificationsPerDay,
		MinHoursBetween: row.MinHoursBetweenNotifications,
	}
}

// preferenceUpdates builds a column map so false and zero values are written.
func preferenceUpdates(input UpdatePreferencesInput) map[string]any {
	updates := make(map[string]any)
	setBool := func(column string, value *bool) {
		if value != nil {
			updates[column] = *value
		}
	}
	setString := func(column string, value *string) {
		if value != nil {
			updates[column] = strings.TrimSpace(*value)
		}
	}

	setBool("in_app_enabled", input.InAppEnabled)
	setBool("email_enabled", input.EmailEnabled)
	setBool("push_enabled", input.PushEnabled)
	setBool("sms_enabled", input.SMSEnabled)
	setBool("deadline_enabled", input.DeadlineEnabled)
	setBool("mood_enabled", input.MoodEnabled)
	setBool("performance_enabled", input.PerformanceEnabled)
	setBool("ai_suggestion_enabled", input.AISuggestionEnabled)
	setBool("achievement_enabled", input.AchievementEnabled)
	setString("quiet_hours_start", input.QuietHoursStart)
	setString("quiet_hours_end", input.QuietHoursEnd)
	setString("timezone", input.Timezone)

	if input.MaxNotificationsPerDay != nil {
		updates["max_notifications_per_day"] = *input.MaxNotificationsPerDay
	}
	if input.MinHoursBetweenNotifications != nil {
		updates["min_hours_between_notifications"] = *input.MinHoursBetweenNotifications
	}
	return updates
}
