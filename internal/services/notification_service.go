package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
	apperrors "github.com/charlesng35/studynotify/pkg/errors"
)

// errRejected rolls back an admission transaction whose gate decision was negative.
var errRejected = errors.New("admission rejected")

var liveStatuses = []models.NotificationStatus{models.NotificationPending, models.NotificationSent}

// ListNotificationsInput defines filters for querying user notifications.
type ListNotificationsInput struct {
	UserID string
	Status string
	Limit  int
	Offset int
}

// NotificationService is the notification queue. It admits candidates atomically and
// serves queue reads for the engine and the API.
type NotificationService struct {
	db *gorm.DB
}

var (
	_ trigger.QueueRepository = (*NotificationService)(nil)
	_ trigger.QueueReader     = (*NotificationService)(nil)
)

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db}, nil
}

// Enqueue runs the gate and inserts the notification together with its trigger log in one
// transaction. The dedup claim primary key makes concurrent admissions of the same key
// mutually exclusive; the per-user lock row serializes the daily cap and spacing checks.
func (s *NotificationService) Enqueue(ctx context.Context, admission trigger.Admission) (trigger.Outcome, error) {
	ctx = ensureContext(ctx)
	n := admission.Notification
	if strings.TrimSpace(n.UserID) == "" {
		return trigger.Outcome{}, errors.New("notification service: user id is required")
	}
	if strings.TrimSpace(n.DedupKey) == "" {
		return trigger.Outcome{}, errors.New("notification service: dedup key is required")
	}
	if admission.Now.IsZero() {
		admission.Now = time.Now()
	}

	var outcome trigger.Outcome
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockUser(tx, n.UserID); err != nil {
			return err
		}

		claimed, err := claimDedupKey(tx, admission)
		if err != nil {
			return err
		}

		state := trigger.GateState{Duplicate: !claimed}
		if claimed {
			if err := loadActivity(tx, admission, &state); err != nil {
				return err
			}
		}
		if reason := admission.Gate.Decide(state, admission); reason != "" {
			outcome = trigger.Outcome{Reason: reason}
			return errRejected
		}

		row, err := newNotificationRow(n)
		if err != nil {
			return err
		}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert notification: %w", err)
		}
		if err := tx.Model(&models.NotificationDedupClaim{}).
			Where("user_id = ? AND dedup_key = ?", n.UserID, n.DedupKey).
			Update("notification_id", row.ID).Error; err != nil {
			return fmt.Errorf("bind dedup claim: %w", err)
		}

		entry := admission.Audit
		entry.NotificationCreated = true
		entry.NotificationID = row.ID
		entry.Reason = trigger.ReasonQueued
		log, err := newTriggerLog(entry)
		if err != nil {
			return err
		}
		if err := tx.Create(&log).Error; err != nil {
			return fmt.Errorf("insert trigger log: %w", err)
		}

		outcome = trigger.Outcome{Admitted: true, NotificationID: row.ID, Reason: trigger.ReasonQueued}
		return nil
	})
	if errors.Is(err, errRejected) {
		return outcome, nil
	}
	if err != nil {
		return trigger.Outcome{}, fmt.Errorf("notification service: enqueue: %w", err)
	}
	return outcome, nil
}

// FindRecent returns pending or sent notifications with the dedup key created after since.
func (s *NotificationService) FindRecent(ctx context.Context, userID, dedupKey string, since time.Time) ([]trigger.QueuedNotification, error) {
	ctx = ensureContext(ctx)

	var rows []models.Notification
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND dedup_key = ? AND status IN ? AND created_at > ?",
			strings.TrimSpace(userID), strings.TrimSpace(dedupKey), liveStatuses, since.UTC()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: find recent: %w", err)
	}
	return mapNotificationRows(rows), nil
}

// CountSentOn counts notifications sent on the calendar day of day, in day's location.
func (s *NotificationService) CountSentOn(ctx context.Context, userID string, day time.Time) (int, error) {
	ctx = ensureContext(ctx)

	year, month, date := day.Date()
	start := time.Date(year, month, date, 0, 0, 0, 0, day.Location())
	end := time.Date(year, month, date+1, 0, 0, 0, 0, day.Location())

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("user_id = ? AND status = ? AND sent_at >= ? AND sent_at < ?",
			strings.TrimSpace(userID), models.NotificationSent, start.UTC(), end.UTC()).
		Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification service: count sent: %w", err)
	}
	return int(count), nil
}

// ListForUser returns notifications for the supplied user ordered by scheduled time.
func (s *NotificationService) ListForUser(ctx context.Context, input ListNotificationsInput) ([]trigger.QueuedNotification, int64, error) {
	ctx = ensureContext(ctx)
	userID := strings.TrimSpace(input.UserID)
	if userID == "" {
		return nil, 0, errors.New("notification service: user id is required")
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 25
	}

	query := s.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
	if status := strings.TrimSpace(input.Status); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: count notifications: %w", err)
	}

	var rows []models.Notification
	if err := query.
		Order("scheduled_for DESC").
		Limit(limit).
		Offset(max(0, input.Offset)).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("notification service: list notifications: %w", err)
	}
	return mapNotificationRows(rows), total, nil
}

// MarkSent records delivery of a pending notification.
func (s *NotificationService) MarkSent(ctx context.Context, notificationID string, at time.Time) error {
	return s.transition(ctx, notificationID, map[string]any{
		"status":  models.NotificationSent,
		"sent_at": at.UTC(),
	})
}

// MarkFailed records a terminal delivery failure of a pending notification.
func (s *NotificationService) MarkFailed(ctx context.Context, notificationID string) error {
	return s.transition(ctx, notificationID, map[string]any{
		"status": models.NotificationFailed,
	})
}

// PruneExpiredClaims removes dedup claims whose window closed before now.
func (s *NotificationService) PruneExpiredClaims(ctx context.Context, now time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("expires_at < ?", now.UTC()).Delete(&models.NotificationDedupClaim{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: prune dedup claims: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *NotificationService) transition(ctx context.Context, notificationID string, updates map[string]any) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND status = ?", strings.TrimSpace(notificationID), models.NotificationPending).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("notification service: update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// lockUser serializes admissions for one user. The lock row is created on first use so
// users without a preference row are covered too. SQLite takes its write lock on the insert
// and rejects FOR UPDATE.
func lockUser(tx *gorm.DB, userID string) error {
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.NotificationUserLock{UserID: userID}).Error; err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("create user lock: %w", err)
	}
	if tx.Dialector.Name() == "sqlite" {
		return nil
	}
	var lock models.NotificationUserLock
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		Take(&lock).Error; err != nil {
		return fmt.Errorf("lock user: %w", err)
	}
	return nil
}

// claimDedupKey reserves the candidate's dedup key for its window. It reports false when a
// live notification already holds the key.
func claimDedupKey(tx *gorm.DB, admission trigger.Admission) (bool, error) {
	n := admission.Notification
	now := admission.Now.UTC()
	expires := now.Add(admission.DedupWindow)

	claim := models.NotificationDedupClaim{
		UserID:    n.UserID,
		DedupKey:  n.DedupKey,
		ExpiresAt: expires,
	}
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&claim)
	if result.Error != nil && !isUniqueViolation(result.Error) {
		return false, fmt.Errorf("claim dedup key: %w", result.Error)
	}
	if result.Error == nil && result.RowsAffected == 1 {
		return true, nil
	}

	var existing models.NotificationDedupClaim
	if err := tx.Where("user_id = ? AND dedup_key = ?", n.UserID, n.DedupKey).Take(&existing).Error; err != nil {
		return false, fmt.Errorf("load dedup claim: %w", err)
	}

	live, err := claimIsLive(tx, existing, now)
	if err != nil || live {
		return false, err
	}

	// Take over the stale claim; a concurrent takeover bumps the version first.
	takeover := tx.Model(&models.NotificationDedupClaim{}).
		Where("user_id = ? AND dedup_key = ? AND version = ?", n.UserID, n.DedupKey, existing.Version).
		Updates(map[string]any{
			"expires_at":      expires,
			"notification_id": nil,
			"version":         existing.Version + 1,
		})
	if takeover.Error != nil {
		return false, fmt.Errorf("renew dedup claim: %w", takeover.Error)
	}
	return takeover.RowsAffected == 1, nil
}

func claimIsLive(tx *gorm.DB, claim models.NotificationDedupClaim, now time.Time) (bool, error) {
	if !claim.ExpiresAt.After(now) || claim.NotificationID == nil {
		return false, nil
	}
	var count int64
	if err := tx.Model(&models.Notification{}).
		Where("id = ? AND status IN ?", *claim.NotificationID, liveStatuses).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("check dedup claim: %w", err)
	}
	return count > 0, nil
}

// loadActivity fills the daily count and nearby send times from pending and sent
// notifications. Sent rows are placed at sent_at, pending rows at scheduled_for.
func loadActivity(tx *gorm.DB, admission trigger.Admission, state *trigger.GateState) error {
	dayStart, dayEnd := admission.DayBounds()
	lo, hi := admission.SpacingBounds()
	from, to := dayStart, dayEnd
	if lo.Before(from) {
		from = lo
	}
	if hi.After(to) {
		to = hi
	}
	from, to = from.UTC(), to.UTC()

	var rows []struct {
		ScheduledFor time.Time
		SentAt       *time.Time
	}
	if err := tx.Model(&models.Notification{}).
		Select("scheduled_for", "sent_at").
		Where("user_id = ? AND status IN ?", admission.Notification.UserID, liveStatuses).
		Where(tx.Where("sent_at IS NOT NULL AND sent_at >= ? AND sent_at <= ?", from, to).
			Or("sent_at IS NULL AND scheduled_for >= ? AND scheduled_for <= ?", from, to)).
		Find(&rows).Error; err != nil {
		return fmt.Errorf("load activity: %w", err)
	}

	for _, row := range rows {
		at := row.ScheduledFor
		if row.SentAt != nil {
			at = *row.SentAt
		}
		if !at.Before(dayStart) && at.Before(dayEnd) {
			state.QueuedOnDay++
		}
		if !at.Before(lo) && !at.After(hi) {
			state.NearbyActivity = append(state.NearbyActivity, at)
		}
	}
	return nil
}

func newNotificationRow(n trigger.QueuedNotification) (models.Notification, error) {
	channels, err := encodeJSON(n.Channels)
	if err != nil {
		return models.Notification{}, fmt.Errorf("marshal channels: %w", err)
	}
	metadata, err := encodeJSON(n.Metadata)
	if err != nil {
		return models.Notification{}, fmt.Errorf("marshal metadata: %w", err)
	}

	return models.Notification{
		UserID:       n.UserID,
		TemplateKey:  n.TemplateKey,
		DedupKey:     n.DedupKey,
		Type:         n.Type,
		Title:        n.Title,
		Body:         n.Body,
		ActionURL:    n.ActionURL,
		ActionLabel:  n.ActionLabel,
		Priority:     n.Priority,
		ScheduledFor: n.ScheduledFor.UTC(),
		Channels:     channels,
		Metadata:     metadata,
		Status:       models.NotificationPending,
	}, nil
}

func mapNotificationRows(rows []models.Notification) []trigger.QueuedNotification {
	out := make([]trigger.QueuedNotification, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapNotification(row))
	}
	return out
}

func mapNotification(row models.Notification) trigger.QueuedNotification {
	return trigger.QueuedNotification{
		ID:           row.ID,
		UserID:       row.UserID,
		TemplateKey:  row.TemplateKey,
		DedupKey:     row.DedupKey,
		Type:         row.Type,
		Title:        row.Title,
		Body:         row.Body,
		ActionURL:    row.ActionURL,
		ActionLabel:  row.ActionLabel,
		Priority:     row.Priority,
		ScheduledFor: row.ScheduledFor,
		Channels:     decodeChannels(row.Channels),
		Metadata:     decodeMetadata(row.Metadata),
		Status:       row.Status,
		SentAt:       row.SentAt,
		CreatedAt:    row.CreatedAt,
	}
}
