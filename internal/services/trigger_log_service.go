package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// TriggerLogFilters encapsulates optional filters when querying trigger logs.
type TriggerLogFilters struct {
	UserID      string
	TriggerType string
	Created     *bool
	Since       *time.Time
	Until       *time.Time
}

// TriggerLogListOptions controls pagination and filtering for trigger log queries.
type TriggerLogListOptions struct {
	Page     int
	PageSize int
	Filters  TriggerLogFilters
}

// TriggerLogService persists and retrieves the admission audit trail.
type TriggerLogService struct {
	db *gorm.DB
}

var _ trigger.AuditRepository = (*TriggerLogService)(nil)

// NewTriggerLogService constructs a TriggerLogService using the provided database handle.
func NewTriggerLogService(db *gorm.DB) (*TriggerLogService, error) {
	if db == nil {
		return nil, errors.New("trigger log service: db is required")
	}
	return &TriggerLogService{db: db}, nil
}

// Record appends an audit entry.
func (s *TriggerLogService) Record(ctx context.Context, entry trigger.AuditEntry) error {
	ctx = ensureContext(ctx)

	row, err := newTriggerLog(entry)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("trigger log service: create log: %w", err)
	}
	return nil
}

// List returns paginated trigger logs ordered by creation time descending.
func (s *TriggerLogService) List(ctx context.Context, opts TriggerLogListOptions) ([]models.TriggerLog, int64, error) {
	ctx = ensureContext(ctx)
	page, perPage := clampPage(opts.Page, opts.PageSize, 50, 200)

	var (
		results []models.TriggerLog
		total   int64
	)

	query := applyTriggerLogFilters(s.db.WithContext(ctx).Model(&models.TriggerLog{}), opts.Filters)
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("trigger log service: count logs: %w", err)
	}

	if err := query.
		Order("created_at DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&results).Error; err != nil {
		return nil, 0, fmt.Errorf("trigger log service: list logs: %w", err)
	}
	return results, total, nil
}

// Prune deletes trigger logs created before the cutoff.
func (s *TriggerLogService) Prune(ctx context.Context, before time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Where("created_at < ?", before.UTC()).Delete(&models.TriggerLog{})
	if result.Error != nil {
		return 0, fmt.Errorf("trigger log service: prune logs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func newTriggerLog(entry trigger.AuditEntry) (models.TriggerLog, error) {
	userID := strings.TrimSpace(entry.UserID)
	if userID == "" {
		return models.TriggerLog{}, errors.New("trigger log service: user id is required")
	}
	triggerType := strings.TrimSpace(entry.TriggerType)
	if triggerType == "" {
		return models.TriggerLog{}, errors.New("trigger log service: trigger type is required")
	}

	var data datatypes.JSON
	if len(entry.TriggerData) > 0 {
		encoded, err := encodeJSON(entry.TriggerData)
		if err != nil {
			return models.TriggerLog{}, fmt.Errorf("trigger log service: marshal trigger data: %w", err)
		}
		data = encoded
	}

	row := models.TriggerLog{
		UserID:              userID,
		TriggerType:         triggerType,
		TriggerData:         data,
		NotificationCreated: entry.NotificationCreated,
		Reason:              truncate(entry.Reason, 255),
	}
	if id := strings.TrimSpace(entry.NotificationID); id != "" {
		row.NotificationID = &id
	}
	return row, nil
}

func applyTriggerLogFilters(query *gorm.DB, filters TriggerLogFilters) *gorm.DB {
	if userID := strings.TrimSpace(filters.UserID); userID != "" {
		query = query.Where("user_id = ?", userID)
	}
	if triggerType := strings.TrimSpace(filters.TriggerType); triggerType != "" {
		query = query.Where("trigger_type = ?", triggerType)
	}
	if filters.Created != nil {
		query = query.Where("notification_created = ?", *filters.Created)
	}
	if filters.Since != nil {
		query = query.Where("created_at >= ?", filters.Since.UTC())
	}
	if filters.Until != nil {
		query = query.Where("created_at <= ?", filters.Until.UTC())
	}
	return query
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
