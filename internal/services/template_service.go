package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// TemplateService resolves notification templates by trigger key.
type TemplateService struct {
	db *gorm.DB
}

var _ trigger.TemplateRepository = (*TemplateService)(nil)

// NewTemplateService constructs a TemplateService.
func NewTemplateService(db *gorm.DB) (*TemplateService, error) {
	if db == nil {
		return nil, errors.New("template service: db is required")
	}
	return &TemplateService{db: db}, nil
}

// Get loads the template for key. Inactive templates are returned with Active=false so the
// caller decides; a missing key yields trigger.ErrTemplateNotFound.
//
// KEY is reserved in MySQL, so the column is always addressed through quoted map conditions.
func (s *TemplateService) Get(ctx context.Context, key string) (trigger.Template, error) {
	ctx = ensureContext(ctx)
	key = strings.TrimSpace(key)
	if key == "" {
		return trigger.Template{}, trigger.ErrTemplateNotFound
	}

	var row models.NotificationTemplate
	if err := s.db.WithContext(ctx).Where(map[string]any{"key": key}).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return trigger.Template{}, trigger.ErrTemplateNotFound
		}
		return trigger.Template{}, fmt.Errorf("template service: load template: %w", err)
	}
	return mapTemplate(row), nil
}

// List returns every template ordered by key.
func (s *TemplateService) List(ctx context.Context) ([]trigger.Template, error) {
	ctx = ensureContext(ctx)

	var rows []models.NotificationTemplate
	if err := s.db.WithContext(ctx).Order(clause.OrderByColumn{Column: clause.Column{Name: "key"}}).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("template service: list templates: %w", err)
	}

	out := make([]trigger.Template, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapTemplate(row))
	}
	return out, nil
}

// SetActive toggles whether a template can be used.
func (s *TemplateService) SetActive(ctx context.Context, key string, active bool) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).Model(&models.NotificationTemplate{}).
		Where(map[string]any{"key": strings.TrimSpace(key)}).
		Update("is_active", active)
	if result.Error != nil {
		return fmt.Errorf("template service: update template: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return trigger.ErrTemplateNotFound
	}
	return nil
}

func mapTemplate(row models.NotificationTemplate) trigger.Template {
	return trigger.Template{
		Key:         row.Key,
		Type:        row.Type,
		Title:       row.TitleTemplate,
		Body:        row.BodyTemplate,
		ActionURL:   row.ActionURLTemplate,
		ActionLabel: row.ActionLabel,
		Priority:    row.Priority,
		Active:      row.IsActive,
	}
}
