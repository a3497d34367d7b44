package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// ContextService reads the academic and mood records the engine aggregates per cycle.
type ContextService struct {
	db *gorm.DB
}

var _ trigger.ContextRepository = (*ContextService)(nil)

// NewContextService constructs a ContextService.
func NewContextService(db *gorm.DB) (*ContextService, error) {
	if db == nil {
		return nil, errors.New("context service: db is required")
	}
	return &ContextService{db: db}, nil
}

// UpcomingAssignments returns assignments due in [from, to) ordered by due date.
func (s *ContextService) UpcomingAssignments(ctx context.Context, userID string, from, to time.Time) ([]trigger.Assignment, error) {
	ctx = ensureContext(ctx)

	var rows []models.Assignment
	if err := s.forUser(ctx, userID).
		Where("due_at >= ? AND due_at < ?", from.UTC(), to.UTC()).
		Order("due_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list assignments: %w", err)
	}

	out := make([]trigger.Assignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.Assignment{
			ID:             row.ID,
			CourseID:       row.CourseID,
			Title:          row.Title,
			Type:           row.Type,
			DueAt:          row.DueAt,
			PointsPossible: row.PointsPossible,
		})
	}
	return out, nil
}

// Courses returns every enrolled course with its grade movement.
func (s *ContextService) Courses(ctx context.Context, userID string) ([]trigger.Course, error) {
	ctx = ensureContext(ctx)

	var rows []models.Course
	if err := s.forUser(ctx, userID).Order("name ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list courses: %w", err)
	}

	out := make([]trigger.Course, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.Course{
			ID:            row.ID,
			Name:          row.Name,
			Code:          row.Code,
			CurrentGrade:  row.CurrentGrade,
			PreviousGrade: row.PreviousGrade,
		})
	}
	return out, nil
}

// RecentSubmissions returns submissions handed in or graded since the given time.
func (s *ContextService) RecentSubmissions(ctx context.Context, userID string, since time.Time) ([]trigger.Submission, error) {
	ctx = ensureContext(ctx)

	var rows []models.Submission
	if err := s.forUser(ctx, userID).
		Where("(submitted_at >= ? OR graded_at >= ?)", since.UTC(), since.UTC()).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list submissions: %w", err)
	}
	return mapSubmissions(rows), nil
}

// MissingSubmissions returns every submission flagged as missing.
func (s *ContextService) MissingSubmissions(ctx context.Context, userID string) ([]trigger.Submission, error) {
	ctx = ensureContext(ctx)

	var rows []models.Submission
	if err := s.forUser(ctx, userID).
		Where("is_missing = ?", true).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list missing submissions: %w", err)
	}
	return mapSubmissions(rows), nil
}

// LateSubmissions returns late submissions handed in since the given time.
func (s *ContextService) LateSubmissions(ctx context.Context, userID string, since time.Time) ([]trigger.Submission, error) {
	ctx = ensureContext(ctx)

	var rows []models.Submission
	if err := s.forUser(ctx, userID).
		Where("is_late = ? AND submitted_at >= ?", true, since.UTC()).
		Order("submitted_at DESC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list late submissions: %w", err)
	}
	return mapSubmissions(rows), nil
}

// UpcomingSessions returns planned study sessions starting at or after from.
func (s *ContextService) UpcomingSessions(ctx context.Context, userID string, from time.Time) ([]trigger.StudySession, error) {
	ctx = ensureContext(ctx)

	var rows []models.StudySession
	if err := s.forUser(ctx, userID).
		Where("starts_at >= ?", from.UTC()).
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list study sessions: %w", err)
	}

	out := make([]trigger.StudySession, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.StudySession{
			ID:       row.ID,
			Title:    row.Title,
			StartsAt: row.StartsAt,
			EndsAt:   row.EndsAt,
		})
	}
	return out, nil
}

// UpcomingEvents returns calendar events starting in [from, to) ordered by start.
func (s *ContextService) UpcomingEvents(ctx context.Context, userID string, from, to time.Time) ([]trigger.CalendarEvent, error) {
	ctx = ensureContext(ctx)

	var rows []models.CalendarEvent
	if err := s.forUser(ctx, userID).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Order("starts_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list calendar events: %w", err)
	}

	out := make([]trigger.CalendarEvent, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.CalendarEvent{
			ID:        row.ID,
			Title:     row.Title,
			EventType: row.EventType,
			StartsAt:  row.StartsAt,
		})
	}
	return out, nil
}

// MoodSamples returns the most recent mood entries, newest first, scored by emotion.
func (s *ContextService) MoodSamples(ctx context.Context, userID string, limit int) ([]trigger.MoodSample, error) {
	ctx = ensureContext(ctx)
	if limit <= 0 {
		limit = 30
	}

	var rows []models.MoodEntry
	if err := s.forUser(ctx, userID).
		Order("recorded_at DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("context service: list mood entries: %w", err)
	}

	out := make([]trigger.MoodSample, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.MoodSample{
			Emotion:    row.Emotion,
			Sentiment:  trigger.SentimentFor(row.Emotion),
			Intensity:  row.Intensity,
			RecordedAt: row.RecordedAt,
		})
	}
	return out, nil
}

func (s *ContextService) forUser(ctx context.Context, userID string) *gorm.DB {
	return s.db.WithContext(ctx).Where("user_id = ?", strings.TrimSpace(userID))
}

func mapSubmissions(rows []models.Submission) []trigger.Submission {
	out := make([]trigger.Submission, 0, len(rows))
	for _, row := range rows {
		out = append(out, trigger.Submission{
			ID:              row.ID,
			AssignmentID:    row.AssignmentID,
			AssignmentTitle: row.AssignmentTitle,
			AssignmentType:  row.AssignmentType,
			Score:           row.Score,
			PointsPossible:  row.PointsPossible,
			IsLate:          row.IsLate,
			IsMissing:       row.IsMissing,
			SubmittedAt:     row.SubmittedAt,
			GradedAt:        row.GradedAt,
		})
	}
	return out
}
