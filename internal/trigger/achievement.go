package trigger

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// AchievementKind names an event-driven achievement.
type AchievementKind string

const (
	AchievementStreak           AchievementKind = "streak"
	AchievementPerfectWeek      AchievementKind = "perfect_week"
	AchievementGradeImprovement AchievementKind = "grade_improvement"
)

// AchievementEvent is raised by the action that earned the achievement.
type AchievementEvent struct {
	Kind       AchievementKind
	StreakDays int
	CourseID   string
	CourseName string
	GradeDelta float64
	OccurredAt time.Time
}

// AchievementEvaluator only participates in the periodic cycle for its toggle check.
// Achievements fire from RecordAchievement.
type AchievementEvaluator struct{}

// Category implements Evaluator.
func (AchievementEvaluator) Category() Category { return CategoryAchievement }

// Evaluate implements Evaluator.
func (AchievementEvaluator) Evaluate(context.Context, UserContext, Preferences) ([]Candidate, error) {
	return nil, nil
}

// Candidate builds the candidate for an achievement event.
func (AchievementEvaluator) Candidate(event AchievementEvent) (Candidate, error) {
	occurred := event.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now()
	}

	switch event.Kind {
	case AchievementStreak:
		if event.StreakDays <= 0 {
			return Candidate{}, fmt.Errorf("%w: streak days must be positive", ErrInvalidAchievement)
		}
		c := newCandidate(CategoryAchievement, "achievement_streak", SlotImmediate, 50, day, formatInt(event.StreakDays))
		c.Vars["streak_days"] = formatInt(event.StreakDays)
		c.Metadata["streak_days"] = event.StreakDays
		return c, nil
	case AchievementPerfectWeek:
		year, wk := occurred.ISOWeek()
		c := newCandidate(CategoryAchievement, "achievement_perfect_week", SlotImmediate, 55, week, fmt.Sprintf("%d-W%02d", year, wk))
		c.Metadata["iso_week"] = fmt.Sprintf("%d-W%02d", year, wk)
		return c, nil
	case AchievementGradeImprovement:
		courseID := strings.TrimSpace(event.CourseID)
		if courseID == "" {
			return Candidate{}, fmt.Errorf("%w: course id is required", ErrInvalidAchievement)
		}
		if event.GradeDelta <= 0 {
			return Candidate{}, fmt.Errorf("%w: grade delta must be positive", ErrInvalidAchievement)
		}
		c := newCandidate(CategoryAchievement, "achievement_grade_improvement", SlotImmediate, 45, week, courseID)
		c.Vars["course_name"] = event.CourseName
		c.Vars["grade_delta"] = formatScore(event.GradeDelta)
		c.Vars["course_id"] = courseID
		c.Metadata["course_id"] = courseID
		c.Metadata["grade_delta"] = event.GradeDelta
		return c, nil
	default:
		return Candidate{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidAchievement, event.Kind)
	}
}
