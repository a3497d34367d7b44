package trigger

import (
	"context"
	"strings"
)

const lowQuizRatio = 0.7

// PerformanceEvaluator flags grade drops, missing work, low quiz scores and late habits.
type PerformanceEvaluator struct{}

// Category implements Evaluator.
func (PerformanceEvaluator) Category() Category { return CategoryPerformance }

// Evaluate implements Evaluator.
func (PerformanceEvaluator) Evaluate(_ context.Context, uc UserContext, _ Preferences) ([]Candidate, error) {
	var out []Candidate

	for _, course := range uc.Courses {
		if course.CurrentGrade == nil || course.PreviousGrade == nil {
			continue
		}
		drop := *course.PreviousGrade - *course.CurrentGrade
		if drop < 5 {
			continue
		}
		c := newCandidate(CategoryPerformance, "performance_grade_dropped", SlotAfternoon, 85, 14*day, course.ID)
		c.Vars["course_name"] = course.Name
		c.Vars["grade_drop"] = formatScore(drop)
		c.Vars["current_grade"] = formatScore(*course.CurrentGrade)
		c.Vars["course_id"] = course.ID
		c.Metadata["course_id"] = course.ID
		c.Metadata["grade_drop"] = drop
		out = append(out, c)
	}

	if missing := len(uc.MissingSubmissions); missing >= 2 {
		c := newCandidate(CategoryPerformance, "performance_missing_assignments", SlotMorning, 80, week, "")
		c.Vars["missing_count"] = formatInt(missing)
		c.Metadata["missing_count"] = missing
		out = append(out, c)
	}

	for _, submission := range uc.RecentSubmissions {
		if !strings.EqualFold(strings.TrimSpace(submission.AssignmentType), "quiz") {
			continue
		}
		if submission.GradedAt == nil || submission.Score == nil || submission.PointsPossible <= 0 {
			continue
		}
		ratio := *submission.Score / submission.PointsPossible
		if ratio >= lowQuizRatio {
			continue
		}
		entity := submission.AssignmentID
		if entity == "" {
			entity = submission.ID
		}
		c := newCandidate(CategoryPerformance, "performance_low_quiz_score", SlotAfternoon, 75, week, entity)
		c.Vars["assignment_title"] = submission.AssignmentTitle
		c.Vars["percentage"] = formatScore(ratio * 100)
		c.Vars["assignment_id"] = entity
		c.Metadata["assignment_id"] = entity
		c.Metadata["percentage"] = ratio * 100
		out = append(out, c)
	}

	lateSince := uc.Now.Add(-lateLookback)
	late := 0
	for _, submission := range uc.LateSubmissions {
		if submission.SubmittedAt != nil && submission.SubmittedAt.Before(lateSince) {
			continue
		}
		late++
	}
	if late >= 3 {
		c := newCandidate(CategoryPerformance, "performance_late_submissions", SlotMorning, 80, week, "")
		c.Vars["late_count"] = formatInt(late)
		c.Metadata["late_count"] = late
		out = append(out, c)
	}

	return out, nil
}
