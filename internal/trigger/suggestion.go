package trigger

import (
	"context"
	"math"
	"time"

	"github.com/dustin/go-humanize"
)

// SuggestionEvaluator proposes study blocks, workload warnings and exam reviews.
type SuggestionEvaluator struct {
	WorkloadCapacity int
}

// Category implements Evaluator.
func (SuggestionEvaluator) Category() Category { return CategoryAISuggestion }

// Evaluate implements Evaluator.
func (e SuggestionEvaluator) Evaluate(_ context.Context, uc UserContext, _ Preferences) ([]Candidate, error) {
	now := uc.Local(uc.Now)
	var out []Candidate

	if nearest, ok := nearestAssignment(uc); ok {
		days := nearest.DueAt.Sub(uc.Now).Hours() / 24
		if days >= 2 && days <= 5 {
			c := newCandidate(CategoryAISuggestion, "ai_study_block", SlotAfternoon, 60, 12*hour, "")
			c.Vars["assignment_title"] = nearest.Title
			c.Vars["relative_due"] = humanize.RelTime(nearest.DueAt, uc.Now, "ago", "from now")
			c.Vars["assignment_id"] = nearest.ID
			c.Metadata["assignment_id"] = nearest.ID
			out = append(out, c)
		}
	}

	if weekday := now.Weekday(); weekday == time.Friday || weekday == time.Saturday {
		percent := Workload(uc, e.WorkloadCapacity)
		if percent > 80 {
			c := newCandidate(CategoryAISuggestion, "ai_workload_warning", SlotWeekend, 65, week, "")
			c.Vars["workload_percent"] = formatInt(int(math.Round(percent)))
			c.Metadata["workload_percent"] = percent
			out = append(out, c)
		}
	}

	for _, event := range uc.UpcomingEvents {
		if !event.IsExam() {
			continue
		}
		days := event.StartsAt.Sub(uc.Now).Hours() / 24
		if days < 3 || days > 7 {
			continue
		}
		c := newCandidate(CategoryAISuggestion, "ai_review_recommendation", SlotAfternoon, 70, week, event.ID)
		c.Vars["event_title"] = event.Title
		c.Vars["days_until"] = formatInt(int(math.Floor(days)))
		c.Vars["event_id"] = event.ID
		c.Metadata["event_id"] = event.ID
		out = append(out, c)
	}

	return out, nil
}

func nearestAssignment(uc UserContext) (Assignment, bool) {
	var (
		nearest Assignment
		found   bool
	)
	for _, assignment := range uc.UpcomingAssignments {
		if !assignment.DueAt.After(uc.Now) {
			continue
		}
		if !found || assignment.DueAt.Before(nearest.DueAt) {
			nearest = assignment
			found = true
		}
	}
	return nearest, found
}

// Workload projects next week's load as a percentage of capacity, capped at 100.
// Exams weigh twice as much as assignments.
func Workload(uc UserContext, capacity int) float64 {
	if capacity <= 0 {
		capacity = 5
	}
	start, end := nextWeek(uc.Local(uc.Now))

	units := 0
	for _, assignment := range uc.UpcomingAssignments {
		if inRange(assignment.DueAt, start, end) {
			units++
		}
	}
	for _, event := range uc.UpcomingEvents {
		if event.IsExam() && inRange(event.StartsAt, start, end) {
			units += 2
		}
	}
	return math.Min(100, float64(units)/float64(capacity)*100)
}

// nextWeek returns the Monday-to-Monday range following now.
func nextWeek(now time.Time) (start, end time.Time) {
	days := (int(time.Monday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	year, month, d := now.Date()
	start = time.Date(year, month, d+days, 0, 0, 0, 0, now.Location())
	end = time.Date(year, month, d+days+7, 0, 0, 0, 0, now.Location())
	return start, end
}

func inRange(t, start, end time.Time) bool {
	return !t.Before(start) && t.Before(end)
}
