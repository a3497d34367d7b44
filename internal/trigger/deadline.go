package trigger

import (
	"context"
	"math"
	"time"
)

const sessionLeadTime = 15 * time.Minute

// DeadlineEvaluator reminds users of due work, exams and imminent study sessions.
type DeadlineEvaluator struct{}

// Category implements Evaluator.
func (DeadlineEvaluator) Category() Category { return CategoryDeadline }

// Evaluate implements Evaluator.
func (DeadlineEvaluator) Evaluate(ctx context.Context, uc UserContext, _ Preferences) ([]Candidate, error) {
	now := uc.Local(uc.Now)
	tomorrow := addDays(now, 1)
	var out []Candidate

	for _, assignment := range uc.UpcomingAssignments {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		due := uc.Local(assignment.DueAt)
		if !due.After(now) {
			continue
		}

		switch {
		case sameDate(due, tomorrow):
			c := newCandidate(CategoryDeadline, "deadline_due_tomorrow", SlotMorning, 80, day, assignment.ID)
			c.Vars["assignment_title"] = assignment.Title
			c.Vars["due_time"] = due.Format("3:04 PM")
			c.Vars["assignment_id"] = assignment.ID
			c.Metadata["assignment_id"] = assignment.ID
			c.ExpiresAt = due
			out = append(out, c)
		case sameDate(due, now):
			hoursLeft := due.Sub(now).Hours()
			if hoursLeft <= 0 || hoursLeft > 12 {
				continue
			}
			priority := 90 + int(math.Round((12-hoursLeft)/12*10))
			c := newCandidate(CategoryDeadline, "deadline_due_today", SlotImmediate, priority, 12*time.Hour, assignment.ID)
			c.Vars["assignment_title"] = assignment.Title
			c.Vars["due_time"] = due.Format("3:04 PM")
			c.Vars["hours_left"] = formatScore(hoursLeft)
			c.Vars["assignment_id"] = assignment.ID
			c.Metadata["assignment_id"] = assignment.ID
			c.Metadata["hours_left"] = hoursLeft
			c.Urgent = true
			c.ExpiresAt = due
			out = append(out, c)
		}
	}

	for _, event := range uc.UpcomingEvents {
		start := uc.Local(event.StartsAt)
		if !event.IsExam() || !sameDate(start, tomorrow) {
			continue
		}
		c := newCandidate(CategoryDeadline, "deadline_exam_tomorrow", SlotEvening, 85, day, event.ID)
		c.Vars["event_title"] = event.Title
		c.Vars["start_time"] = start.Format("3:04 PM")
		c.Vars["event_id"] = event.ID
		c.Metadata["event_id"] = event.ID
		c.ExpiresAt = start
		out = append(out, c)
	}

	for _, session := range uc.UpcomingSessions {
		until := session.StartsAt.Sub(uc.Now)
		if until <= 0 || until > sessionLeadTime {
			continue
		}
		c := newCandidate(CategoryDeadline, "deadline_session_starting", SlotImmediate, 70, time.Hour, session.ID)
		c.Vars["session_title"] = session.Title
		c.Vars["minutes_until"] = formatMinutes(until)
		c.Vars["session_id"] = session.ID
		c.Metadata["session_id"] = session.ID
		c.ExpiresAt = session.StartsAt
		out = append(out, c)
	}

	return out, nil
}

func formatMinutes(d time.Duration) string {
	minutes := int(math.Ceil(d.Minutes()))
	return formatInt(minutes)
}
