package trigger

import (
	"context"
	"strconv"
)

// MoodEvaluator reacts to low or improving mood, especially under workload pressure.
type MoodEvaluator struct {
	MinSamples int
}

// Category implements Evaluator.
func (MoodEvaluator) Category() Category { return CategoryMood }

// Evaluate implements Evaluator.
func (e MoodEvaluator) Evaluate(_ context.Context, uc UserContext, _ Preferences) ([]Candidate, error) {
	trend := uc.Mood
	var out []Candidate

	if trend.SampleCount > 0 && trend.Average < 3 && uc.AssignmentCount >= 3 {
		c := newCandidate(CategoryMood, "mood_heavy_load", SlotAfternoon, 95, 48*hour, "")
		c.Vars["assignment_count"] = formatInt(uc.AssignmentCount)
		c.Vars["mood_average"] = formatScore(trend.Average)
		c.Metadata["mood_average"] = trend.Average
		c.Metadata["assignment_count"] = uc.AssignmentCount
		out = append(out, c)
	}

	if len(trend.Last7) > 0 && trend.Last7[0].Sentiment <= lowSentiment {
		dueSoon := 0
		limit := uc.Now.Add(3 * day)
		for _, assignment := range uc.UpcomingAssignments {
			if assignment.DueAt.After(uc.Now) && !assignment.DueAt.After(limit) {
				dueSoon++
			}
		}
		if dueSoon >= 2 {
			c := newCandidate(CategoryMood, "mood_stressed_deadlines", SlotEvening, 90, day, "")
			c.Vars["due_soon_count"] = formatInt(dueSoon)
			c.Vars["emotion"] = trend.Last7[0].Emotion
			c.Metadata["due_soon_count"] = dueSoon
			out = append(out, c)
		}
	}

	if trend.ConsecutiveLowDays >= 5 {
		c := newCandidate(CategoryMood, "mood_consistently_low", SlotMorning, 95, 72*hour, "")
		c.Vars["low_days"] = formatInt(trend.ConsecutiveLowDays)
		c.Metadata["consecutive_low_days"] = trend.ConsecutiveLowDays
		out = append(out, c)
	}

	if trend.Direction == DirectionImproving {
		if earliest, latest, ok := improvementSpread(trend.Last7, e.MinSamples); ok && earliest < 3 && latest > 4 {
			c := newCandidate(CategoryMood, "mood_improvement", SlotImmediate, 50, week, "")
			c.Vars["mood_average"] = formatScore(trend.Average)
			c.Metadata["earliest_average"] = earliest
			c.Metadata["latest_average"] = latest
			out = append(out, c)
		}
	}

	return out, nil
}

func formatInt(value int) string {
	return strconv.Itoa(value)
}
