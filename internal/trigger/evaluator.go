package trigger

import (
	"context"
	"strconv"
	"time"
)

// Evaluator produces candidates for one category from a user context.
type Evaluator interface {
	Category() Category
	Evaluate(ctx context.Context, uc UserContext, prefs Preferences) ([]Candidate, error)
}

// RuleConfig tunes thresholds shared by the evaluators.
type RuleConfig struct {
	// WorkloadCapacity is the number of weighted items per week treated as 100% load.
	WorkloadCapacity int
	// MinMoodSamples is the sample count required before an improvement is reported.
	MinMoodSamples int
}

func (c RuleConfig) withDefaults() RuleConfig {
	if c.WorkloadCapacity <= 0 {
		c.WorkloadCapacity = 5
	}
	if c.MinMoodSamples < 6 {
		c.MinMoodSamples = 6
	}
	return c
}

// DefaultEvaluators returns one evaluator per category.
func DefaultEvaluators(cfg RuleConfig) []Evaluator {
	cfg = cfg.withDefaults()
	return []Evaluator{
		DeadlineEvaluator{},
		MoodEvaluator{MinSamples: cfg.MinMoodSamples},
		PerformanceEvaluator{},
		SuggestionEvaluator{WorkloadCapacity: cfg.WorkloadCapacity},
		AchievementEvaluator{},
	}
}

const (
	hour = time.Hour
	day  = 24 * hour
	week = 7 * day
)

func newCandidate(category Category, key string, slot Slot, priority int, window time.Duration, entityID string) Candidate {
	dedupKey := key
	if entityID != "" {
		dedupKey = key + ":" + entityID
	}
	return Candidate{
		TemplateKey: key,
		Category:    category,
		Vars:        map[string]string{},
		Slot:        slot,
		Priority:    clampPriority(priority),
		DedupKey:    dedupKey,
		DedupWindow: window,
		Metadata:    map[string]any{},
	}
}

func clampPriority(priority int) int {
	switch {
	case priority < 0:
		return 0
	case priority > 100:
		return 100
	default:
		return priority
	}
}

// sameDate reports whether a and b fall on the same calendar date in their own locations.
func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func addDays(t time.Time, days int) time.Time {
	year, month, d := t.Date()
	return time.Date(year, month, d+days, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

func formatScore(value float64) string {
	return strconv.FormatFloat(value, 'f', 1, 64)
}
