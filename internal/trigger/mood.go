package trigger

import (
	"sort"
	"strings"
	"time"
)

const (
	neutralSentiment   = 3
	lowSentiment       = 2
	directionThreshold = 0.5
	trendWindow        = 7
)

var emotionSentiment = map[string]int{
	"overwhelmed": 1,
	"depressed":   1,
	"hopeless":    1,
	"sad":         2,
	"stressed":    2,
	"anxious":     2,
	"frustrated":  2,
	"angry":       2,
	"tired":       2,
	"bored":       3,
	"neutral":     3,
	"okay":        3,
	"calm":        4,
	"content":     4,
	"focused":     4,
	"motivated":   5,
	"happy":       5,
	"confident":   5,
	"excited":     6,
	"joyful":      6,
	"proud":       6,
}

// SentimentFor maps an emotion label to a sentiment score between 1 and 6.
// Unknown labels are neutral.
func SentimentFor(emotion string) int {
	if score, ok := emotionSentiment[strings.ToLower(strings.TrimSpace(emotion))]; ok {
		return score
	}
	return neutralSentiment
}

// Analyze derives the mood trend from samples. Samples may arrive in any order; the
// trend is computed most recent first.
func Analyze(samples []MoodSample) MoodTrend {
	ordered := make([]MoodSample, len(samples))
	copy(ordered, samples)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].RecordedAt.After(ordered[j].RecordedAt)
	})

	trend := MoodTrend{
		Average:     averageSentiment(ordered),
		Direction:   DirectionStable,
		SampleCount: len(ordered),
	}

	last := ordered
	if len(last) > trendWindow {
		last = last[:trendWindow]
	}
	trend.Last7 = last
	trend.Direction = direction(last)
	trend.ConsecutiveLowDays = consecutiveLowDays(ordered)
	return trend
}

func averageSentiment(samples []MoodSample) float64 {
	if len(samples) == 0 {
		return neutralSentiment
	}
	total := 0
	for _, sample := range samples {
		total += sample.Sentiment
	}
	return float64(total) / float64(len(samples))
}

// direction compares the recent half of the window against the earlier half.
func direction(window []MoodSample) Direction {
	if len(window) < 2 {
		return DirectionStable
	}
	half := len(window) / 2
	recent := averageSentiment(window[:half])
	earlier := averageSentiment(window[len(window)-half:])

	switch delta := recent - earlier; {
	case delta > directionThreshold:
		return DirectionImproving
	case delta < -directionThreshold:
		return DirectionDeclining
	default:
		return DirectionStable
	}
}

func consecutiveLowDays(ordered []MoodSample) int {
	count := 0
	var previous time.Time
	seen := make(map[string]struct{}, len(ordered))

	for _, sample := range ordered {
		day := truncateDay(sample.RecordedAt)
		key := day.Format(time.DateOnly)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}

		if !previous.IsZero() && daysBetween(day, previous) > 1 {
			break
		}
		if sample.Sentiment > lowSentiment {
			break
		}
		count++
		previous = day
	}
	return count
}

func truncateDay(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, 0, 0, 0, 0, t.Location())
}

// daysBetween counts calendar days from earlier to later using noon anchors so DST shifts
// do not skew the result.
func daysBetween(earlier, later time.Time) int {
	a := time.Date(earlier.Year(), earlier.Month(), earlier.Day(), 12, 0, 0, 0, time.UTC)
	b := time.Date(later.Year(), later.Month(), later.Day(), 12, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}

// improvementSpread returns the mean of the earliest three and the latest three samples in
// the window. ok is false when the window holds fewer than minSamples samples.
func improvementSpread(window []MoodSample, minSamples int) (earliest, latest float64, ok bool) {
	if minSamples < 6 {
		minSamples = 6
	}
	if len(window) < minSamples {
		return 0, 0, false
	}
	latest = averageSentiment(window[:3])
	earliest = averageSentiment(window[len(window)-3:])
	return earliest, latest, true
}
