package trigger

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/charlesng35/studynotify/pkg/logger"
)

const (
	assignmentHorizon = 14 * 24 * time.Hour
	eventHorizon      = 14 * 24 * time.Hour
	lateLookback      = 14 * 24 * time.Hour
	submissionWindow  = 30 * 24 * time.Hour
	moodSampleLimit   = 30
)

// Aggregator assembles a UserContext from the context repository.
type Aggregator struct {
	repo ContextRepository
	log  *zap.Logger
}

// NewAggregator constructs an Aggregator.
func NewAggregator(repo ContextRepository) *Aggregator {
	return &Aggregator{repo: repo, log: logger.WithModule("trigger.context")}
}

// Build fetches every slice concurrently. A failed read yields an empty slice and never
// aborts the build.
func (a *Aggregator) Build(ctx context.Context, userID string, now time.Time, loc *time.Location) UserContext {
	if loc == nil {
		loc = time.UTC
	}
	uc := UserContext{
		UserID:   userID,
		Now:      now,
		Location: loc,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		uc.UpcomingAssignments = fetch(a, "assignments", userID, func() ([]Assignment, error) {
			return a.repo.UpcomingAssignments(gctx, userID, now, now.Add(assignmentHorizon))
		})
		return nil
	})
	g.Go(func() error {
		uc.Courses = fetch(a, "courses", userID, func() ([]Course, error) {
			return a.repo.Courses(gctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		uc.RecentSubmissions = fetch(a, "submissions", userID, func() ([]Submission, error) {
			return a.repo.RecentSubmissions(gctx, userID, now.Add(-submissionWindow))
		})
		return nil
	})
	g.Go(func() error {
		uc.MissingSubmissions = fetch(a, "missing_submissions", userID, func() ([]Submission, error) {
			return a.repo.MissingSubmissions(gctx, userID)
		})
		return nil
	})
	g.Go(func() error {
		uc.LateSubmissions = fetch(a, "late_submissions", userID, func() ([]Submission, error) {
			return a.repo.LateSubmissions(gctx, userID, now.Add(-lateLookback))
		})
		return nil
	})
	g.Go(func() error {
		uc.UpcomingSessions = fetch(a, "study_sessions", userID, func() ([]StudySession, error) {
			return a.repo.UpcomingSessions(gctx, userID, now)
		})
		return nil
	})
	g.Go(func() error {
		uc.UpcomingEvents = fetch(a, "calendar_events", userID, func() ([]CalendarEvent, error) {
			return a.repo.UpcomingEvents(gctx, userID, now, now.Add(eventHorizon))
		})
		return nil
	})
	g.Go(func() error {
		uc.MoodSamples = fetch(a, "mood_samples", userID, func() ([]MoodSample, error) {
			return a.repo.MoodSamples(gctx, userID, moodSampleLimit)
		})
		return nil
	})
	_ = g.Wait()

	uc.AssignmentCount = len(uc.UpcomingAssignments)
	uc.Mood = Analyze(uc.MoodSamples)
	return uc
}

func fetch[T any](a *Aggregator, slice, userID string, read func() ([]T, error)) []T {
	items, err := read()
	if err != nil {
		a.log.Warn("context read failed",
			zap.String("user_id", userID),
			zap.String("slice", slice),
			zap.Error(err),
		)
		return []T{}
	}
	if items == nil {
		return []T{}
	}
	return items
}
