package trigger

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrTemplateNotFound is returned when no active template exists for a key.
	ErrTemplateNotFound = errors.New("template not found")
	// ErrPreferencesNotFound is returned when a user has no stored preferences.
	ErrPreferencesNotFound = errors.New("preferences not found")
	// ErrInvalidAchievement is returned for malformed achievement events.
	ErrInvalidAchievement = errors.New("invalid achievement")
)

// ContextRepository reads the academic and mood records of a user.
type ContextRepository interface {
	UpcomingAssignments(ctx context.Context, userID string, from, to time.Time) ([]Assignment, error)
	Courses(ctx context.Context, userID string) ([]Course, error)
	RecentSubmissions(ctx context.Context, userID string, since time.Time) ([]Submission, error)
	MissingSubmissions(ctx context.Context, userID string) ([]Submission, error)
	LateSubmissions(ctx context.Context, userID string, since time.Time) ([]Submission, error)
	UpcomingSessions(ctx context.Context, userID string, from time.Time) ([]StudySession, error)
	UpcomingEvents(ctx context.Context, userID string, from, to time.Time) ([]CalendarEvent, error)
	MoodSamples(ctx context.Context, userID string, limit int) ([]MoodSample, error)
}

// PreferencesRepository loads the single preference record of a user.
type PreferencesRepository interface {
	Get(ctx context.Context, userID string) (Preferences, error)
}

// TemplateRepository resolves templates by key.
type TemplateRepository interface {
	Get(ctx context.Context, key string) (Template, error)
}

// QueueRepository persists admitted notifications.
//
// Enqueue must evaluate the gate and insert the notification with its audit entry
// atomically so concurrent cycles for the same user cannot both pass the checks.
type QueueRepository interface {
	Enqueue(ctx context.Context, admission Admission) (Outcome, error)
}

// QueueReader answers history queries against the queue outside the admission path.
type QueueReader interface {
	FindRecent(ctx context.Context, userID, dedupKey string, since time.Time) ([]QueuedNotification, error)
	CountSentOn(ctx context.Context, userID string, day time.Time) (int, error)
}

// AuditRepository appends trigger log entries for decisions made outside Enqueue.
type AuditRepository interface {
	Record(ctx context.Context, entry AuditEntry) error
}

// UserDirectory lists the users a batch cycle should evaluate.
type UserDirectory interface {
	ActiveUserIDs(ctx context.Context) ([]string, error)
}

// Publisher fans out queued notifications to live subscribers.
type Publisher interface {
	PublishQueued(notification QueuedNotification)
}
