package trigger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charlesng35/studynotify/internal/models"
)

var testNow = time.Date(2026, time.March, 10, 10, 0, 0, 0, time.UTC) // Tuesday

func fixedClock(at time.Time) func() time.Time {
	return func() time.Time { return at }
}

func ptr[T any](v T) *T { return &v }

type memoryContext struct {
	assignments []Assignment
	courses     []Course
	submissions []Submission
	missing     []Submission
	late        []Submission
	sessions    []StudySession
	events      []CalendarEvent
	mood        []MoodSample
	failures    map[string]error
}

func (m *memoryContext) fail(slice string) error {
	if m.failures == nil {
		return nil
	}
	return m.failures[slice]
}

func (m *memoryContext) UpcomingAssignments(_ context.Context, _ string, from, to time.Time) ([]Assignment, error) {
	if err := m.fail("assignments"); err != nil {
		return nil, err
	}
	var out []Assignment
	for _, a := range m.assignments {
		if !a.DueAt.Before(from) && !a.DueAt.After(to) {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memoryContext) Courses(context.Context, string) ([]Course, error) {
	return m.courses, m.fail("courses")
}

func (m *memoryContext) RecentSubmissions(context.Context, string, time.Time) ([]Submission, error) {
	return m.submissions, m.fail("submissions")
}

func (m *memoryContext) MissingSubmissions(context.Context, string) ([]Submission, error) {
	return m.missing, m.fail("missing")
}

func (m *memoryContext) LateSubmissions(context.Context, string, time.Time) ([]Submission, error) {
	return m.late, m.fail("late")
}

func (m *memoryContext) UpcomingSessions(context.Context, string, time.Time) ([]StudySession, error) {
	return m.sessions, m.fail("sessions")
}

func (m *memoryContext) UpcomingEvents(context.Context, string, time.Time, time.Time) ([]CalendarEvent, error) {
	return m.events, m.fail("events")
}

func (m *memoryContext) MoodSamples(_ context.Context, _ string, limit int) ([]MoodSample, error) {
	if err := m.fail("mood"); err != nil {
		return nil, err
	}
	if len(m.mood) > limit {
		return m.mood[:limit], nil
	}
	return m.mood, nil
}

type memoryPreferences struct {
	prefs map[string]Preferences
}

func (m *memoryPreferences) Get(_ context.Context, userID string) (Preferences, error) {
	prefs, ok := m.prefs[userID]
	if !ok {
		return Preferences{}, ErrPreferencesNotFound
	}
	return prefs, nil
}

type memoryTemplates struct {
	templates map[string]Template
}

func (m *memoryTemplates) Get(_ context.Context, key string) (Template, error) {
	tmpl, ok := m.templates[key]
	if !ok {
		return Template{}, ErrTemplateNotFound
	}
	return tmpl, nil
}

func templatesFor(keys ...string) *memoryTemplates {
	out := &memoryTemplates{templates: map[string]Template{}}
	for _, key := range keys {
		out.templates[key] = Template{
			Key:      key,
			Type:     "reminder",
			Title:    key + ": {{ assignment_title }}",
			Body:     "Due {{ due_time }}",
			Priority: 50,
			Active:   true,
		}
	}
	return out
}

type memoryAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (m *memoryAudit) Record(_ context.Context, entry AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
	return nil
}

func (m *memoryAudit) reasons() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for _, entry := range m.entries {
		out = append(out, entry.Reason)
	}
	return out
}

// memoryQueue evaluates the gate and inserts under one mutex, mirroring the transactional store.
type memoryQueue struct {
	mu            sync.Mutex
	notifications []QueuedNotification
	audit         *memoryAudit
	seq           int
	failWith      error
}

func (m *memoryQueue) Enqueue(_ context.Context, admission Admission) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failWith != nil {
		return Outcome{}, m.failWith
	}

	n := admission.Notification
	state := GateState{}
	dayStart, dayEnd := admission.DayBounds()
	lo, hi := admission.SpacingBounds()
	for _, existing := range m.notifications {
		if existing.UserID != n.UserID || !live(existing) {
			continue
		}
		if existing.DedupKey == n.DedupKey && existing.CreatedAt.After(admission.Now.Add(-admission.DedupWindow)) {
			state.Duplicate = true
		}
		at := activity(existing)
		if !at.Before(dayStart) && at.Before(dayEnd) {
			state.QueuedOnDay++
		}
		if at.After(lo) && at.Before(hi) {
			state.NearbyActivity = append(state.NearbyActivity, at)
		}
	}

	if reason := admission.Gate.Decide(state, admission); reason != "" {
		return Outcome{Reason: reason}, nil
	}

	m.seq++
	n.ID = fmt.Sprintf("n-%d", m.seq)
	n.Status = models.NotificationPending
	n.CreatedAt = admission.Now
	m.notifications = append(m.notifications, n)

	entry := admission.Audit
	entry.NotificationCreated = true
	entry.NotificationID = n.ID
	entry.Reason = ReasonQueued
	_ = m.audit.Record(context.Background(), entry)
	return Outcome{Admitted: true, NotificationID: n.ID}, nil
}

func (m *memoryQueue) seedSent(userID string, at time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.notifications = append(m.notifications, QueuedNotification{
		ID:           fmt.Sprintf("seed-%d", m.seq),
		UserID:       userID,
		TemplateKey:  "seeded",
		DedupKey:     fmt.Sprintf("seeded:%d", m.seq),
		ScheduledFor: at,
		Status:       models.NotificationSent,
		SentAt:       ptr(at),
		CreatedAt:    at,
	})
}

func (m *memoryQueue) all() []QueuedNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]QueuedNotification, len(m.notifications))
	copy(out, m.notifications)
	return out
}

func live(n QueuedNotification) bool {
	return n.Status == models.NotificationPending || n.Status == models.NotificationSent
}

func activity(n QueuedNotification) time.Time {
	if n.SentAt != nil {
		return *n.SentAt
	}
	return n.ScheduledFor
}

type recordingPublisher struct {
	mu        sync.Mutex
	published []QueuedNotification
}

func (p *recordingPublisher) PublishQueued(n QueuedNotification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, n)
}

type stubEvaluator struct {
	category Category
	evaluate func(ctx context.Context) ([]Candidate, error)
}

func (s stubEvaluator) Category() Category { return s.category }

func (s stubEvaluator) Evaluate(ctx context.Context, _ UserContext, _ Preferences) ([]Candidate, error) {
	return s.evaluate(ctx)
}

func defaultPreferences(userID string) Preferences {
	return Preferences{
		UserID:          userID,
		Channels:        Channels{InApp: true, Email: true},
		Toggles:         AllCategoriesEnabled(),
		QuietHoursStart: "22:00",
		QuietHoursEnd:   "07:00",
		Timezone:        "UTC",
		MaxPerDay:       3,
		MinHoursBetween: 2,
	}
}
