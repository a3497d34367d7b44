package trigger

import (
	"strings"
	"time"

	"github.com/charlesng35/studynotify/internal/models"
)

// Category groups related rules that share a preference toggle.
type Category string

const (
	CategoryDeadline     Category = "deadline"
	CategoryMood         Category = "mood"
	CategoryPerformance  Category = "performance"
	CategoryAISuggestion Category = "ai_suggestion"
	CategoryAchievement  Category = "achievement"
)

// Categories lists every category in evaluation order.
func Categories() []Category {
	return []Category{
		CategoryDeadline,
		CategoryMood,
		CategoryPerformance,
		CategoryAISuggestion,
		CategoryAchievement,
	}
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryDeadline, CategoryMood, CategoryPerformance, CategoryAISuggestion, CategoryAchievement:
		return true
	default:
		return false
	}
}

// Direction is the short-term movement of mood sentiment.
type Direction string

const (
	DirectionImproving Direction = "improving"
	DirectionDeclining Direction = "declining"
	DirectionStable    Direction = "stable"
)

// Slot names a preferred delivery time.
type Slot string

const (
	SlotImmediate Slot = "immediate"
	SlotMorning   Slot = "morning"
	SlotAfternoon Slot = "afternoon"
	SlotEvening   Slot = "evening"
	SlotWeekend   Slot = "weekend"
)

// Assignment is an upcoming piece of coursework.
type Assignment struct {
	ID             string
	CourseID       string
	Title          string
	Type           string
	DueAt          time.Time
	PointsPossible float64
}

// Course carries grade movement between grading periods.
type Course struct {
	ID            string
	Name          string
	Code          string
	CurrentGrade  *float64
	PreviousGrade *float64
}

// Submission is a hand-in together with its grading state.
type Submission struct {
	ID              string
	AssignmentID    string
	AssignmentTitle string
	AssignmentType  string
	Score           *float64
	PointsPossible  float64
	IsLate          bool
	IsMissing       bool
	SubmittedAt     *time.Time
	GradedAt        *time.Time
}

// StudySession is a planned study block.
type StudySession struct {
	ID       string
	Title    string
	StartsAt time.Time
	EndsAt   time.Time
}

// CalendarEvent is a dated entry such as a quiz or exam.
type CalendarEvent struct {
	ID        string
	Title     string
	EventType string
	StartsAt  time.Time
}

// IsExam reports whether the event is an exam or quiz.
func (e CalendarEvent) IsExam() bool {
	switch strings.ToLower(strings.TrimSpace(e.EventType)) {
	case "exam", "quiz", "midterm", "final":
		return true
	default:
		return false
	}
}

// MoodSample is one self-reported emotion with its sentiment score (1-6).
type MoodSample struct {
	Emotion    string
	Sentiment  int
	Intensity  int
	RecordedAt time.Time
}

// MoodTrend summarises recent mood samples.
type MoodTrend struct {
	Average            float64
	Direction          Direction
	Last7              []MoodSample
	ConsecutiveLowDays int
	SampleCount        int
}

// UserContext is the immutable snapshot every evaluator reads during one cycle.
type UserContext struct {
	UserID   string
	Now      time.Time
	Location *time.Location

	UpcomingAssignments []Assignment
	Courses             []Course
	RecentSubmissions   []Submission
	MissingSubmissions  []Submission
	LateSubmissions     []Submission
	UpcomingSessions    []StudySession
	UpcomingEvents      []CalendarEvent
	MoodSamples         []MoodSample

	Mood            MoodTrend
	AssignmentCount int
}

// Local converts t into the user's time zone.
func (c UserContext) Local(t time.Time) time.Time {
	if c.Location == nil {
		return t.UTC()
	}
	return t.In(c.Location)
}

// Channels lists enabled delivery channels.
type Channels struct {
	InApp bool
	Email bool
	Push  bool
	SMS   bool
}

// Names returns the enabled channels in a stable order.
func (c Channels) Names() []string {
	names := make([]string, 0, 4)
	if c.InApp {
		names = append(names, "in_app")
	}
	if c.Email {
		names = append(names, "email")
	}
	if c.Push {
		names = append(names, "push")
	}
	if c.SMS {
		names = append(names, "sms")
	}
	return names
}

// Preferences holds a user's delivery settings.
type Preferences struct {
	UserID   string
	Channels Channels
	Toggles  map[Category]bool

	QuietHoursStart string
	QuietHoursEnd   string
	Timezone        string

	MaxPerDay       int
	MinHoursBetween float64
}

// Enabled reports whether the category's toggle is on. Unknown categories are off.
func (p Preferences) Enabled(category Category) bool {
	if p.Toggles == nil {
		return false
	}
	return p.Toggles[category]
}

// Location resolves the configured time zone, falling back to UTC.
func (p Preferences) Location() *time.Location {
	name := strings.TrimSpace(p.Timezone)
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}

// QuietWindow parses the quiet-hour boundaries. The zero window is returned when unset or invalid.
func (p Preferences) QuietWindow() QuietWindow {
	window, err := ParseQuietWindow(p.QuietHoursStart, p.QuietHoursEnd)
	if err != nil {
		return QuietWindow{}
	}
	return window
}

// MinSpacing converts MinHoursBetween into a duration.
func (p Preferences) MinSpacing() time.Duration {
	if p.MinHoursBetween <= 0 {
		return 0
	}
	return time.Duration(p.MinHoursBetween * float64(time.Hour))
}

// AllCategoriesEnabled returns a toggle map with every category on.
func AllCategoriesEnabled() map[Category]bool {
	toggles := make(map[Category]bool, 5)
	for _, category := range Categories() {
		toggles[category] = true
	}
	return toggles
}

// Candidate is a proposed notification produced by an evaluator before admission.
type Candidate struct {
	TemplateKey string
	Category    Category
	Vars        map[string]string
	Slot        Slot
	// RequestedAt pins the send time instead of resolving Slot when non-zero.
	RequestedAt time.Time
	Priority    int
	DedupKey    string
	DedupWindow time.Duration
	Metadata    map[string]any
	Urgent      bool
	// ExpiresAt is the moment after which delivery is pointless. Zero means never.
	ExpiresAt time.Time
}

// Template is the authored copy for one trigger key.
type Template struct {
	Key         string
	Type        string
	Title       string
	Body        string
	ActionURL   string
	ActionLabel string
	Priority    int
	Active      bool
}

// QueuedNotification is a notification as stored in the queue.
type QueuedNotification struct {
	ID           string                    `json:"id"`
	UserID       string                    `json:"user_id"`
	TemplateKey  string                    `json:"template_key"`
	DedupKey     string                    `json:"dedup_key"`
	Type         string                    `json:"type"`
	Title        string                    `json:"title"`
	Body         string                    `json:"body"`
	ActionURL    string                    `json:"action_url,omitempty"`
	ActionLabel  string                    `json:"action_label,omitempty"`
	Priority     int                       `json:"priority"`
	ScheduledFor time.Time                 `json:"scheduled_for"`
	Channels     []string                  `json:"channels"`
	Metadata     map[string]any            `json:"metadata,omitempty"`
	Status       models.NotificationStatus `json:"status"`
	SentAt       *time.Time                `json:"sent_at,omitempty"`
	CreatedAt    time.Time                 `json:"created_at"`
}

// AuditEntry is one admission decision.
type AuditEntry struct {
	UserID              string
	TriggerType         string
	TriggerData         map[string]any
	NotificationCreated bool
	NotificationID      string
	Reason              string
}
