package models

import "time"

// Assignment is a piece of coursework with a due date.
type Assignment struct {
	BaseModel

	UserID         string    `gorm:"type:uuid;index:idx_assignment_user_due,priority:1;not null" json:"user_id"`
	CourseID       string    `gorm:"type:uuid;index" json:"course_id"`
	Title          string    `gorm:"type:varchar(255);not null" json:"title"`
	Type           string    `gorm:"type:varchar(32);default:'assignment'" json:"type"`
	DueAt          time.Time `gorm:"index:idx_assignment_user_due,priority:2;not null" json:"due_at"`
	PointsPossible float64   `json:"points_possible"`
}

// Course tracks the enrolled course and its grade movement between grading periods.
type Course struct {
	BaseModel

	UserID        string   `gorm:"type:uuid;index;not null" json:"user_id"`
	Name          string   `gorm:"type:varchar(255);not null" json:"name"`
	Code          string   `gorm:"type:varchar(64)" json:"code"`
	CurrentGrade  *float64 `json:"current_grade"`
	PreviousGrade *float64 `json:"previous_grade"`
}

// Submission records a student's hand-in for an assignment.
type Submission struct {
	BaseModel

	UserID          string     `gorm:"type:uuid;index;not null" json:"user_id"`
	AssignmentID    string     `gorm:"type:uuid;index" json:"assignment_id"`
	AssignmentTitle string     `gorm:"type:varchar(255)" json:"assignment_title"`
	AssignmentType  string     `gorm:"type:varchar(32)" json:"assignment_type"`
	Score           *float64   `json:"score"`
	PointsPossible  float64    `json:"points_possible"`
	IsLate          bool       `gorm:"default:false;index" json:"is_late"`
	IsMissing       bool       `gorm:"default:false;index" json:"is_missing"`
	SubmittedAt     *time.Time `json:"submitted_at"`
	GradedAt        *time.Time `json:"graded_at"`
}

// StudySession is a planned block of study time.
type StudySession struct {
	BaseModel

	UserID   string    `gorm:"type:uuid;index:idx_study_session_user_start,priority:1;not null" json:"user_id"`
	Title    string    `gorm:"type:varchar(255)" json:"title"`
	StartsAt time.Time `gorm:"index:idx_study_session_user_start,priority:2;not null" json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

// CalendarEvent is a dated entry such as a quiz, exam or class.
type CalendarEvent struct {
	BaseModel

	UserID    string    `gorm:"type:uuid;index:idx_calendar_event_user_start,priority:1;not null" json:"user_id"`
	Title     string    `gorm:"type:varchar(255);not null" json:"title"`
	EventType string    `gorm:"type:varchar(32);default:'other'" json:"event_type"`
	StartsAt  time.Time `gorm:"index:idx_calendar_event_user_start,priority:2;not null" json:"starts_at"`
}

// MoodEntry is a self-reported emotion sample.
type MoodEntry struct {
	BaseModel

	UserID     string    `gorm:"type:uuid;index:idx_mood_entry_user_recorded,priority:1;not null" json:"user_id"`
	Emotion    string    `gorm:"type:varchar(50);not null" json:"emotion"`
	Intensity  int       `json:"intensity"`
	RecordedAt time.Time `gorm:"index:idx_mood_entry_user_recorded,priority:2;not null" json:"recorded_at"`
}
