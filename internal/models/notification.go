package models

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationStatus is the lifecycle state of a queued notification.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// Notification is a rendered notification waiting for (or finished with) delivery.
// The delivery pipeline owns the transition out of pending.
type Notification struct {
	BaseModel

	UserID       string             `gorm:"type:uuid;index:idx_notification_user_status,priority:1;not null" json:"user_id"`
	TemplateKey  string             `gorm:"type:varchar(128);index;not null" json:"template_key"`
	DedupKey     string             `gorm:"type:varchar(255);index" json:"dedup_key"`
	Type         string             `gorm:"type:varchar(32);not null" json:"type"`
	Title        string             `gorm:"type:varchar(255);not null" json:"title"`
	Body         string             `gorm:"type:text" json:"body"`
	ActionURL    string             `gorm:"type:text" json:"action_url,omitempty"`
	ActionLabel  string             `gorm:"type:varchar(64)" json:"action_label,omitempty"`
	Priority     int                `gorm:"index" json:"priority"`
	ScheduledFor time.Time          `gorm:"index;not null" json:"scheduled_for"`
	Channels     datatypes.JSON     `json:"channels"`
	Metadata     datatypes.JSON     `json:"metadata"`
	Status       NotificationStatus `gorm:"type:varchar(16);default:'pending';index:idx_notification_user_status,priority:2" json:"status"`
	SentAt       *time.Time         `gorm:"index" json:"sent_at"`
}

// NotificationDedupClaim reserves a dedup key for a user until ExpiresAt. The composite
// primary key is what makes concurrent admissions for the same key mutually exclusive.
type NotificationDedupClaim struct {
	UserID         string    `gorm:"primaryKey;type:uuid"`
	DedupKey       string    `gorm:"primaryKey;type:varchar(255)"`
	NotificationID *string   `gorm:"type:uuid"`
	ExpiresAt      time.Time `gorm:"index;not null"`
	Version        int       `gorm:"not null;default:0"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NotificationUserLock is a per-user row locked by every admission transaction. It exists
// for users without a preference row, so the daily cap and spacing checks always
// serialize per user.
type NotificationUserLock struct {
	UserID    string `gorm:"primaryKey;type:uuid"`
	CreatedAt time.Time
}
