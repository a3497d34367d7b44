package models

// NotificationPreference stores the per-user delivery settings the engine reads.
type NotificationPreference struct {
	BaseModel

	UserID string `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`

	InAppEnabled bool `gorm:"default:true" json:"in_app_enabled"`
	EmailEnabled bool `gorm:"default:true" json:"email_enabled"`
	PushEnabled  bool `gorm:"default:false" json:"push_enabled"`
	SMSEnabled   bool `gorm:"default:false" json:"sms_enabled"`

	DeadlineEnabled     bool `gorm:"default:true" json:"deadline_enabled"`
	MoodEnabled         bool `gorm:"default:true" json:"mood_enabled"`
	PerformanceEnabled  bool `gorm:"default:true" json:"performance_enabled"`
	AISuggestionEnabled bool `gorm:"default:true" json:"ai_suggestion_enabled"`
	AchievementEnabled  bool `gorm:"default:true" json:"achievement_enabled"`

	QuietHoursStart string `gorm:"type:varchar(5)" json:"quiet_hours_start"`
	QuietHoursEnd   string `gorm:"type:varchar(5)" json:"quiet_hours_end"`
	Timezone        string `gorm:"type:varchar(64);default:'UTC'" json:"timezone"`

	MaxNotificationsPerDay       int     `gorm:"default:3" json:"max_notifications_per_day"`
	MinHoursBetweenNotifications float64 `gorm:"default:2" json:"min_hours_between_notifications"`
}
