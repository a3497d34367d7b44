package models

// NotificationTemplate holds the authored copy for a trigger key.
type NotificationTemplate struct {
	BaseModel

	Key               string `gorm:"type:varchar(128);uniqueIndex;not null" json:"key"`
	Type              string `gorm:"type:varchar(32);not null;index" json:"type"`
	TitleTemplate     string `gorm:"type:varchar(255);not null" json:"title_template"`
	BodyTemplate      string `gorm:"type:text" json:"body_template"`
	ActionURLTemplate string `gorm:"type:text" json:"action_url_template"`
	ActionLabel       string `gorm:"type:varchar(64)" json:"action_label"`
	Priority          int    `gorm:"default:50" json:"priority"`
	IsActive          bool   `gorm:"default:true;index" json:"is_active"`
}
