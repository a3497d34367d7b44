package models

import "gorm.io/datatypes"

// TriggerLog is the append-only audit trail of every admission decision.
type TriggerLog struct {
	AppendOnlyModel

	UserID              string         `gorm:"type:uuid;index;not null" json:"user_id"`
	TriggerType         string         `gorm:"type:varchar(128);index;not null" json:"trigger_type"`
	TriggerData         datatypes.JSON `json:"trigger_data"`
	NotificationCreated bool           `gorm:"index" json:"notification_created"`
	NotificationID      *string        `gorm:"type:uuid;index" json:"notification_id,omitempty"`
	Reason              string         `gorm:"type:varchar(255)" json:"reason"`
}
