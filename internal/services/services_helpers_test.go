package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/database/testutil"
	"github.com/charlesng35/studynotify/internal/trigger"
)

// queueNow is a Tuesday morning.
var queueNow = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T {
	return &v
}

func newQueue(t *testing.T) (*NotificationService, *gorm.DB) {
	t.Helper()
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)
	return svc, db
}

func admissionFor(userID, dedupKey string, at time.Time) trigger.Admission {
	return trigger.Admission{
		Notification: trigger.QueuedNotification{
			UserID:       userID,
			TemplateKey:  "deadline_due_tomorrow",
			DedupKey:     dedupKey,
			Type:         "deadline",
			Title:        "Essay is due tomorrow",
			Body:         "Your assignment is due tomorrow at 17:00.",
			Priority:     80,
			ScheduledFor: at,
			Channels:     []string{"in_app", "email"},
			Metadata:     map[string]any{"trigger_type": "deadline_due_tomorrow", "dedup_key": dedupKey},
		},
		DedupWindow: 24 * time.Hour,
		Now:         queueNow,
		Location:    time.UTC,
		MaxPerDay:   3,
		MinSpacing:  2 * time.Hour,
		Audit: trigger.AuditEntry{
			UserID:      userID,
			TriggerType: "deadline_due_tomorrow",
			TriggerData: map[string]any{"dedup_key": dedupKey},
		},
	}
}
