package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studynotify/internal/database/testutil"
	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
)

func TestTriggerLogServiceRecordAndList(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTriggerLogService(db)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, svc.Record(ctx, trigger.AuditEntry{
		UserID:      "user-1",
		TriggerType: "deadline_due_tomorrow",
		TriggerData: map[string]any{"dedup_key": "deadline_due_tomorrow:a-1"},
		Reason:      trigger.ReasonDuplicate,
	}))
	require.NoError(t, svc.Record(ctx, trigger.AuditEntry{
		UserID:              "user-1",
		TriggerType:         "mood_heavy_load",
		NotificationCreated: true,
		NotificationID:      "n-1",
		Reason:              trigger.ReasonQueued,
	}))
	require.NoError(t, svc.Record(ctx, trigger.AuditEntry{
		UserID:      "user-2",
		TriggerType: "mood_heavy_load",
		Reason:      trigger.ReasonDailyCap,
	}))

	logs, total, err := svc.List(ctx, TriggerLogListOptions{Filters: TriggerLogFilters{UserID: "user-1"}})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, logs, 2)

	created := true
	logs, total, err = svc.List(ctx, TriggerLogListOptions{Filters: TriggerLogFilters{Created: &created}})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, "n-1", *logs[0].NotificationID)

	logs, _, err = svc.List(ctx, TriggerLogListOptions{Filters: TriggerLogFilters{TriggerType: "deadline_due_tomorrow"}})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Nil(t, logs[0].NotificationID)
	require.Equal(t, "deadline_due_tomorrow:a-1", decodeMetadata(logs[0].TriggerData)["dedup_key"])

	logs, total, err = svc.List(ctx, TriggerLogListOptions{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Equal(t, int64(3), total)
	require.Len(t, logs, 1)
}

func TestTriggerLogServiceValidatesEntries(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTriggerLogService(db)
	require.NoError(t, err)

	require.Error(t, svc.Record(context.Background(), trigger.AuditEntry{TriggerType: "x"}))
	require.Error(t, svc.Record(context.Background(), trigger.AuditEntry{UserID: "user-1"}))
}

func TestTriggerLogServiceTruncatesLongReasons(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTriggerLogService(db)
	require.NoError(t, err)

	require.NoError(t, svc.Record(context.Background(), trigger.AuditEntry{
		UserID:      "user-1",
		TriggerType: "deadline_due_today",
		Reason:      "queue write failed: " + strings.Repeat("x", 400),
	}))

	var row models.TriggerLog
	require.NoError(t, db.Take(&row).Error)
	require.Len(t, row.Reason, 255)
}

func TestTriggerLogServicePrune(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewTriggerLogService(db)
	require.NoError(t, err)

	old := models.TriggerLog{UserID: "user-1", TriggerType: "mood_improvement", Reason: trigger.ReasonQueued}
	old.CreatedAt = time.Now().UTC().AddDate(0, 0, -100)
	require.NoError(t, db.Create(&old).Error)
	require.NoError(t, svc.Record(context.Background(), trigger.AuditEntry{UserID: "user-1", TriggerType: "mood_improvement"}))

	removed, err := svc.Prune(context.Background(), time.Now().AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	_, total, err := svc.List(context.Background(), TriggerLogListOptions{})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
}
