package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/trigger"
	apperrors "github.com/charlesng35/studynotify/pkg/errors"
)

func TestNewNotificationServiceRequiresDB(t *testing.T) {
	_, err := NewNotificationService(nil)
	require.Error(t, err)
}

func TestNotificationServiceEnqueueAdmitsAndAudits(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	outcome, err := svc.Enqueue(ctx, admissionFor("user-1", "deadline_due_tomorrow:a-1", queueNow.Add(4*time.Hour)))
	require.NoError(t, err)
	require.True(t, outcome.Admitted)
	require.Equal(t, trigger.ReasonQueued, outcome.Reason)
	require.NotEmpty(t, outcome.NotificationID)

	var row models.Notification
	require.NoError(t, db.Take(&row, "id = ?", outcome.NotificationID).Error)
	require.Equal(t, models.NotificationPending, row.Status)
	require.Equal(t, 80, row.Priority)
	require.True(t, queueNow.Add(4*time.Hour).Equal(row.ScheduledFor))
	require.Equal(t, []string{"in_app", "email"}, decodeChannels(row.Channels))
	require.Equal(t, "deadline_due_tomorrow", decodeMetadata(row.Metadata)["trigger_type"])

	var logs []models.TriggerLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	require.True(t, logs[0].NotificationCreated)
	require.NotNil(t, logs[0].NotificationID)
	require.Equal(t, outcome.NotificationID, *logs[0].NotificationID)
	require.Equal(t, trigger.ReasonQueued, logs[0].Reason)

	var claim models.NotificationDedupClaim
	require.NoError(t, db.Take(&claim, "user_id = ? AND dedup_key = ?", "user-1", "deadline_due_tomorrow:a-1").Error)
	require.NotNil(t, claim.NotificationID)
	require.Equal(t, outcome.NotificationID, *claim.NotificationID)
	require.True(t, queueNow.Add(24*time.Hour).Equal(claim.ExpiresAt))
}

func TestNotificationServiceEnqueueRejectsDuplicate(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, admissionFor("user-1", "key-1", queueNow.Add(time.Hour)))
	require.NoError(t, err)
	require.True(t, first.Admitted)

	second, err := svc.Enqueue(ctx, admissionFor("user-1", "key-1", queueNow.Add(6*time.Hour)))
	require.NoError(t, err)
	require.False(t, second.Admitted)
	require.Equal(t, trigger.ReasonDuplicate, second.Reason)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.TriggerLog{}).Count(&count).Error)
	require.Equal(t, int64(1), count, "rejections are audited by the caller")

	other, err := svc.Enqueue(ctx, admissionFor("user-2", "key-1", queueNow.Add(time.Hour)))
	require.NoError(t, err)
	require.True(t, other.Admitted, "dedup keys are scoped per user")
}

func TestNotificationServiceEnqueueDailyCapRollsBackClaim(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	for i, hour := range []int{8, 12} {
		admission := admissionFor("user-1", []string{"a", "b"}[i], time.Date(2026, 3, 10, hour, 0, 0, 0, time.UTC))
		admission.MaxPerDay = 2
		outcome, err := svc.Enqueue(ctx, admission)
		require.NoError(t, err)
		require.True(t, outcome.Admitted)
	}

	capped := admissionFor("user-1", "c", time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC))
	capped.MaxPerDay = 2
	outcome, err := svc.Enqueue(ctx, capped)
	require.NoError(t, err)
	require.False(t, outcome.Admitted)
	require.Equal(t, trigger.ReasonDailyCap, outcome.Reason)

	var claims int64
	require.NoError(t, db.Model(&models.NotificationDedupClaim{}).Where("dedup_key = ?", "c").Count(&claims).Error)
	require.Zero(t, claims)

	nextDay := admissionFor("user-1", "c", time.Date(2026, 3, 11, 16, 0, 0, 0, time.UTC))
	nextDay.MaxPerDay = 2
	outcome, err = svc.Enqueue(ctx, nextDay)
	require.NoError(t, err)
	require.True(t, outcome.Admitted)
}

func TestNotificationServiceEnqueueUnlimitedCap(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		admission := admissionFor("user-1", string(rune('a'+i)), queueNow.Add(time.Duration(i*3)*time.Hour))
		admission.MaxPerDay = 0
		outcome, err := svc.Enqueue(ctx, admission)
		require.NoError(t, err)
		require.True(t, outcome.Admitted, "admission %d", i)
	}
}

func TestNotificationServiceEnqueueSpacing(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	outcome, err := svc.Enqueue(ctx, admissionFor("user-1", "a", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.True(t, outcome.Admitted)

	outcome, err = svc.Enqueue(ctx, admissionFor("user-1", "b", time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, trigger.ReasonTooSoon, outcome.Reason)

	outcome, err = svc.Enqueue(ctx, admissionFor("user-1", "b", time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.Equal(t, trigger.ReasonTooSoon, outcome.Reason, "spacing applies before and after")

	outcome, err = svc.Enqueue(ctx, admissionFor("user-1", "b", time.Date(2026, 3, 10, 16, 0, 0, 0, time.UTC)))
	require.NoError(t, err)
	require.True(t, outcome.Admitted, "exactly the minimum gap is allowed")
}

func TestNotificationServiceSentNotificationsCountAtSendTime(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow.Add(-time.Hour)))
	require.NoError(t, err)
	require.NoError(t, svc.MarkSent(ctx, first.NotificationID, queueNow.Add(-30*time.Minute)))

	capped := admissionFor("user-1", "b", queueNow.Add(6*time.Hour))
	capped.MaxPerDay = 1
	outcome, err := svc.Enqueue(ctx, capped)
	require.NoError(t, err)
	require.Equal(t, trigger.ReasonDailyCap, outcome.Reason)

	soon := admissionFor("user-1", "b", queueNow.Add(time.Hour))
	outcome, err = svc.Enqueue(ctx, soon)
	require.NoError(t, err)
	require.Equal(t, trigger.ReasonTooSoon, outcome.Reason)

	count, err := svc.CountSentOn(ctx, "user-1", queueNow)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	count, err = svc.CountSentOn(ctx, "user-1", queueNow.AddDate(0, 0, 1))
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestNotificationServiceDayBoundsFollowLocation(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()
	newYork, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 23:00 local on March 10.
	late := admissionFor("user-1", "a", time.Date(2026, 3, 11, 3, 0, 0, 0, time.UTC))
	late.Location = newYork
	late.MaxPerDay = 1
	late.MinSpacing = 0
	outcome, err := svc.Enqueue(ctx, late)
	require.NoError(t, err)
	require.True(t, outcome.Admitted)

	// 10:00 local on March 10.
	morning := admissionFor("user-1", "b", time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC))
	morning.Location = newYork
	morning.MaxPerDay = 1
	morning.MinSpacing = 0
	outcome, err = svc.Enqueue(ctx, morning)
	require.NoError(t, err)
	require.Equal(t, trigger.ReasonDailyCap, outcome.Reason)
}

func TestNotificationServiceReclaimsKeyAfterFailure(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow.Add(time.Hour)))
	require.NoError(t, err)
	require.NoError(t, svc.MarkFailed(ctx, first.NotificationID))

	second, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow.Add(time.Hour)))
	require.NoError(t, err)
	require.True(t, second.Admitted)
	require.NotEqual(t, first.NotificationID, second.NotificationID)

	var claim models.NotificationDedupClaim
	require.NoError(t, db.Take(&claim, "user_id = ? AND dedup_key = ?", "user-1", "a").Error)
	require.Equal(t, 1, claim.Version)
	require.Equal(t, second.NotificationID, *claim.NotificationID)
}

func TestNotificationServiceReclaimsExpiredKey(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	first := admissionFor("user-1", "a", queueNow.Add(time.Hour))
	first.DedupWindow = time.Hour
	outcome, err := svc.Enqueue(ctx, first)
	require.NoError(t, err)
	require.True(t, outcome.Admitted)

	later := admissionFor("user-1", "a", queueNow.Add(5*time.Hour))
	later.Now = queueNow.Add(2 * time.Hour)
	later.DedupWindow = time.Hour
	outcome, err = svc.Enqueue(ctx, later)
	require.NoError(t, err)
	require.True(t, outcome.Admitted)
}

func TestNotificationServiceConcurrentDuplicatesAdmitOnce(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	const workers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		reasons  = map[string]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := svc.Enqueue(ctx, admissionFor("user-1", "mood_heavy_load", queueNow.Add(4*time.Hour)))
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reasons["error: "+err.Error()]++
				return
			}
			if outcome.Admitted {
				admitted++
				return
			}
			reasons[outcome.Reason]++
		}()
	}
	wg.Wait()

	require.Equal(t, 1, admitted)
	require.Equal(t, map[string]int{trigger.ReasonDuplicate: workers - 1}, reasons)

	var count int64
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestNotificationServiceConcurrentCapWithoutPreferences(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	const workers = 6
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		reasons  = map[string]int{}
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admission := admissionFor("user-1", fmt.Sprintf("key-%d", i), time.Date(2026, 3, 10, 11+2*i, 0, 0, 0, time.UTC))
			admission.MaxPerDay = 1
			outcome, err := svc.Enqueue(ctx, admission)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				reasons["error: "+err.Error()]++
				return
			}
			if outcome.Admitted {
				admitted++
				return
			}
			reasons[outcome.Reason]++
		}(i)
	}
	wg.Wait()

	require.Equal(t, 1, admitted)
	require.Equal(t, map[string]int{trigger.ReasonDailyCap: workers - 1}, reasons)

	var count int64
	require.NoError(t, db.Model(&models.NotificationPreference{}).Count(&count).Error)
	require.Zero(t, count)
	require.NoError(t, db.Model(&models.Notification{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
	require.NoError(t, db.Model(&models.NotificationUserLock{}).Where("user_id = ?", "user-1").Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestNotificationServiceEnqueueValidatesInput(t *testing.T) {
	svc, _ := newQueue(t)

	_, err := svc.Enqueue(context.Background(), admissionFor("", "a", queueNow))
	require.Error(t, err)

	_, err = svc.Enqueue(context.Background(), admissionFor("user-1", " ", queueNow))
	require.Error(t, err)
}

func TestNotificationServiceFindRecent(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	outcome, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow.Add(time.Hour)))
	require.NoError(t, err)

	since := time.Now().Add(-time.Hour)
	recent, err := svc.FindRecent(ctx, "user-1", "a", since)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	require.Equal(t, outcome.NotificationID, recent[0].ID)
	require.Equal(t, models.NotificationPending, recent[0].Status)

	recent, err = svc.FindRecent(ctx, "user-1", "a", time.Now().Add(time.Hour))
	require.NoError(t, err)
	require.Empty(t, recent)

	require.NoError(t, svc.MarkFailed(ctx, outcome.NotificationID))
	recent, err = svc.FindRecent(ctx, "user-1", "a", since)
	require.NoError(t, err)
	require.Empty(t, recent, "failed notifications do not count")
}

func TestNotificationServiceListForUser(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	first, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow.Add(time.Hour)))
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, admissionFor("user-1", "b", queueNow.Add(4*time.Hour)))
	require.NoError(t, err)
	require.NoError(t, svc.MarkSent(ctx, first.NotificationID, queueNow.Add(time.Hour)))

	items, total, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "user-1"})
	require.NoError(t, err)
	require.Equal(t, int64(2), total)
	require.Len(t, items, 2)
	require.Equal(t, "b", items[0].DedupKey)

	sent, total, err := svc.ListForUser(ctx, ListNotificationsInput{UserID: "user-1", Status: "sent"})
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	require.Equal(t, first.NotificationID, sent[0].ID)
	require.NotNil(t, sent[0].SentAt)

	_, _, err = svc.ListForUser(ctx, ListNotificationsInput{})
	require.Error(t, err)
}

func TestNotificationServiceTransitionsOnlyPending(t *testing.T) {
	svc, _ := newQueue(t)
	ctx := context.Background()

	outcome, err := svc.Enqueue(ctx, admissionFor("user-1", "a", queueNow))
	require.NoError(t, err)
	require.NoError(t, svc.MarkSent(ctx, outcome.NotificationID, queueNow))

	err = svc.MarkFailed(ctx, outcome.NotificationID)
	require.ErrorIs(t, err, apperrors.ErrNotFound)

	err = svc.MarkSent(ctx, "missing", queueNow)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestNotificationServicePruneExpiredClaims(t *testing.T) {
	svc, db := newQueue(t)
	ctx := context.Background()

	short := admissionFor("user-1", "a", queueNow)
	short.DedupWindow = time.Hour
	_, err := svc.Enqueue(ctx, short)
	require.NoError(t, err)
	_, err = svc.Enqueue(ctx, admissionFor("user-1", "b", queueNow.Add(3*time.Hour)))
	require.NoError(t, err)

	removed, err := svc.PruneExpiredClaims(ctx, queueNow.Add(2*time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	var remaining []models.NotificationDedupClaim
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "b", remaining[0].DedupKey)
}
