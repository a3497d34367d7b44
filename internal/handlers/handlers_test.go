package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studynotify/internal/app/batch"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/cache"
	"github.com/charlesng35/studynotify/internal/handlers/testutil"
	"github.com/charlesng35/studynotify/internal/models"
	"github.com/charlesng35/studynotify/internal/realtime"
	"github.com/charlesng35/studynotify/internal/trigger"
	appErrors "github.com/charlesng35/studynotify/pkg/errors"
)

type queuedPayload struct {
	ID          string `json:"id"`
	UserID      string `json:"user_id"`
	TemplateKey string `json:"template_key"`
	Title       string `json:"title"`
	Status      string `json:"status"`
}

type reportPayload struct {
	UserID string          `json:"user_id"`
	Queued []queuedPayload `json:"queued"`
}

func recordStreak(t *testing.T, env *testutil.Env, userID string) queuedPayload {
	t.Helper()

	token := env.IssueToken(iauth.ScopeAchievements)
	resp := env.Request(http.MethodPost, "/api/users/"+userID+"/achievements", map[string]any{
		"kind":        "streak",
		"streak_days": 7,
	}, token)
	require.Equal(t, http.StatusCreated, resp.Code, resp.Body.String())

	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Len(t, report.Queued, 1)
	return report.Queued[0]
}

func TestEvaluateQueuesAndAudits(t *testing.T) {
	env := testutil.NewEnv(t)
	require.NoError(t, env.DB.Create(&models.Assignment{
		UserID: "user-1",
		Title:  "Essay",
		DueAt:  testutil.Now.Add(24 * time.Hour),
	}).Error)

	token := env.IssueToken(iauth.ScopeEvaluate, iauth.ScopeNotifications)

	resp := env.Request(http.MethodPost, "/api/users/user-1/evaluate", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Equal(t, "user-1", report.UserID)

	var deadline *queuedPayload
	for i := range report.Queued {
		if report.Queued[i].TemplateKey == "deadline_due_tomorrow" {
			deadline = &report.Queued[i]
		}
	}
	require.NotNil(t, deadline, resp.Body.String())
	require.Contains(t, deadline.Title, "Essay")

	resp = env.Request(http.MethodGet, "/api/users/user-1/notifications?status=pending", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	list := testutil.DecodeResponse(t, resp)
	require.NotNil(t, list.Meta)
	require.Equal(t, len(report.Queued), list.Meta.Total)

	var queued []queuedPayload
	testutil.DecodeInto(t, list.Data, &queued)
	require.Len(t, queued, len(report.Queued))

	resp = env.Request(http.MethodGet, "/api/users/user-1/trigger-logs?created=true", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var logs []models.TriggerLog
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &logs)
	require.Len(t, logs, len(report.Queued))
	for _, entry := range logs {
		require.True(t, entry.NotificationCreated)
	}
}

func TestEvaluateConflictsWhileLeaseHeld(t *testing.T) {
	env := testutil.NewEnv(t)

	lease, err := cache.AcquireLease(context.Background(), env.Cache, batch.LeaseKey("user-1"), time.Minute)
	require.NoError(t, err)

	token := env.IssueToken(iauth.ScopeEvaluate)
	resp := env.Request(http.MethodPost, "/api/users/user-1/evaluate", nil, token)
	require.Equal(t, http.StatusConflict, resp.Code, resp.Body.String())
	require.Equal(t, appErrors.ErrConflict.Code, testutil.DecodeResponse(t, resp).Error.Code)

	require.NoError(t, lease.Release(context.Background()))
	resp = env.Request(http.MethodPost, "/api/users/user-1/evaluate", nil, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestRoutesEnforceScopes(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPost, "/api/users/user-1/evaluate", nil, "")
	require.Equal(t, http.StatusUnauthorized, resp.Code)

	feedOnly := env.IssueToken(iauth.ScopeFeed)
	resp = env.Request(http.MethodPost, "/api/users/user-1/evaluate", nil, feedOnly)
	require.Equal(t, http.StatusForbidden, resp.Code)

	resp = env.Request(http.MethodPut, "/api/users/user-1/preferences", map[string]any{"timezone": "UTC"}, env.IssueToken(iauth.ScopeNotifications))
	require.Equal(t, http.StatusForbidden, resp.Code)

	all := env.IssueToken(iauth.ScopeAll)
	resp = env.Request(http.MethodGet, "/api/templates", nil, all)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
}

func TestAchievementEndpoint(t *testing.T) {
	env := testutil.NewEnv(t)

	queued := recordStreak(t, env, "user-2")
	require.Equal(t, "achievement_streak", queued.TemplateKey)
	require.Equal(t, "pending", queued.Status)

	token := env.IssueToken(iauth.ScopeAchievements)
	resp := env.Request(http.MethodPost, "/api/users/user-2/achievements", map[string]any{"kind": "marathon"}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, "/api/users/user-2/achievements", map[string]any{"kind": "grade_improvement", "grade_delta": 4.5}, token)
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())

	// Same streak inside its dedup window.
	resp = env.Request(http.MethodPost, "/api/users/user-2/achievements", map[string]any{"kind": "streak", "streak_days": 7}, token)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var report reportPayload
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &report)
	require.Empty(t, report.Queued)
}

func TestDeliveryTransitions(t *testing.T) {
	env := testutil.NewEnv(t)
	queued := recordStreak(t, env, "user-3")

	delivery := env.IssueToken(iauth.ScopeDelivery)
	resp := env.Request(http.MethodPost, "/api/notifications/"+queued.ID+"/sent", nil, delivery)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	var row models.Notification
	require.NoError(t, env.DB.Where("id = ?", queued.ID).Take(&row).Error)
	require.Equal(t, models.NotificationSent, row.Status)
	require.NotNil(t, row.SentAt)

	resp = env.Request(http.MethodPost, "/api/notifications/"+queued.ID+"/sent", nil, delivery)
	require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPost, "/api/notifications/"+queued.ID+"/failed", nil, delivery)
	require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())

	second := recordStreak(t, env, "user-4")
	sentAt := testutil.Now.Add(5 * time.Minute)
	resp = env.Request(http.MethodPost, "/api/notifications/"+second.ID+"/failed", nil, delivery)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	resp = env.Request(http.MethodPost, "/api/notifications/"+second.ID+"/sent", map[string]any{"sent_at": sentAt}, delivery)
	require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())
}

func TestPreferencesEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)
	read := env.IssueToken(iauth.ScopeNotifications)
	write := env.IssueToken(iauth.ScopePreferences)

	resp := env.Request(http.MethodGet, "/api/users/user-5/preferences", nil, read)
	require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPut, "/api/users/user-5/preferences", map[string]any{
		"quiet_hours_start": "25:00",
		"timezone":          "Mars/Olympus",
	}, write)
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
	message := testutil.DecodeResponse(t, resp).Error.Message
	require.Contains(t, message, "quiet hours start must be a 24h HH:MM time")
	require.Contains(t, message, "timezone must be an IANA time zone")

	resp = env.Request(http.MethodPut, "/api/users/user-5/preferences", map[string]any{
		"quiet_hours_start":         "22:00",
		"quiet_hours_end":           "07:00",
		"timezone":                  "Europe/Berlin",
		"max_notifications_per_day": 4,
		"mood_enabled":              false,
	}, write)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/users/user-5/preferences", nil, read)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var prefs models.NotificationPreference
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &prefs)
	require.Equal(t, "22:00", prefs.QuietHoursStart)
	require.Equal(t, "Europe/Berlin", prefs.Timezone)
	require.Equal(t, 4, prefs.MaxNotificationsPerDay)
	require.False(t, prefs.MoodEnabled)
	require.True(t, prefs.DeadlineEnabled)
}

func TestTemplateEndpoints(t *testing.T) {
	env := testutil.NewEnv(t)
	read := env.IssueToken(iauth.ScopeNotifications)
	write := env.IssueToken(iauth.ScopeTemplates)

	resp := env.Request(http.MethodGet, "/api/templates", nil, read)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	var templates []struct {
		Key    string `json:"key"`
		Active bool   `json:"is_active"`
	}
	testutil.DecodeInto(t, testutil.DecodeResponse(t, resp).Data, &templates)
	require.NotEmpty(t, templates)

	resp = env.Request(http.MethodPatch, "/api/templates/achievement_streak", map[string]any{"is_active": false}, write)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	tmpl, err := env.Templates.Get(context.Background(), "achievement_streak")
	require.NoError(t, err)
	require.False(t, tmpl.Active)

	resp = env.Request(http.MethodPatch, "/api/templates/unknown_key", map[string]any{"is_active": true}, write)
	require.Equal(t, http.StatusNotFound, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodPatch, "/api/templates/achievement_streak", map[string]any{}, write)
	require.Equal(t, http.StatusBadRequest, resp.Code, resp.Body.String())
}

func TestHealthMetricsAndFallback(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodGet, "/health/ready", nil, "")
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, resp.Code)

	resp = env.Request(http.MethodGet, "/api/monitoring/summary", nil, env.IssueToken(iauth.ScopeNotifications))
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/nope", nil, "")
	require.Equal(t, http.StatusNotFound, resp.Code)
}

func TestLogLevelRouteRequiresWildcardScope(t *testing.T) {
	env := testutil.NewEnv(t)

	resp := env.Request(http.MethodPut, "/api/monitoring/log-level", map[string]any{"level": "info"}, env.IssueToken(iauth.ScopeNotifications))
	require.Equal(t, http.StatusForbidden, resp.Code, resp.Body.String())

	all := env.IssueToken(iauth.ScopeAll)
	resp = env.Request(http.MethodPut, "/api/monitoring/log-level", map[string]any{"level": "info"}, all)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())

	resp = env.Request(http.MethodGet, "/api/monitoring/log-level", nil, all)
	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.JSONEq(t, `{"level":"info"}`, resp.Body.String())
}

func TestFeedStreamsQueuedNotifications(t *testing.T) {
	env := testutil.NewEnv(t)
	server := httptest.NewServer(env.Router)
	t.Cleanup(server.Close)

	token := env.IssueToken(iauth.ScopeFeed)
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/feed?user=user-6&access_token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))

	// A pong proves the connection finished subscribing.
	require.NoError(t, conn.WriteJSON(map[string]any{"action": "ping"}))
	var pong realtime.Message
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong.Event)
	require.Equal(t, int64(1), env.Hub.ActiveConnections())

	_, err = env.Engine.RecordAchievement(context.Background(), "user-6", trigger.AchievementEvent{
		Kind:       trigger.AchievementStreak,
		StreakDays: 3,
	})
	require.NoError(t, err)

	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	require.Equal(t, realtime.EventQueued, msg.Event)
	require.Equal(t, "user-6", msg.Meta["user_id"])
}
