package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/charlesng35/studynotify/internal/app"
	"github.com/charlesng35/studynotify/internal/monitoring"
)

func TestMonitoringHandlerSummary(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	monitoring.SetModule(mod)

	monitoring.RecordEvaluation("success", 40*time.Millisecond)
	monitoring.RecordMaintenanceRun("trigger_log_retention", "success", "", 200*time.Millisecond)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Engine: app.EngineConfig{Schedule: "@every 15m", Concurrency: 4},
	}
	handler := NewMonitoringHandler(mod, cfg)
	require.NotNil(t, handler)

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request, _ = http.NewRequest(http.MethodGet, "/api/monitoring/summary", nil)

	handler.Summary(ctx)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "\"success\":true")
	require.Contains(t, recorder.Body.String(), "trigger_log_retention")
	require.Contains(t, recorder.Body.String(), "\"schedule\":\"@every 15m\"")
	require.Contains(t, recorder.Body.String(), "\"last_cycle\":\"never\"")
	require.Contains(t, recorder.Body.String(), "next_cycle_at")
}

func TestMonitoringHandlerReportsLastCycle(t *testing.T) {
	gin.SetMode(gin.TestMode)

	mod, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	monitoring.SetModule(mod)
	monitoring.RecordBatchRun("success", 12, 3*time.Second)

	cfg := &app.Config{
		Monitoring: app.MonitoringConfig{Health: app.HealthConfig{Enabled: true}},
		Engine:     app.EngineConfig{Schedule: "not a schedule"},
	}
	handler := NewMonitoringHandler(mod, cfg)
	handler.now = func() time.Time { return time.Now().Add(2 * time.Hour) }

	recorder := httptest.NewRecorder()
	ctx, _ := gin.CreateTestContext(recorder)
	ctx.Request, _ = http.NewRequest(http.MethodGet, "/api/monitoring/summary", nil)

	handler.Summary(ctx)
	require.Equal(t, http.StatusOK, recorder.Code)
	require.Contains(t, recorder.Body.String(), "\"last_cycle\":\"2 hours ago\"")
	require.NotContains(t, recorder.Body.String(), "next_cycle_at")
}

func TestMonitoringHandlerDisabled(t *testing.T) {
	mod, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)

	require.Nil(t, NewMonitoringHandler(nil, &app.Config{}))
	require.Nil(t, NewMonitoringHandler(mod, &app.Config{}))
}
