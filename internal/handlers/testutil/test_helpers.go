package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/api"
	"github.com/charlesng35/studynotify/internal/app"
	"github.com/charlesng35/studynotify/internal/app/batch"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/cache"
	sharedtestutil "github.com/charlesng35/studynotify/internal/database/testutil"
	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/internal/monitoring/checks"
	"github.com/charlesng35/studynotify/internal/realtime"
	"github.com/charlesng35/studynotify/internal/services"
	"github.com/charlesng35/studynotify/internal/trigger"
	"github.com/charlesng35/studynotify/pkg/response"
)

// Now is the frozen engine clock used by handler tests, a Tuesday morning.
var Now = time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T      *testing.T
	DB     *gorm.DB
	Router *gin.Engine
	JWT    *iauth.JWTService
	Hub    *realtime.Hub
	Engine *trigger.Engine
	Runner *batch.Runner
	Cache  *cache.DatabaseStore

	Notifications *services.NotificationService
	TriggerLogs   *services.TriggerLogService
	Preferences   *services.PreferencesService
	Templates     *services.TemplateService
}

// NewEnv provisions a fresh handler test environment with migrations and seed data applied.
func NewEnv(t *testing.T) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	db := sharedtestutil.MustOpenTestDB(t, sharedtestutil.WithSeedData())

	jwtSvc, err := iauth.NewJWTService(iauth.JWTConfig{
		Secret:   "test-suite-super-secret-key-32-bytes!!",
		Issuer:   "test-suite",
		TokenTTL: time.Hour,
	})
	require.NoError(t, err)

	cfg := &app.Config{
		Server: app.ServerConfig{
			RateLimit: app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true},
		},
		Features: app.FeatureConfig{Realtime: app.RealtimeConfig{Enabled: true}},
		Engine: app.EngineConfig{
			Concurrency:     2,
			CategoryTimeout: 5 * time.Second,
			LeaseTTL:        time.Minute,
			Slots:           app.SlotConfig{Morning: 8, Afternoon: 14, Evening: 19, Weekend: 10},
			Defaults: app.PreferenceDefault{
				Timezone:        "UTC",
				MaxPerDay:       5,
				MinHoursBetween: 2,
				Channels:        []string{"in_app"},
			},
		},
	}

	mon, err := monitoring.NewModule(monitoring.Options{DisableGoCollector: true, DisableProcessCollector: true})
	require.NoError(t, err)
	mon.Health().RegisterReadiness(checks.Database(db, time.Second))

	contexts, err := services.NewContextService(db)
	require.NoError(t, err)
	prefs, err := services.NewPreferencesService(db)
	require.NoError(t, err)
	templates, err := services.NewTemplateService(db)
	require.NoError(t, err)
	queue, err := services.NewNotificationService(db)
	require.NoError(t, err)
	logs, err := services.NewTriggerLogService(db)
	require.NoError(t, err)
	directory, err := services.NewUserDirectory(db)
	require.NoError(t, err)

	hub := realtime.NewHub()
	store := cache.NewDatabaseStore(db)

	engine, err := trigger.NewEngine(trigger.Dependencies{
		Contexts:    contexts,
		Preferences: prefs,
		Templates:   templates,
		Queue:       queue,
		Audit:       logs,
		Publisher:   hub,
		Clock:       func() time.Time { return Now },
	}, cfg.Engine.TriggerConfig())
	require.NoError(t, err)

	runner, err := batch.NewRunner(engine, directory, store, batch.Config{
		Concurrency: cfg.Engine.Concurrency,
		LeaseTTL:    cfg.Engine.LeaseTTL,
	})
	require.NoError(t, err)

	router, err := api.NewRouter(api.Dependencies{
		Config:        cfg,
		JWT:           jwtSvc,
		Monitoring:    mon,
		Evaluator:     runner,
		Achievements:  engine,
		Notifications: queue,
		TriggerLogs:   logs,
		Preferences:   prefs,
		Templates:     templates,
		Hub:           hub,
		RateStore:     middleware.NewCacheRateStore(store),
	})
	require.NoError(t, err)

	return &Env{
		T:             t,
		DB:            db,
		Router:        router,
		JWT:           jwtSvc,
		Hub:           hub,
		Engine:        engine,
		Runner:        runner,
		Cache:         store,
		Notifications: queue,
		TriggerLogs:   logs,
		Preferences:   prefs,
		Templates:     templates,
	}
}

// IssueToken mints a service token for the "scheduler" subject with the given scopes.
func (e *Env) IssueToken(scopes ...string) string {
	e.T.Helper()

	token, err := e.JWT.IssueServiceToken(iauth.ServiceTokenInput{Subject: "scheduler", Scopes: scopes})
	require.NoError(e.T, err)
	return token
}

// APIResponse represents the canonical API envelope returned by handlers.
type APIResponse struct {
	Success bool                `json:"success"`
	Data    json.RawMessage     `json:"data"`
	Error   *response.ErrorInfo `json:"error"`
	Meta    *response.Meta      `json:"meta"`
}

// DecodeResponse parses the standard API response object from a recorder.
func DecodeResponse(t *testing.T, w *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp), w.Body.String())
	return resp
}

// DecodeInto unmarshals the data payload into the provided destination.
func DecodeInto[T any](t *testing.T, raw json.RawMessage, dest *T) {
	t.Helper()
	if dest == nil {
		t.Fatal("destination must not be nil")
	}
	require.NoError(t, json.Unmarshal(raw, dest))
}

// Request executes an HTTP request against the test router, applying JSON encoding and auth headers automatically.
func (e *Env) Request(method, path string, body any, token string) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(e.T, err)
		buf = bytes.NewBuffer(data)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest(method, path, buf)
	require.NoError(e.T, err)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)
	return w
}
