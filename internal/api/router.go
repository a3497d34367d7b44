package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/app"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/internal/realtime"
	"github.com/charlesng35/studynotify/internal/services"
)

// Dependencies are the collaborators the router wires into handlers.
type Dependencies struct {
	Config     *app.Config
	JWT        *iauth.JWTService
	Monitoring *monitoring.Module

	Evaluator    handlers.UserEvaluator
	Achievements handlers.AchievementRecorder

	Notifications *services.NotificationService
	TriggerLogs   *services.TriggerLogService
	Preferences   *services.PreferencesService
	Templates     *services.TemplateService

	// Hub is optional; the feed route answers 404 without it.
	Hub *realtime.Hub
	// RateStore is optional; requests are limited in memory without it.
	RateStore middleware.RateStore
}

// NewRouter builds the Gin engine, wires middleware and registers the ops API.
func NewRouter(deps Dependencies) (*gin.Engine, error) {
	if deps.Config == nil {
		return nil, errors.New("config must be provided")
	}
	if deps.JWT == nil {
		return nil, errors.New("jwt service must be provided")
	}

	engineHandler, err := handlers.NewEngineHandler(deps.Evaluator, deps.Achievements)
	if err != nil {
		return nil, err
	}
	notificationHandler, err := handlers.NewNotificationHandler(deps.Notifications)
	if err != nil {
		return nil, err
	}
	triggerLogHandler, err := handlers.NewTriggerLogHandler(deps.TriggerLogs)
	if err != nil {
		return nil, err
	}
	preferencesHandler, err := handlers.NewPreferencesHandler(deps.Preferences)
	if err != nil {
		return nil, err
	}
	templateHandler, err := handlers.NewTemplateHandler(deps.Templates)
	if err != nil {
		return nil, err
	}

	cfg := deps.Config
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics(feedPath, metricsEndpoint(cfg)))
	r.Use(middleware.SecurityHeaders())

	registerHealthRoutes(r, cfg, deps.Monitoring)
	registerMetricsRoute(r, cfg, deps.Monitoring)

	requests := cfg.Server.RateLimit.Requests
	if requests <= 0 {
		requests = 120
	}
	window := cfg.Server.RateLimit.Window
	if window <= 0 {
		window = time.Minute
	}

	api := r.Group("/api")
	api.Use(middleware.ServiceAuth(deps.JWT))
	api.Use(middleware.RateLimit(deps.RateStore, requests, window))

	registerUserRoutes(api, engineHandler, notificationHandler, triggerLogHandler, preferencesHandler)
	registerNotificationRoutes(api, notificationHandler)
	registerTemplateRoutes(api, templateHandler)
	registerMonitoringRoutes(api, handlers.NewMonitoringHandler(deps.Monitoring, cfg))

	var hub *realtime.Hub
	if cfg.Features.Realtime.Enabled {
		hub = deps.Hub
	}
	registerFeedRoutes(api, handlers.NewRealtimeHandler(hub))

	// NotFound fallback
	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
