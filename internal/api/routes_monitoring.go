package api

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/app"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/handlers"
	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/pkg/logger"
)

func registerMonitoringRoutes(api *gin.RouterGroup, handler *handlers.MonitoringHandler) {
	if api == nil || handler == nil {
		return
	}

	group := api.Group("/monitoring")
	group.GET("/summary", middleware.RequireScope(iauth.ScopeNotifications), handler.Summary)

	levels := gin.WrapH(logger.LevelHandler())
	group.GET("/log-level", middleware.RequireScope(iauth.ScopeAll), levels)
	group.PUT("/log-level", middleware.RequireScope(iauth.ScopeAll), levels)
}

func registerMetricsRoute(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if mon == nil || !cfg.Monitoring.Prometheus.Enabled {
		return
	}
	r.GET(metricsEndpoint(cfg), gin.WrapH(mon.Handler()))
}

func metricsEndpoint(cfg *app.Config) string {
	if endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint); endpoint != "" {
		return endpoint
	}
	return "/metrics"
}
