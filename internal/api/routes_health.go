package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/studynotify/internal/app"
	"github.com/charlesng35/studynotify/internal/monitoring"
)

type probeFunc func(ctx context.Context) monitoring.HealthReport

// registerHealthRoutes serves the probes without authentication. /health is the terse
// readiness answer for load balancers; the live and ready routes include every check.
func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if cfg == nil {
		return
	}

	paths := []string{"/health", "/health/live", "/health/ready"}
	if !cfg.Monitoring.Health.Enabled || mon == nil || mon.Health() == nil {
		for _, path := range paths {
			r.GET(path, func(c *gin.Context) {
				c.JSON(http.StatusNotFound, gin.H{"success": false, "status": "disabled"})
			})
		}
		return
	}

	manager := mon.Health()
	r.GET("/health", healthHandler(manager.EvaluateReadiness, false))
	r.GET("/health/live", healthHandler(manager.EvaluateLiveness, true))
	r.GET("/health/ready", healthHandler(manager.EvaluateReadiness, true))
}

func healthHandler(probe probeFunc, withChecks bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := probe(c.Request.Context())

		status := http.StatusOK
		if !report.Success {
			status = http.StatusServiceUnavailable
		}
		body := gin.H{
			"success":    report.Success,
			"status":     report.Status,
			"checked_at": report.CheckedAt,
		}
		if withChecks {
			body["checks"] = report.Checks
		}
		c.JSON(status, body)
	}
}
