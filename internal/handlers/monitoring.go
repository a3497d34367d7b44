package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"

	"github.com/charlesng35/studynotify/internal/app"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/pkg/response"
)

// MonitoringHandler serves the operator summary of recent engine activity.
type MonitoringHandler struct {
	module *monitoring.Module
	cfg    *app.Config
	now    func() time.Time
}

// NewMonitoringHandler returns nil when both health and Prometheus are disabled.
func NewMonitoringHandler(module *monitoring.Module, cfg *app.Config) *MonitoringHandler {
	if module == nil || cfg == nil {
		return nil
	}
	if !cfg.Monitoring.Health.Enabled && !cfg.Monitoring.Prometheus.Enabled {
		return nil
	}
	return &MonitoringHandler{module: module, cfg: cfg, now: time.Now}
}

type cycleInfo struct {
	Schedule    string     `json:"schedule"`
	Concurrency int        `json:"concurrency"`
	LastCycle   string     `json:"last_cycle"`
	NextCycleAt *time.Time `json:"next_cycle_at,omitempty"`
}

// Summary returns the activity snapshot together with scheduling hints.
func (h *MonitoringHandler) Summary(c *gin.Context) {
	snapshot := h.module.Summary()
	now := h.now()

	cycle := cycleInfo{
		Schedule:    h.cfg.Engine.Schedule,
		Concurrency: h.cfg.Engine.Concurrency,
		LastCycle:   "never",
	}
	if last := snapshot.Batches.LastRunAt; !last.IsZero() {
		cycle.LastCycle = humanize.RelTime(last, now, "ago", "from now")
	}
	if schedule, err := cron.ParseStandard(strings.TrimSpace(h.cfg.Engine.Schedule)); err == nil {
		next := schedule.Next(now).UTC()
		cycle.NextCycleAt = &next
	}

	endpoint := strings.TrimSpace(h.cfg.Monitoring.Prometheus.Endpoint)
	if endpoint == "" {
		endpoint = "/metrics"
	}

	response.Success(c, http.StatusOK, gin.H{
		"summary": snapshot,
		"engine":  cycle,
		"prometheus": gin.H{
			"enabled":  h.cfg.Monitoring.Prometheus.Enabled,
			"endpoint": endpoint,
		},
	})
}
