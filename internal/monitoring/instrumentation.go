package monitoring

import (
	"strings"
	"time"
)

// RecordEvaluation records the result and duration of one user evaluation.
func RecordEvaluation(result string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.evaluations.WithLabelValues(label).Inc()
	observeDuration(module.metrics.evaluationDuration, duration)
	module.stats.recordEvaluation(label, duration)
}

// RecordCandidate counts a candidate notification by category and admission outcome.
func RecordCandidate(category, outcome string) {
	module := ensureModule()
	if module == nil {
		return
	}
	category = normalizeLabel(category)
	outcome = normalizeLabel(outcome)
	module.metrics.candidates.WithLabelValues(category, outcome).Inc()
	module.stats.recordCandidate(outcome)
}

// RecordEvaluatorFailure counts a failed or timed out evaluator.
func RecordEvaluatorFailure(category, failureType string) {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.evaluatorFailures.WithLabelValues(normalizeLabel(category), normalizeLabel(failureType)).Inc()
	module.stats.evaluatorFailures.Add(1)
}

// RecordBatchRun records a scheduled batch cycle over users.
func RecordBatchRun(result string, users int, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	label := normalizeLabel(result)
	module.metrics.batchRuns.WithLabelValues(label).Inc()
	if users < 0 {
		users = 0
	}
	module.metrics.batchUsers.Observe(float64(users))
	module.stats.recordBatch(label, users, duration)
}

// ObserveAPILatency captures the HTTP request latency for the supplied route.
func ObserveAPILatency(method, path, status string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	if duration < 0 {
		duration = 0
	}
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = "UNKNOWN"
	}
	path = sanitizePath(path)
	if path == "" {
		path = "unknown"
	}
	status = strings.TrimSpace(status)
	if status == "" {
		status = "unknown"
	}
	module.metrics.apiLatency.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordFeedConnection adjusts the feed connection gauge.
func RecordFeedConnection(delta int64) {
	module := ensureModule()
	if module == nil {
		return
	}
	if delta == 0 {
		return
	}
	module.metrics.feedConnections.Add(float64(delta))
	module.stats.recordFeedConnection(delta)
	if module.stats.feedConnections.Load() < 0 {
		module.stats.feedConnections.Store(0)
		module.metrics.feedConnections.Set(0)
	}
}

// RecordFeedBroadcast counts a queued notification delivered to feed subscribers.
func RecordFeedBroadcast() {
	module := ensureModule()
	if module == nil {
		return
	}
	module.metrics.feedBroadcasts.Inc()
	module.stats.feedBroadcasts.Add(1)
}

// RecordFeedFailure snapshots a feed delivery failure.
func RecordFeedFailure(failureType, message string) {
	module := ensureModule()
	if module == nil {
		return
	}
	failureType = normalizeLabel(failureType)
	module.metrics.feedFailures.WithLabelValues(failureType).Inc()
	module.stats.recordFeedFailure(FailureRecord{
		Type:     failureType,
		Message:  strings.TrimSpace(message),
		Occurred: time.Now(),
	})
}

// RecordMaintenanceRun records the completion of a maintenance job.
func RecordMaintenanceRun(job, result, message string, duration time.Duration) {
	module := ensureModule()
	if module == nil {
		return
	}
	jobID := normalizeLabel(job)
	result = normalizeLabel(result)
	module.metrics.maintenanceRuns.WithLabelValues(jobID, result).Inc()
	observeDuration(module.metrics.maintenanceDuration.WithLabelValues(jobID), duration)
	if result == "success" {
		module.metrics.maintenanceLastRun.WithLabelValues(jobID).Set(float64(time.Now().Unix()))
	}
	stats := module.stats.maintenanceEntry(jobID)
	stats.record(result, strings.TrimSpace(message), duration)
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))
	if value == "" {
		return "unknown"
	}
	return value
}

func sanitizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if path == "/" {
		return "root"
	}
	path = strings.Trim(path, "/")
	return strings.ReplaceAll(path, " ", "_")
}
