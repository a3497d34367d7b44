package monitoring

import "time"

// Summary surfaces aggregated engine activity for the ops API.
type Summary struct {
	GeneratedAt time.Time          `json:"generated_at"`
	Evaluations EvaluationSummary  `json:"evaluations"`
	Candidates  CandidateSummary   `json:"candidates"`
	Batches     BatchSummary       `json:"batches"`
	Feed        FeedSummary        `json:"feed"`
	Maintenance MaintenanceSummary `json:"maintenance"`
}

type EvaluationSummary struct {
	Succeeded              uint64    `json:"succeeded"`
	Failed                 uint64    `json:"failed"`
	AverageDurationSeconds float64   `json:"average_duration_seconds"`
	LastEvaluatedAt        time.Time `json:"last_evaluated_at"`
	EvaluatorFailures      uint64    `json:"evaluator_failures"`
}

type CandidateSummary struct {
	Queued   uint64 `json:"queued"`
	Rejected uint64 `json:"rejected"`
	Skipped  uint64 `json:"skipped"`
}

type BatchSummary struct {
	Runs         uint64        `json:"runs"`
	Failures     uint64        `json:"failures"`
	LastUsers    int64         `json:"last_users"`
	LastDuration time.Duration `json:"last_duration"`
	LastRunAt    time.Time     `json:"last_run_at"`
}

type FailureRecord struct {
	Type     string    `json:"type"`
	Message  string    `json:"message"`
	Occurred time.Time `json:"occurred_at"`
}

type FeedSummary struct {
	ActiveConnections int64          `json:"active_connections"`
	Broadcasts        uint64         `json:"broadcasts"`
	Failures          uint64         `json:"failures"`
	LastFailure       *FailureRecord `json:"last_failure,omitempty"`
}

type MaintenanceSummary struct {
	Jobs []MaintenanceJobSummary `json:"jobs"`
}

type MaintenanceJobSummary struct {
	Job                 string        `json:"job"`
	LastStatus          string        `json:"last_status"`
	LastRunAt           time.Time     `json:"last_run_at"`
	LastDuration        time.Duration `json:"last_duration"`
	LastError           string        `json:"last_error,omitempty"`
	ConsecutiveFailures uint64        `json:"consecutive_failures"`
	ConsecutiveSuccess  uint64        `json:"consecutive_success"`
	LastSuccessAt       time.Time     `json:"last_success_at"`
	TotalRuns           uint64        `json:"total_runs"`
}

// Snapshot returns the summary of the module installed with SetModule.
func Snapshot() Summary {
	return ensureModule().Summary()
}
