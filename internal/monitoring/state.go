package monitoring

import (
	"sync"
	"sync/atomic"
	"time"
)

type statStore struct {
	evaluationsOK      atomic.Uint64
	evaluationsFailed  atomic.Uint64
	evaluationNanos    atomic.Uint64
	lastEvaluationAt   atomic.Int64
	evaluatorFailures  atomic.Uint64
	candidatesQueued   atomic.Uint64
	candidatesRejected atomic.Uint64
	candidatesSkipped  atomic.Uint64

	batchRuns      atomic.Uint64
	batchFailures  atomic.Uint64
	lastBatchUsers atomic.Int64
	lastBatchNanos atomic.Int64
	lastBatchAt    atomic.Int64

	feedConnections atomic.Int64
	feedBroadcasts  atomic.Uint64
	feedFailures    atomic.Uint64
	feedLastFailure atomic.Value // *FailureRecord

	maintenance sync.Map // string -> *maintenanceStats
}

func newStatStore() *statStore {
	store := &statStore{}
	store.feedLastFailure.Store((*FailureRecord)(nil))
	return store
}

func (s *statStore) cloneMaintenance() []MaintenanceJobSummary {
	summaries := []MaintenanceJobSummary{}
	s.maintenance.Range(func(key, value any) bool {
		job := key.(string)
		stats := value.(*maintenanceStats)
		summaries = append(summaries, stats.snapshot(job))
		return true
	})
	return summaries
}

func (s *statStore) summary() Summary {
	lastFailure, _ := s.feedLastFailure.Load().(*FailureRecord)
	ok := s.evaluationsOK.Load()
	failed := s.evaluationsFailed.Load()

	var avgSeconds float64
	if total := ok + failed; total > 0 {
		avgSeconds = float64(s.evaluationNanos.Load()) / float64(total) / float64(time.Second)
	}

	return Summary{
		GeneratedAt: time.Now(),
		Evaluations: EvaluationSummary{
			Succeeded:              ok,
			Failed:                 failed,
			AverageDurationSeconds: avgSeconds,
			LastEvaluatedAt:        unixOrZero(s.lastEvaluationAt.Load()),
			EvaluatorFailures:      s.evaluatorFailures.Load(),
		},
		Candidates: CandidateSummary{
			Queued:   s.candidatesQueued.Load(),
			Rejected: s.candidatesRejected.Load(),
			Skipped:  s.candidatesSkipped.Load(),
		},
		Batches: BatchSummary{
			Runs:         s.batchRuns.Load(),
			Failures:     s.batchFailures.Load(),
			LastUsers:    s.lastBatchUsers.Load(),
			LastDuration: time.Duration(s.lastBatchNanos.Load()),
			LastRunAt:    unixOrZero(s.lastBatchAt.Load()),
		},
		Feed: FeedSummary{
			ActiveConnections: s.feedConnections.Load(),
			Broadcasts:        s.feedBroadcasts.Load(),
			Failures:          s.feedFailures.Load(),
			LastFailure:       lastFailure,
		},
		Maintenance: MaintenanceSummary{
			Jobs: s.cloneMaintenance(),
		},
	}
}

func unixOrZero(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos)
}

func (s *statStore) recordEvaluation(result string, d time.Duration) {
	if d < 0 {
		d = 0
	}
	if result == "ok" {
		s.evaluationsOK.Add(1)
	} else {
		s.evaluationsFailed.Add(1)
	}
	s.evaluationNanos.Add(uint64(d))
	s.lastEvaluationAt.Store(time.Now().UnixNano())
}

func (s *statStore) recordCandidate(outcome string) {
	switch outcome {
	case "queued":
		s.candidatesQueued.Add(1)
	case "disabled":
		s.candidatesSkipped.Add(1)
	default:
		s.candidatesRejected.Add(1)
	}
}

func (s *statStore) recordBatch(result string, users int, d time.Duration) {
	s.batchRuns.Add(1)
	if result != "success" {
		s.batchFailures.Add(1)
	}
	s.lastBatchUsers.Store(int64(users))
	s.lastBatchNanos.Store(int64(d))
	s.lastBatchAt.Store(time.Now().UnixNano())
}

func (s *statStore) recordFeedConnection(delta int64) {
	if s.feedConnections.Add(delta) < 0 {
		s.feedConnections.Store(0)
	}
}

func (s *statStore) recordFeedFailure(record FailureRecord) {
	s.feedFailures.Add(1)
	cloned := record
	s.feedLastFailure.Store(&cloned)
}

func (s *statStore) maintenanceEntry(job string) *maintenanceStats {
	value, ok := s.maintenance.Load(job)
	if ok {
		return value.(*maintenanceStats)
	}
	stats := &maintenanceStats{}
	actual, _ := s.maintenance.LoadOrStore(job, stats)
	return actual.(*maintenanceStats)
}

type maintenanceStats struct {
	lastStatus           atomic.Value // string
	lastError            atomic.Value // string
	lastRun              atomic.Int64 // unix nano
	lastDuration         atomic.Int64 // nanoseconds
	consecutiveFailures  atomic.Uint64
	totalRuns            atomic.Uint64
	lastSuccessfulRun    atomic.Int64
	consecutiveSuccesses atomic.Uint64
}

func (m *maintenanceStats) snapshot(job string) MaintenanceJobSummary {
	status, _ := m.lastStatus.Load().(string)
	errMsg, _ := m.lastError.Load().(string)

	return MaintenanceJobSummary{
		Job:                 job,
		LastStatus:          status,
		LastRunAt:           unixOrZero(m.lastRun.Load()),
		LastDuration:        time.Duration(m.lastDuration.Load()),
		LastError:           errMsg,
		ConsecutiveFailures: m.consecutiveFailures.Load(),
		ConsecutiveSuccess:  m.consecutiveSuccesses.Load(),
		LastSuccessAt:       unixOrZero(m.lastSuccessfulRun.Load()),
		TotalRuns:           m.totalRuns.Load(),
	}
}

func (m *maintenanceStats) record(result, message string, duration time.Duration) {
	if duration < 0 {
		duration = 0
	}
	now := time.Now()
	m.lastStatus.Store(result)
	m.lastError.Store(message)
	m.lastRun.Store(now.UnixNano())
	m.lastDuration.Store(int64(duration))
	m.totalRuns.Add(1)

	switch result {
	case "success":
		m.consecutiveFailures.Store(0)
		m.consecutiveSuccesses.Add(1)
		m.lastSuccessfulRun.Store(now.UnixNano())
	default:
		m.consecutiveFailures.Add(1)
		m.consecutiveSuccesses.Store(0)
	}
}
