package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type engineCollectors struct {
	evaluations         *prometheus.CounterVec
	evaluationDuration  prometheus.Histogram
	candidates          *prometheus.CounterVec
	evaluatorFailures   *prometheus.CounterVec
	batchRuns           *prometheus.CounterVec
	batchUsers          prometheus.Histogram
	apiLatency          *prometheus.HistogramVec
	feedConnections     prometheus.Gauge
	feedBroadcasts      prometheus.Counter
	feedFailures        *prometheus.CounterVec
	maintenanceRuns     *prometheus.CounterVec
	maintenanceDuration *prometheus.HistogramVec
	maintenanceLastRun  *prometheus.GaugeVec
}

func newCollectors(namespace string) *engineCollectors {
	buckets := prometheus.DefBuckets
	evaluationBuckets := []float64{
		0.01, 0.05, 0.1, 0.25, 0.5, // sub-second
		1, 2.5, 5, 10, 30,
	}
	userBuckets := []float64{1, 10, 50, 100, 500, 1000, 5000, 10000}

	return &engineCollectors{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluations_total",
				Help:      "Total number of per-user evaluation cycles by result",
			},
			[]string{"result"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "evaluation_duration_seconds",
				Help:      "Duration of a single user evaluation cycle",
				Buckets:   evaluationBuckets,
			},
		),
		candidates: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "candidates_total",
				Help:      "Candidate notifications by category and admission outcome",
			},
			[]string{"category", "outcome"},
		),
		evaluatorFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "evaluator_failures_total",
				Help:      "Evaluator failures by category and failure type",
			},
			[]string{"category", "type"},
		),
		batchRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "batch_runs_total",
				Help:      "Scheduled batch cycles by result",
			},
			[]string{"result"},
		),
		batchUsers: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "batch_users",
				Help:      "Number of users evaluated per batch cycle",
				Buckets:   userBuckets,
			},
		),
		apiLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_latency_seconds",
				Help:      "API endpoint latency",
				Buckets:   buckets,
			},
			[]string{"method", "path", "status"},
		),
		feedConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_connections",
				Help:      "Number of open queued-notification feed connections",
			},
		),
		feedBroadcasts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_broadcasts_total",
				Help:      "Queued notifications published to feed subscribers",
			},
		),
		feedFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "feed_failures_total",
				Help:      "Feed delivery failures by type",
			},
			[]string{"type"},
		),
		maintenanceRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "maintenance_runs_total",
				Help:      "Maintenance job executions by result",
			},
			[]string{"job", "result"},
		),
		maintenanceDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "maintenance_duration_seconds",
				Help:      "Maintenance job execution time",
				Buckets:   buckets,
			},
			[]string{"job"},
		),
		maintenanceLastRun: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "maintenance_last_success_timestamp",
				Help:      "Unix timestamp of the last successful maintenance run",
			},
			[]string{"job"},
		),
	}
}

func (c *engineCollectors) all() []prometheus.Collector {
	return []prometheus.Collector{
		c.evaluations,
		c.evaluationDuration,
		c.candidates,
		c.evaluatorFailures,
		c.batchRuns,
		c.batchUsers,
		c.apiLatency,
		c.feedConnections,
		c.feedBroadcasts,
		c.feedFailures,
		c.maintenanceRuns,
		c.maintenanceDuration,
		c.maintenanceLastRun,
	}
}

func observeDuration(observer prometheus.Observer, d time.Duration) {
	if observer == nil {
		return
	}
	if d < 0 {
		d = 0
	}
	observer.Observe(d.Seconds())
}
