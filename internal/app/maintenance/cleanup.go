package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/pkg/logger"
)

const (
	defaultTriggerLogRetentionDays = 90
	defaultTriggerLogSpec          = "@daily"
	defaultClaimSpec               = "@hourly"
	defaultCacheSpec               = "@hourly"

	JobTriggerLogs = "trigger_log_retention"
	JobDedupClaims = "dedup_claim_cleanup"
	JobCache       = "cache_cleanup"
)

// TriggerLogPruner deletes audit rows created before a cutoff.
type TriggerLogPruner interface {
	Prune(ctx context.Context, before time.Time) (int64, error)
}

// ClaimPruner deletes dedup claims whose window has passed.
type ClaimPruner interface {
	PruneExpiredClaims(ctx context.Context, now time.Time) (int64, error)
}

// CachePruner deletes expired cache entries.
type CachePruner interface {
	PruneExpired(ctx context.Context) (int64, error)
}

// Cleaner coordinates background retention tasks: pruning old trigger logs, expired
// dedup claims and expired cache entries.
type Cleaner struct {
	logs      TriggerLogPruner
	claims    ClaimPruner
	cache     CachePruner
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	enabled   bool
	retention int

	triggerLogSchedule string
	claimSchedule      string
	cacheSchedule      string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithTriggerLogRetentionDays adjusts how long trigger logs are retained before cleanup.
func WithTriggerLogRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithTriggerLogSchedule overrides the cron schedule for trigger log retention.
func WithTriggerLogSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.triggerLogSchedule = spec
		}
	}
}

// WithClaimSchedule overrides the cron schedule for dedup claim cleanup.
func WithClaimSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.claimSchedule = spec
		}
	}
}

// WithCacheSchedule overrides the cron schedule for cache cleanup.
func WithCacheSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.cacheSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(logs TriggerLogPruner, claims ClaimPruner, cache CachePruner, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		logs:               logs,
		claims:             claims,
		cache:              cache,
		now:                time.Now,
		retention:          defaultTriggerLogRetentionDays,
		triggerLogSchedule: defaultTriggerLogSpec,
		claimSchedule:      defaultClaimSpec,
		cacheSchedule:      defaultCacheSpec,
		log:                logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.logs != nil || cleaner.claims != nil || cleaner.cache != nil
	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	for _, job := range c.jobs() {
		if _, err := c.cron.AddFunc(job.spec, func() {
			_ = c.runJob(context.Background(), job)
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	for _, job := range c.jobs() {
		errs = multierr.Append(errs, c.runJob(ctx, job))
	}
	return errs
}

// Schedules maps each enabled job to its cron spec.
func (c *Cleaner) Schedules() map[string]string {
	schedules := make(map[string]string)
	for _, j := range c.jobs() {
		schedules[j.name] = j.spec
	}
	return schedules
}

type job struct {
	name string
	spec string
	run  func(ctx context.Context) (int64, error)
}

func (c *Cleaner) jobs() []job {
	var jobs []job
	if c.logs != nil && c.retention > 0 {
		jobs = append(jobs, job{name: JobTriggerLogs, spec: c.triggerLogSchedule, run: func(ctx context.Context) (int64, error) {
			cutoff := c.now().AddDate(0, 0, -c.retention)
			return c.logs.Prune(ctx, cutoff)
		}})
	}
	if c.claims != nil {
		jobs = append(jobs, job{name: JobDedupClaims, spec: c.claimSchedule, run: func(ctx context.Context) (int64, error) {
			return c.claims.PruneExpiredClaims(ctx, c.now())
		}})
	}
	if c.cache != nil {
		jobs = append(jobs, job{name: JobCache, spec: c.cacheSchedule, run: func(ctx context.Context) (int64, error) {
			return c.cache.PruneExpired(ctx)
		}})
	}
	return jobs
}

func (c *Cleaner) runJob(ctx context.Context, j job) error {
	start := time.Now()
	removed, err := j.run(ctx)
	if err != nil {
		c.log.Warn("maintenance job failed", zap.String("job", j.name), zap.Error(err))
		monitoring.RecordMaintenanceRun(j.name, "error", err.Error(), time.Since(start))
		return err
	}

	if removed > 0 {
		c.log.Info("maintenance job pruned rows", zap.String("job", j.name), zap.Int64("rows", removed))
	}
	monitoring.RecordMaintenanceRun(j.name, "success", "", time.Since(start))
	return nil
}
