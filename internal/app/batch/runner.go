package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/charlesng35/studynotify/internal/cache"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/internal/trigger"
	"github.com/charlesng35/studynotify/pkg/logger"
)

const (
	defaultConcurrency  = 8
	defaultCycleTimeout = 10 * time.Minute
	defaultUserTimeout  = 30 * time.Second
	defaultLeaseTTL     = 15 * time.Minute
)

// ErrEvaluationInProgress is returned when another cycle holds the user's lease.
var ErrEvaluationInProgress = errors.New("batch: evaluation already in progress")

// Evaluator runs one evaluation for a single user.
type Evaluator interface {
	EvaluateUser(ctx context.Context, userID string) (trigger.Report, error)
}

// Config tunes the batch runner.
type Config struct {
	// Schedule is a cron spec. Start is a no-op when it is empty.
	Schedule      string
	Concurrency   int
	RatePerSecond float64
	CycleTimeout  time.Duration
	UserTimeout   time.Duration
	LeaseTTL      time.Duration
}

// CycleResult summarises one batch cycle.
type CycleResult struct {
	Users     int           `json:"users"`
	Evaluated int           `json:"evaluated"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
	Queued    int           `json:"queued"`
	Duration  time.Duration `json:"duration"`
}

// Runner evaluates every active user on a schedule. Each user evaluation holds a lease in
// the shared cache so overlapping cycles, replicas and manual API triggers never evaluate
// the same user concurrently.
type Runner struct {
	engine    Evaluator
	directory trigger.UserDirectory
	leases    cache.Store
	cfg       Config
	limiter   *rate.Limiter
	cron      *cron.Cron
	log       *zap.Logger
}

// Option customises the Runner.
type Option func(*Runner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(r *Runner) {
		if c != nil {
			r.cron = c
		}
	}
}

// NewRunner constructs a Runner. The lease store is optional; without it users are
// only serialised by the engine's in-process locks.
func NewRunner(engine Evaluator, directory trigger.UserDirectory, leases cache.Store, cfg Config, opts ...Option) (*Runner, error) {
	if engine == nil {
		return nil, errors.New("batch: evaluator is required")
	}
	if directory == nil {
		return nil, errors.New("batch: user directory is required")
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.UserTimeout <= 0 {
		cfg.UserTimeout = defaultUserTimeout
	}
	if cfg.LeaseTTL <= 0 {
		cfg.LeaseTTL = defaultLeaseTTL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RatePerSecond > 0 {
		burst := int(cfg.RatePerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}

	r := &Runner{
		engine:    engine,
		directory: directory,
		leases:    leases,
		cfg:       cfg,
		limiter:   limiter,
		log:       logger.WithModule("batch"),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.cron == nil {
		r.cron = cron.New(
			cron.WithLogger(cron.DiscardLogger),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		)
	}
	return r, nil
}

// Start registers the cycle with the cron scheduler and launches it.
func (r *Runner) Start() error {
	spec := strings.TrimSpace(r.cfg.Schedule)
	if spec == "" {
		r.log.Info("batch schedule disabled")
		return nil
	}

	if _, err := r.cron.AddFunc(spec, func() {
		if _, err := r.RunCycle(context.Background()); err != nil {
			r.log.Warn("batch cycle finished with errors", zap.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("batch: schedule %q: %w", spec, err)
	}

	r.cron.Start()
	r.log.Info("batch schedule started", zap.String("schedule", spec), zap.Int("concurrency", r.cfg.Concurrency))
	return nil
}

// Stop halts the scheduler. The returned context is done once a running cycle completes.
func (r *Runner) Stop() context.Context {
	if r.cron == nil {
		return context.Background()
	}
	return r.cron.Stop()
}

// RunCycle evaluates every active user once, bounded by the cycle timeout. Users whose
// lease is held elsewhere are skipped. Per-user failures are collected and do not stop
// the cycle.
func (r *Runner) RunCycle(ctx context.Context) (CycleResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	started := time.Now()
	ctx, cancel := context.WithTimeout(ctx, r.cfg.CycleTimeout)
	defer cancel()

	userIDs, err := r.directory.ActiveUserIDs(ctx)
	if err != nil {
		monitoring.RecordBatchRun("error", 0, time.Since(started))
		return CycleResult{}, fmt.Errorf("batch: list users: %w", err)
	}

	result := CycleResult{Users: len(userIDs)}
	sem := semaphore.NewWeighted(int64(r.cfg.Concurrency))

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		errs    error
		stopped error
	)

	// stopped is owned by this loop; workers only touch errs under mu.
	for _, userID := range userIDs {
		if err := r.limiter.Wait(ctx); err != nil {
			stopped = fmt.Errorf("batch: cycle stopped: %w", err)
			break
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			stopped = fmt.Errorf("batch: cycle stopped: %w", err)
			break
		}

		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			defer sem.Release(1)

			report, err := r.evaluate(ctx, userID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case errors.Is(err, ErrEvaluationInProgress):
				result.Skipped++
			case err != nil:
				result.Failed++
				errs = multierr.Append(errs, fmt.Errorf("user %s: %w", userID, err))
			default:
				result.Evaluated++
				result.Queued += len(report.Queued)
			}
		}(userID)
	}
	wg.Wait()
	errs = multierr.Append(errs, stopped)

	result.Duration = time.Since(started)
	outcome := "success"
	if errs != nil {
		outcome = "error"
	}
	monitoring.RecordBatchRun(outcome, result.Users, result.Duration)

	r.log.Info("batch cycle complete",
		zap.Int("users", result.Users),
		zap.Int("evaluated", result.Evaluated),
		zap.Int("skipped", result.Skipped),
		zap.Int("failed", result.Failed),
		zap.Int("queued", result.Queued),
		zap.Duration("duration", result.Duration),
	)
	return result, errs
}

// EvaluateUser runs a single leased evaluation outside the schedule.
func (r *Runner) EvaluateUser(ctx context.Context, userID string) (trigger.Report, error) {
	return r.evaluate(ctx, strings.TrimSpace(userID))
}

func (r *Runner) evaluate(ctx context.Context, userID string) (trigger.Report, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.UserTimeout)
	defer cancel()

	if r.leases != nil {
		lease, err := cache.AcquireLease(ctx, r.leases, LeaseKey(userID), r.cfg.LeaseTTL)
		if errors.Is(err, cache.ErrLeaseHeld) {
			return trigger.Report{UserID: userID}, ErrEvaluationInProgress
		}
		if err != nil {
			return trigger.Report{UserID: userID}, fmt.Errorf("batch: acquire lease: %w", err)
		}
		defer func() {
			// The evaluation context may already be done; release on a fresh one.
			releaseCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			if err := lease.Release(releaseCtx); err != nil {
				r.log.Warn("release lease failed", zap.String("user_id", userID), zap.Error(err))
			}
		}()
	}

	return r.engine.EvaluateUser(ctx, userID)
}

// LeaseKey is the cache key guarding a user's evaluation.
func LeaseKey(userID string) string {
	return "engine:evaluate:" + userID
}
