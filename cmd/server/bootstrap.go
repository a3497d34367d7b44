package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/api"
	"github.com/charlesng35/studynotify/internal/app"
	"github.com/charlesng35/studynotify/internal/app/batch"
	"github.com/charlesng35/studynotify/internal/app/maintenance"
	iauth "github.com/charlesng35/studynotify/internal/auth"
	"github.com/charlesng35/studynotify/internal/cache"
	"github.com/charlesng35/studynotify/internal/database"
	"github.com/charlesng35/studynotify/internal/middleware"
	"github.com/charlesng35/studynotify/internal/monitoring"
	"github.com/charlesng35/studynotify/internal/monitoring/checks"
	"github.com/charlesng35/studynotify/internal/realtime"
	"github.com/charlesng35/studynotify/internal/services"
	"github.com/charlesng35/studynotify/internal/trigger"
	"github.com/charlesng35/studynotify/pkg/logger"
)

const healthCheckTimeout = 2 * time.Second

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB         *gorm.DB
	Cache      *cache.DatabaseStore
	Monitoring *monitoring.Module
	Hub        *realtime.Hub
	Engine     *trigger.Engine
	Runner     *batch.Runner
	Cleaner    *maintenance.Cleaner
	RateStore  middleware.RateStore
	Router     *gin.Engine
}

// bootstrapRuntime initialises the database, engine, background jobs and the HTTP router.
// Background jobs are not started; call Start once the stack is assembled.
func bootstrapRuntime(cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mod
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Monitoring, err = monitoring.NewModule(monitoring.Options{})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitoring)

	stack.Cache = cache.NewDatabaseStore(stack.DB)
	stack.RateStore = middleware.NewCacheRateStore(stack.Cache)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	contexts, err := services.NewContextService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise context service: %w", err)
	}
	prefs, err := services.NewPreferencesService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise preferences service: %w", err)
	}
	templates, err := services.NewTemplateService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise template service: %w", err)
	}
	queue, err := services.NewNotificationService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise notification service: %w", err)
	}
	triggerLogs, err := services.NewTriggerLogService(stack.DB)
	if err != nil {
		return nil, fmt.Errorf("initialise trigger log service: %w", err)
	}
	directory, err := services.NewUserDirectory(stack.DB, services.WithLookahead(cfg.Engine.Lookahead))
	if err != nil {
		return nil, fmt.Errorf("initialise user directory: %w", err)
	}

	deps := trigger.Dependencies{
		Contexts:    contexts,
		Preferences: prefs,
		Templates:   templates,
		Queue:       queue,
		Audit:       triggerLogs,
	}
	if cfg.Features.Realtime.Enabled {
		stack.Hub = realtime.NewHub()
		deps.Publisher = stack.Hub
	}

	stack.Engine, err = trigger.NewEngine(deps, cfg.Engine.TriggerConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise trigger engine: %w", err)
	}

	stack.Runner, err = batch.NewRunner(stack.Engine, directory, stack.Cache, batch.Config{
		Schedule:      cfg.Engine.Schedule,
		Concurrency:   cfg.Engine.Concurrency,
		RatePerSecond: cfg.Engine.RatePerSecond,
		CycleTimeout:  cfg.Engine.CycleTimeout,
		UserTimeout:   cfg.Engine.UserTimeout,
		LeaseTTL:      cfg.Engine.LeaseTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("initialise batch runner: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner = maintenance.NewCleaner(triggerLogs, queue, stack.Cache,
			maintenance.WithTriggerLogRetentionDays(cfg.Maintenance.TriggerLogRetentionDays),
			maintenance.WithTriggerLogSchedule(cfg.Maintenance.TriggerLogSchedule),
			maintenance.WithClaimSchedule(cfg.Maintenance.ClaimSchedule),
			maintenance.WithCacheSchedule(cfg.Maintenance.CacheSchedule),
		)
	}

	registerHealthChecks(stack, cfg)

	stack.Router, err = api.NewRouter(api.Dependencies{
		Config:        cfg,
		JWT:           jwtSvc,
		Monitoring:    stack.Monitoring,
		Evaluator:     stack.Runner,
		Achievements:  stack.Engine,
		Notifications: queue,
		TriggerLogs:   triggerLogs,
		Preferences:   prefs,
		Templates:     templates,
		Hub:           stack.Hub,
		RateStore:     stack.RateStore,
	})
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

func registerHealthChecks(stack *runtimeStack, cfg *app.Config) {
	health := stack.Monitoring.Health()
	health.RegisterReadiness(checks.Database(stack.DB, healthCheckTimeout))
	health.RegisterLiveness(checks.Batch(batchMaxAge(cfg.Engine.Schedule)))
	if stack.Cleaner != nil {
		maxAges := make(map[string]time.Duration)
		for job, spec := range stack.Cleaner.Schedules() {
			maxAges[job] = batchMaxAge(spec)
		}
		health.RegisterLiveness(checks.Maintenance(maxAges))
	}
	if stack.Hub != nil {
		health.RegisterLiveness(checks.Feed(stack.Hub))
	}
}

// batchMaxAge allows three missed intervals before a scheduled job counts as stale. Unparseable
// or empty schedules disable the staleness check.
func batchMaxAge(spec string) time.Duration {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return 0
	}
	first := schedule.Next(time.Now())
	interval := schedule.Next(first).Sub(first)
	if interval <= 0 {
		return 0
	}
	return 3 * interval
}

// Start launches the batch runner and maintenance jobs.
func (s *runtimeStack) Start() error {
	if err := s.Runner.Start(); err != nil {
		return fmt.Errorf("start batch runner: %w", err)
	}
	if s.Cleaner != nil {
		if err := s.Cleaner.Start(); err != nil {
			return fmt.Errorf("start maintenance jobs: %w", err)
		}
	}
	return nil
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Runner != nil {
		waitStopped(ctx, s.Runner.Stop(), "batch runner", log)
	}

	if s.Cleaner != nil {
		waitStopped(ctx, s.Cleaner.Stop(), "maintenance", log)
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	if s.DB != nil {
		closeDatabase(s.DB, log)
	}
}

func waitStopped(ctx, stopped context.Context, component string, log *zap.Logger) {
	if stopped == nil || stopped.Done() == nil {
		return
	}
	select {
	case <-stopped.Done():
	case <-ctx.Done():
		log.Warn("component did not stop before shutdown deadline", zap.String("component", component))
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := convertDatabaseConfig(cfg)
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db); err != nil {
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}

func convertDatabaseConfig(cfg *app.Config) database.Config {
	dbCfg := database.Config{
		Driver: strings.ToLower(strings.TrimSpace(cfg.Database.Driver)),
		Path:   strings.TrimSpace(cfg.Database.Path),
		DSN:    strings.TrimSpace(cfg.Database.DSN),
	}

	switch dbCfg.Driver {
	case "", "sqlite":
		dbCfg.Driver = "sqlite"
	case "postgres", "postgresql":
		dbCfg.Driver = "postgres"
		dbCfg.Host = strings.TrimSpace(cfg.Database.Postgres.Host)
		dbCfg.Port = cfg.Database.Postgres.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.Postgres.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.Postgres.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.Postgres.Password)
	case "mysql":
		dbCfg.Host = strings.TrimSpace(cfg.Database.MySQL.Host)
		dbCfg.Port = cfg.Database.MySQL.Port
		dbCfg.Name = strings.TrimSpace(cfg.Database.MySQL.Database)
		dbCfg.User = strings.TrimSpace(cfg.Database.MySQL.Username)
		dbCfg.Password = strings.TrimSpace(cfg.Database.MySQL.Password)
	default:
		// Leave driver as-is to surface unsupported driver error during open.
	}

	return dbCfg
}

func closeDatabase(db *gorm.DB, log *zap.Logger) {
	if db == nil {
		return
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Warn("failed to obtain underlying sql DB for closing", zap.Error(err))
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Warn("failed to close database", zap.Error(err))
	}
}
