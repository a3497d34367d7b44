package checks

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

const defaultDatabaseTimeout = 2 * time.Second

// Database pings the primary database. The queue, audit trail and leases all live there, so a
// failed ping is down; a pool with every connection busy and callers waiting is degraded.
func Database(db *gorm.DB, timeout time.Duration) monitoring.Check {
	if timeout <= 0 {
		timeout = defaultDatabaseTimeout
	}

	return monitoring.NewCheck("database", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if db == nil {
			return monitoring.ProbeResult{Status: monitoring.StatusDown, Details: "database not configured"}
		}

		sqlDB, err := db.DB()
		if err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}
		if err := sqlDB.PingContext(ctx); err != nil {
			return monitoring.ResultFromError("database", err, time.Since(start))
		}

		stats := sqlDB.Stats()
		result := monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Details:  fmt.Sprintf("%s: %d open, %d in use", db.Dialector.Name(), stats.OpenConnections, stats.InUse),
			Duration: time.Since(start),
		}
		if stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections && stats.WaitCount > 0 {
			result.Status = monitoring.StatusDegraded
			result.Details += fmt.Sprintf(", pool exhausted (%d waits)", stats.WaitCount)
		}
		return result
	}).WithTimeout(timeout)
}
