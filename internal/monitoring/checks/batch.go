package checks

import (
	"context"
	"time"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

// Batch verifies the periodic evaluation cycle has run recently. maxAge is usually a
// small multiple of the cycle interval.
func Batch(maxAge time.Duration) monitoring.Check {
	return monitoring.NewCheck("batch", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		summary := monitoring.Snapshot().Batches

		if summary.Runs == 0 {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusUp,
				Details:  "pending first cycle",
				Duration: time.Since(start),
			}
		}
		if maxAge > 0 && time.Since(summary.LastRunAt) > maxAge {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "stale cycle " + summary.LastRunAt.UTC().Format(time.RFC3339),
				Duration: time.Since(start),
			}
		}
		return monitoring.ProbeResult{
			Status:   monitoring.StatusUp,
			Duration: time.Since(start),
		}
	})
}
