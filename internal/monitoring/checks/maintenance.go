package checks

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

// Maintenance reports retention jobs that keep failing or stopped running. maxAges bounds the
// time since each job's last run; jobs without an entry are never considered stale.
func Maintenance(maxAges map[string]time.Duration) monitoring.Check {
	return monitoring.NewCheck("maintenance", func(ctx context.Context) monitoring.ProbeResult {
		jobs := monitoring.Snapshot().Maintenance.Jobs
		if len(jobs) == 0 {
			return monitoring.ProbeResult{Status: monitoring.StatusUp, Details: "no maintenance runs yet"}
		}

		now := time.Now()
		status := monitoring.StatusUp
		var notes []string

		for _, job := range jobs {
			switch {
			case job.TotalRuns == 0:
				notes = append(notes, job.Job+": pending first run")
			case job.ConsecutiveFailures > 0:
				status = monitoring.Worse(status, monitoring.StatusDown)
				notes = append(notes, job.Job+": "+english.Plural(int(job.ConsecutiveFailures), "consecutive failure", ""))
			}

			maxAge := maxAges[job.Job]
			if maxAge > 0 && !job.LastRunAt.IsZero() && now.Sub(job.LastRunAt) > maxAge {
				status = monitoring.Worse(status, monitoring.StatusDegraded)
				notes = append(notes, job.Job+": last ran "+job.LastRunAt.UTC().Format(time.RFC3339))
			}
		}

		sort.Strings(notes)
		return monitoring.ProbeResult{Status: status, Details: strings.Join(notes, "; ")}
	})
}
