package checks

import (
	"context"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/charlesng35/studynotify/internal/monitoring"
)

// FeedObserver exposes the live state of the queued-notification feed.
type FeedObserver interface {
	ActiveConnections() int64
}

// Feed reports the feed as degraded once delivery failures have been recorded.
func Feed(observer FeedObserver) monitoring.Check {
	return monitoring.NewCheck("feed", func(ctx context.Context) monitoring.ProbeResult {
		start := time.Now()
		if observer == nil {
			return monitoring.ProbeResult{
				Status:   monitoring.StatusDegraded,
				Details:  "feed disabled",
				Duration: time.Since(start),
			}
		}

		snapshot := monitoring.Snapshot().Feed
		status := monitoring.StatusUp
		var details []string

		details = append(details, english.Plural(int(observer.ActiveConnections()), "connection", ""))
		if snapshot.Failures > 0 {
			status = monitoring.StatusDegraded
			details = append(details, english.Plural(int(snapshot.Failures), "failure", ""))
		}

		return monitoring.ProbeResult{
			Status:   status,
			Details:  strings.Join(details, "; "),
			Duration: time.Since(start),
		}
	})
}
