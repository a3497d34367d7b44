package trigger

import (
	"time"
)

// Audit reasons recorded for admission decisions.
const (
	ReasonQueued            = "queued"
	ReasonDuplicate         = "duplicate"
	ReasonDailyCap          = "rate limit: daily cap"
	ReasonTooSoon           = "rate limit: too soon"
	ReasonQuietPastExpiry   = "quiet hours: deferred past expiry"
	ReasonTemplateNotFound  = "template not found"
	ReasonEvaluatorFailed   = "evaluator failed"
	ReasonEvaluatorTimeout  = "evaluator timed out"
	reasonWriteFailedPrefix = "queue write failed: "
)

// Admission is everything the queue needs to admit one rendered candidate.
type Admission struct {
	Notification QueuedNotification
	DedupWindow  time.Duration
	Now          time.Time
	Location     *time.Location
	MaxPerDay    int
	MinSpacing   time.Duration
	Audit        AuditEntry
	Gate         Gate
}

// DayBounds returns the local calendar day containing the scheduled time.
func (a Admission) DayBounds() (start, end time.Time) {
	loc := a.Location
	if loc == nil {
		loc = time.UTC
	}
	local := a.Notification.ScheduledFor.In(loc)
	year, month, day := local.Date()
	start = time.Date(year, month, day, 0, 0, 0, 0, loc)
	end = time.Date(year, month, day+1, 0, 0, 0, 0, loc)
	return start, end
}

// SpacingBounds returns the interval around the scheduled time that other
// notifications must stay out of.
func (a Admission) SpacingBounds() (from, to time.Time) {
	at := a.Notification.ScheduledFor
	return at.Add(-a.MinSpacing), at.Add(a.MinSpacing)
}

// Outcome reports what happened to an admission.
type Outcome struct {
	Admitted       bool
	NotificationID string
	Reason         string
}

// GateState is the per-user snapshot read inside the admission transaction.
type GateState struct {
	// Duplicate is true when the dedup key is already claimed by a live notification.
	Duplicate bool
	// QueuedOnDay counts pending and sent notifications on the candidate's local day.
	QueuedOnDay int
	// NearbyActivity holds send times of pending and sent notifications inside the spacing bounds.
	NearbyActivity []time.Time
}

// Gate decides whether a candidate may be queued.
type Gate struct{}

// Decide applies the duplicate, daily cap and spacing checks in order. It returns an empty
// reason when the candidate is admitted.
func (Gate) Decide(state GateState, admission Admission) string {
	if state.Duplicate {
		return ReasonDuplicate
	}
	if admission.MaxPerDay > 0 && state.QueuedOnDay >= admission.MaxPerDay {
		return ReasonDailyCap
	}
	if admission.MinSpacing > 0 {
		at := admission.Notification.ScheduledFor
		for _, other := range state.NearbyActivity {
			gap := at.Sub(other)
			if gap < 0 {
				gap = -gap
			}
			if gap < admission.MinSpacing {
				return ReasonTooSoon
			}
		}
	}
	return ""
}

// WriteFailedReason formats the audit reason for a failed queue write.
func WriteFailedReason(err error) string {
	if err == nil {
		return reasonWriteFailedPrefix + "unknown error"
	}
	return reasonWriteFailedPrefix + err.Error()
}
