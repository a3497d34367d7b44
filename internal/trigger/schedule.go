package trigger

import (
	"fmt"
	"strings"
	"time"
)

// SlotHours configures the local hour each named slot resolves to.
type SlotHours struct {
	Morning   int
	Afternoon int
	Evening   int
	Weekend   int
}

// DefaultSlotHours returns the standard slot hours.
func DefaultSlotHours() SlotHours {
	return SlotHours{Morning: 8, Afternoon: 14, Evening: 19, Weekend: 10}
}

func (h SlotHours) withDefaults() SlotHours {
	defaults := DefaultSlotHours()
	if h.Morning <= 0 || h.Morning > 23 {
		h.Morning = defaults.Morning
	}
	if h.Afternoon <= 0 || h.Afternoon > 23 {
		h.Afternoon = defaults.Afternoon
	}
	if h.Evening <= 0 || h.Evening > 23 {
		h.Evening = defaults.Evening
	}
	if h.Weekend <= 0 || h.Weekend > 23 {
		h.Weekend = defaults.Weekend
	}
	return h
}

// QuietWindow is a daily local time range that may wrap midnight.
type QuietWindow struct {
	startMinute int
	endMinute   int
	set         bool
}

// ParseQuietWindow parses "HH:MM" boundaries. Two empty values yield an unset window.
func ParseQuietWindow(start, end string) (QuietWindow, error) {
	start = strings.TrimSpace(start)
	end = strings.TrimSpace(end)
	if start == "" && end == "" {
		return QuietWindow{}, nil
	}
	from, err := parseClock(start)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet hours start: %w", err)
	}
	to, err := parseClock(end)
	if err != nil {
		return QuietWindow{}, fmt.Errorf("quiet hours end: %w", err)
	}
	if from == to {
		return QuietWindow{}, nil
	}
	return QuietWindow{startMinute: from, endMinute: to, set: true}, nil
}

func parseClock(value string) (int, error) {
	parsed, err := time.Parse("15:04", value)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q", value)
	}
	return parsed.Hour()*60 + parsed.Minute(), nil
}

// IsSet reports whether the window has boundaries.
func (w QuietWindow) IsSet() bool {
	return w.set
}

// Contains reports whether the local time t falls inside the window.
func (w QuietWindow) Contains(t time.Time) bool {
	if !w.set {
		return false
	}
	minute := t.Hour()*60 + t.Minute()
	if w.startMinute < w.endMinute {
		return minute >= w.startMinute && minute < w.endMinute
	}
	return minute >= w.startMinute || minute < w.endMinute
}

// EndAfter returns the end of the window containing t. t must be inside the window.
func (w QuietWindow) EndAfter(t time.Time) time.Time {
	minute := t.Hour()*60 + t.Minute()
	year, month, day := t.Date()
	if w.startMinute > w.endMinute && minute >= w.startMinute {
		day++
	}
	return time.Date(year, month, day, w.endMinute/60, w.endMinute%60, 0, 0, t.Location())
}

// Scheduler maps slots to concrete send times.
type Scheduler struct {
	hours SlotHours
}

// NewScheduler constructs a Scheduler, defaulting unset hours.
func NewScheduler(hours SlotHours) Scheduler {
	return Scheduler{hours: hours.withDefaults()}
}

// SlotTime returns the next occurrence of the slot after now in loc.
func (s Scheduler) SlotTime(slot Slot, now time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	hours := s.hours.withDefaults()
	local := now.In(loc)

	switch slot {
	case SlotMorning:
		return nextHour(local, hours.Morning)
	case SlotAfternoon:
		return nextHour(local, hours.Afternoon)
	case SlotEvening:
		return nextHour(local, hours.Evening)
	case SlotWeekend:
		days := (int(time.Saturday) - int(local.Weekday()) + 7) % 7
		year, month, day := local.Date()
		at := time.Date(year, month, day+days, hours.Weekend, 0, 0, 0, loc)
		if !at.After(local) {
			at = time.Date(year, month, day+days+7, hours.Weekend, 0, 0, 0, loc)
		}
		return at
	default:
		return local
	}
}

func nextHour(local time.Time, hour int) time.Time {
	year, month, day := local.Date()
	at := time.Date(year, month, day, hour, 0, 0, 0, local.Location())
	if !at.After(local) {
		at = time.Date(year, month, day+1, hour, 0, 0, 0, local.Location())
	}
	return at
}

// Clamp moves t out of the quiet window. deferred reports whether t was moved.
func (s Scheduler) Clamp(t time.Time, loc *time.Location, quiet QuietWindow) (at time.Time, deferred bool) {
	if loc == nil {
		loc = time.UTC
	}
	local := t.In(loc)
	if !quiet.Contains(local) {
		return local, false
	}
	return quiet.EndAfter(local), true
}

// Resolve returns the send time for slot, clamped out of the quiet window.
func (s Scheduler) Resolve(slot Slot, now time.Time, loc *time.Location, quiet QuietWindow) time.Time {
	at, _ := s.Clamp(s.SlotTime(slot, now, loc), loc, quiet)
	return at
}
