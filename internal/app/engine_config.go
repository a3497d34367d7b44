package app

import (
	"strings"

	"github.com/charlesng35/studynotify/internal/trigger"
)

// TriggerConfig converts EngineConfig into the trigger engine configuration.
func (c EngineConfig) TriggerConfig() trigger.Config {
	return trigger.Config{
		Slots: trigger.SlotHours{
			Morning:   c.Slots.Morning,
			Afternoon: c.Slots.Afternoon,
			Evening:   c.Slots.Evening,
			Weekend:   c.Slots.Weekend,
		},
		Rules: trigger.RuleConfig{
			WorkloadCapacity: c.WorkloadCapacity,
			MinMoodSamples:   c.MinMoodSamples,
		},
		CategoryTimeout:        c.CategoryTimeout,
		UrgentBypassQuietHours: c.UrgentBypassQuietHours,
		Defaults:               c.Defaults.Preferences(),
	}
}

// Preferences builds the fallback preferences. Every category starts enabled.
func (d PreferenceDefault) Preferences() trigger.Preferences {
	return trigger.Preferences{
		Channels:        channelsFromNames(d.Channels),
		Toggles:         trigger.AllCategoriesEnabled(),
		QuietHoursStart: strings.TrimSpace(d.QuietHoursStart),
		QuietHoursEnd:   strings.TrimSpace(d.QuietHoursEnd),
		Timezone:        strings.TrimSpace(d.Timezone),
		MaxPerDay:       d.MaxPerDay,
		MinHoursBetween: d.MinHoursBetween,
	}
}

func channelsFromNames(names []string) trigger.Channels {
	var channels trigger.Channels
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "in_app":
			channels.InApp = true
		case "email":
			channels.Email = true
		case "push":
			channels.Push = true
		case "sms":
			channels.SMS = true
		}
	}
	return channels
}
