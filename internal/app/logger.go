package app

import (
	"strings"

	"github.com/charlesng35/studynotify/pkg/logger"
)

const serviceName = "studynotify"

// ConfigureLogging installs the global logger. An empty level means info; an empty format
// means JSON.
func ConfigureLogging(level, format string) error {
	level = strings.TrimSpace(level)
	if level == "" {
		level = "info"
	}
	return logger.InitWithOptions(logger.Options{Level: level, Format: format, Service: serviceName})
}
