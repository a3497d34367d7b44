package logger

import (
	"net/http"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	mu     sync.RWMutex
	global = zap.NewNop()
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// Options configures the global logger.
type Options struct {
	Level   string
	Format  string // json (default) or console
	Service string // attached to every entry when set
}

// InitWithOptions builds the global logger. Unknown levels fall back to info.
func InitWithOptions(opts Options) error {
	cfg := zap.NewProductionConfig()
	if strings.EqualFold(strings.TrimSpace(opts.Format), "console") {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	if err := SetLevel(opts.Level); err != nil {
		level.SetLevel(zapcore.InfoLevel)
	}
	cfg.Level = level

	if service := strings.TrimSpace(opts.Service); service != "" {
		cfg.InitialFields = map[string]any{"service": service}
	}

	built, err := cfg.Build()
	if err != nil {
		return err
	}
	Replace(built)
	return nil
}

// SetLevel changes the minimum level of loggers built by InitWithOptions.
func SetLevel(name string) error {
	parsed, err := zapcore.ParseLevel(strings.TrimSpace(name))
	if err != nil {
		return err
	}
	level.SetLevel(parsed)
	return nil
}

// LevelHandler serves the current level on GET and changes it on PUT with {"level":"debug"}.
func LevelHandler() http.Handler {
	return level
}

// Replace swaps the global logger. Tests use it to install observer cores.
func Replace(logger *zap.Logger) {
	if logger == nil {
		logger = zap.NewNop()
	}
	mu.Lock()
	global = logger
	mu.Unlock()
}

// Logger returns the global logger.
func Logger() *zap.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return global
}

// Sync flushes buffered entries.
func Sync() error {
	return Logger().Sync()
}

// WithModule returns a child logger annotated with the module name.
func WithModule(module string) *zap.Logger {
	return Logger().With(zap.String("module", module))
}

// WithUser returns a module logger annotated with the user being evaluated.
func WithUser(module, userID string) *zap.Logger {
	return WithModule(module).With(zap.String("user_id", userID))
}
