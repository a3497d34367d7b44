package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// Config represents the runtime configuration for the notification engine.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Auth        AuthConfig        `mapstructure:"auth"`
	Monitoring  MonitoringConfig  `mapstructure:"monitoring"`
	Features    FeatureConfig     `mapstructure:"features"`
	Engine      EngineConfig      `mapstructure:"engine"`
	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port      int             `mapstructure:"port"`
	LogLevel  string          `mapstructure:"log_level"`
	LogFormat string          `mapstructure:"log_format"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig bounds API requests per caller and route.
type RateLimitConfig struct {
	Requests int           `mapstructure:"requests"`
	Window   time.Duration `mapstructure:"window"`
}

// DatabaseConfig describes connection options for the supported databases.
type DatabaseConfig struct {
	Driver   string       `mapstructure:"driver"`
	Path     string       `mapstructure:"path"`
	DSN      string       `mapstructure:"dsn"`
	Postgres DBAuthConfig `mapstructure:"postgres"`
	MySQL    DBAuthConfig `mapstructure:"mysql"`
}

// DBAuthConfig represents host based database parameters.
type DBAuthConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Database string `mapstructure:"database"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
	Health     HealthConfig     `mapstructure:"health_check"`
}

// PrometheusConfig toggles metrics endpoints.
type PrometheusConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
}

// HealthConfig toggles health endpoints.
type HealthConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// FeatureConfig toggles optional features.
type FeatureConfig struct {
	Realtime RealtimeConfig `mapstructure:"realtime"`
}

// RealtimeConfig controls the queued-notification websocket feed.
type RealtimeConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// AuthConfig captures service-token settings.
type AuthConfig struct {
	JWT JWTSettings `mapstructure:"jwt"`
}

// JWTSettings configures service tokens.
type JWTSettings struct {
	Secret string        `mapstructure:"secret"`
	Issuer string        `mapstructure:"issuer"`
	TTL    time.Duration `mapstructure:"token_ttl"`
}

// EngineConfig tunes evaluation cycles and rule thresholds.
type EngineConfig struct {
	// Schedule is the cron spec of the periodic batch cycle. Empty disables the batch runner.
	Schedule        string        `mapstructure:"schedule"`
	Concurrency     int           `mapstructure:"concurrency"`
	RatePerSecond   float64       `mapstructure:"rate_per_second"`
	CycleTimeout    time.Duration `mapstructure:"cycle_timeout"`
	UserTimeout     time.Duration `mapstructure:"user_timeout"`
	CategoryTimeout time.Duration `mapstructure:"category_timeout"`
	LeaseTTL        time.Duration `mapstructure:"lease_ttl"`
	Lookahead       time.Duration `mapstructure:"lookahead"`

	UrgentBypassQuietHours bool `mapstructure:"urgent_bypass_quiet_hours"`
	WorkloadCapacity       int  `mapstructure:"workload_capacity"`
	MinMoodSamples         int  `mapstructure:"min_mood_samples"`

	Slots    SlotConfig        `mapstructure:"slots"`
	Defaults PreferenceDefault `mapstructure:"defaults"`
}

// SlotConfig maps named slots to local hours.
type SlotConfig struct {
	Morning   int `mapstructure:"morning"`
	Afternoon int `mapstructure:"afternoon"`
	Evening   int `mapstructure:"evening"`
	Weekend   int `mapstructure:"weekend"`
}

// PreferenceDefault applies to users without stored preferences.
type PreferenceDefault struct {
	Timezone        string   `mapstructure:"timezone"`
	QuietHoursStart string   `mapstructure:"quiet_hours_start"`
	QuietHoursEnd   string   `mapstructure:"quiet_hours_end"`
	MaxPerDay       int      `mapstructure:"max_per_day"`
	MinHoursBetween float64  `mapstructure:"min_hours_between"`
	Channels        []string `mapstructure:"channels"`
}

// MaintenanceConfig schedules retention jobs.
type MaintenanceConfig struct {
	Enabled                 bool   `mapstructure:"enabled"`
	TriggerLogRetentionDays int    `mapstructure:"trigger_log_retention_days"`
	TriggerLogSchedule      string `mapstructure:"trigger_log_schedule"`
	ClaimSchedule           string `mapstructure:"claim_schedule"`
	CacheSchedule           string `mapstructure:"cache_schedule"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("STUDYNOTIFY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.log_format", "json")
	v.SetDefault("server.rate_limit.requests", 120)
	v.SetDefault("server.rate_limit.window", "1m")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/studynotify.sqlite")

	// Bound explicitly so AutomaticEnv can override it without a config file.
	v.SetDefault("auth.jwt.secret", "")
	v.SetDefault("auth.jwt.issuer", "studynotify")
	v.SetDefault("auth.jwt.token_ttl", "24h")

	v.SetDefault("monitoring.prometheus.enabled", true)
	v.SetDefault("monitoring.prometheus.endpoint", "/metrics")
	v.SetDefault("monitoring.health_check.enabled", true)

	v.SetDefault("features.realtime.enabled", true)

	v.SetDefault("engine.schedule", "@every 15m")
	v.SetDefault("engine.concurrency", 8)
	v.SetDefault("engine.rate_per_second", 20)
	v.SetDefault("engine.cycle_timeout", "10m")
	v.SetDefault("engine.user_timeout", "30s")
	v.SetDefault("engine.category_timeout", "5s")
	v.SetDefault("engine.lease_ttl", "15m")
	v.SetDefault("engine.lookahead", "336h")
	v.SetDefault("engine.urgent_bypass_quiet_hours", false)
	v.SetDefault("engine.workload_capacity", 5)
	v.SetDefault("engine.min_mood_samples", 6)
	v.SetDefault("engine.slots.morning", 8)
	v.SetDefault("engine.slots.afternoon", 14)
	v.SetDefault("engine.slots.evening", 19)
	v.SetDefault("engine.slots.weekend", 10)
	v.SetDefault("engine.defaults.timezone", "UTC")
	v.SetDefault("engine.defaults.quiet_hours_start", "22:00")
	v.SetDefault("engine.defaults.quiet_hours_end", "07:00")
	v.SetDefault("engine.defaults.max_per_day", 5)
	v.SetDefault("engine.defaults.min_hours_between", 2)
	v.SetDefault("engine.defaults.channels", []string{"in_app", "push"})

	v.SetDefault("maintenance.enabled", true)
	v.SetDefault("maintenance.trigger_log_retention_days", 90)
	v.SetDefault("maintenance.trigger_log_schedule", "@daily")
	v.SetDefault("maintenance.claim_schedule", "@hourly")
	v.SetDefault("maintenance.cache_schedule", "@hourly")
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}
