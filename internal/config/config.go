// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/plotter-web/internal/storage/local"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Plotter   PlotterConfig   `mapstructure:"plotter"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int `mapstructure:"port"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`
	ShutdownTimeoutSeconds int `mapstructure:"shutdown_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// PlotterConfig describes the machine the G-code targets.
type PlotterConfig struct {
	PenUpZ float64 `mapstructure:"pen_up_z"`
}

// RateLimitConfig throttles API calls per client address.
type RateLimitConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RPS            float64       `mapstructure:"rps"`
	Burst          int           `mapstructure:"burst"`
	TrustForwarded bool          `mapstructure:"trust_forwarded"`
	IdleTTL        time.Duration `mapstructure:"idle_ttl"`
	MaxClients     int           `mapstructure:"max_clients"`
}

// ArchiveConfig controls whether submissions are recorded and where.
type ArchiveConfig struct {
	Enabled  bool           `mapstructure:"enabled"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
}

// StorageConfig sets the blob backend for raw G-code.
type StorageConfig struct {
	Backend     string       `mapstructure:"backend"`
	Bucket      string       `mapstructure:"bucket"`
	Local       local.Config `mapstructure:"local"`
	Prefix      string       `mapstructure:"prefix"`
	ContentType string       `mapstructure:"content_type"`
}

// DatabaseConfig controls the Postgres submission table. An empty DSN keeps submissions in memory.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// PubSubConfig holds metadata for submission notifications. Without a project ID events
// are kept by an in-process publisher.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// TelemetryConfig controls OpenTelemetry tracing.
type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PLOTTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Cloud Run style PORT wins over everything else.
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return Config{}, fmt.Errorf("parse PORT %q: %w", port, err)
		}
		cfg.Server.Port = p
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout_seconds", 60)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("plotter.pen_up_z", 0.5)
	v.SetDefault("ratelimit.enabled", false)
	v.SetDefault("ratelimit.rps", 5)
	v.SetDefault("ratelimit.burst", 10)
	v.SetDefault("ratelimit.trust_forwarded", false)
	v.SetDefault("ratelimit.idle_ttl", "10m")
	v.SetDefault("ratelimit.max_clients", 10000)
	v.SetDefault("archive.enabled", false)
	v.SetDefault("archive.storage.backend", "memory")
	v.SetDefault("archive.storage.bucket", "")
	v.SetDefault("archive.storage.local.base_dir", "data/jobs")
	v.SetDefault("archive.storage.prefix", "jobs")
	v.SetDefault("archive.storage.content_type", "text/x-gcode; charset=utf-8")
	v.SetDefault("archive.database.dsn", "")
	v.SetDefault("archive.database.table", "submissions")
	v.SetDefault("archive.database.max_conns", 4)
	v.SetDefault("archive.database.min_conns", 0)
	v.SetDefault("archive.database.max_conn_lifetime", "30m")
	v.SetDefault("archive.pubsub.project_id", "")
	v.SetDefault("archive.pubsub.topic_name", "submissions")
	v.SetDefault("telemetry.service_name", "plotter-web")
	v.SetDefault("telemetry.sample_ratio", 0)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.RateLimit.Enabled && c.RateLimit.RPS <= 0 {
		return fmt.Errorf("ratelimit.rps must be > 0 when rate limiting is enabled")
	}
	if c.Telemetry.SampleRatio < 0 || c.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("telemetry.sample_ratio must be between 0 and 1")
	}
	if !c.Archive.Enabled {
		return nil
	}
	switch c.Archive.Storage.Backend {
	case "memory", "local":
	case "gcs":
		if c.Archive.Storage.Bucket == "" {
			return fmt.Errorf("archive.storage.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown archive.storage.backend %q", c.Archive.Storage.Backend)
	}
	if c.Archive.PubSub.ProjectID != "" && c.Archive.PubSub.TopicName == "" {
		return fmt.Errorf("archive.pubsub.topic_name must be set when archive.pubsub.project_id is set")
	}
	return nil
}

// RequestTimeout converts the configured per-request budget into a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout is how long in-flight requests get to drain on SIGTERM.
func (c Config) ShutdownTimeout() time.Duration {
	if c.Server.ShutdownTimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}
