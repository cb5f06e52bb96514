// Package config loads and validates auditor configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper. It is
// constructed once at startup and passed by reference to each component;
// nothing reads the environment after that.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Chrome   ChromeConfig   `mapstructure:"chrome"`
	Insights InsightsConfig `mapstructure:"insights"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	DB       DBConfig       `mapstructure:"db"`
	Storage  StorageConfig  `mapstructure:"storage"`
	PubSub   PubSubConfig   `mapstructure:"pubsub"`
	Discover DiscoverConfig `mapstructure:"discover"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port           int `mapstructure:"port"`
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
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

// AuditConfig governs the batch pipeline.
type AuditConfig struct {
	Backend     string `mapstructure:"backend"`
	ChunkSize   int    `mapstructure:"chunk_size"`
	CallbackURL string `mapstructure:"callback_url"`
	StaggerSec  int    `mapstructure:"stagger_seconds"`
	Topic       string `mapstructure:"topic"`
}

// ChromeConfig configures the browser-driven backend.
type ChromeConfig struct {
	NavTimeoutSec int `mapstructure:"nav_timeout_seconds"`
	SettleMillis  int `mapstructure:"settle_millis"`
}

// InsightsConfig configures the remote insights backend.
type InsightsConfig struct {
	Endpoint       string `mapstructure:"endpoint"`
	APIKey         string `mapstructure:"api_key"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// TasksConfig locates the Cloud Tasks queue for the async path.
type TasksConfig struct {
	ProjectID  string `mapstructure:"project_id"`
	LocationID string `mapstructure:"location_id"`
	QueueID    string `mapstructure:"queue_id"`
}

// DBConfig controls access to the analytical results database.
type DBConfig struct {
	Provider string `mapstructure:"provider"`
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// StorageConfig sets the bucket for raw report archival.
type StorageConfig struct {
	Provider string `mapstructure:"provider"`
	Bucket   string `mapstructure:"bucket"`
	Prefix   string `mapstructure:"prefix"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	Provider  string `mapstructure:"provider"`
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// DiscoverConfig controls the URL discovery collector.
type DiscoverConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	MaxURLs        int    `mapstructure:"max_urls"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// Backend identifiers accepted in audit.backend.
const (
	BackendChrome   = "chrome"
	BackendInsights = "insights"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("AUDITOR")
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

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.timeout_seconds", 600)
	v.SetDefault("logging.development", true)
	v.SetDefault("audit.backend", BackendChrome)
	v.SetDefault("audit.chunk_size", 1)
	v.SetDefault("audit.stagger_seconds", 10)
	v.SetDefault("audit.topic", "audit-events")
	v.SetDefault("chrome.nav_timeout_seconds", 45)
	v.SetDefault("chrome.settle_millis", 2000)
	v.SetDefault("insights.timeout_seconds", 60)
	v.SetDefault("db.provider", "memory")
	v.SetDefault("db.table", "audit_results")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("storage.provider", "noop")
	v.SetDefault("storage.prefix", "reports")
	v.SetDefault("pubsub.provider", "memory")
	v.SetDefault("discover.user_agent", "pagepulse-bot/0.1")
	v.SetDefault("discover.max_urls", 25)
	v.SetDefault("discover.timeout_seconds", 15)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Audit.Backend != BackendChrome && c.Audit.Backend != BackendInsights {
		return fmt.Errorf("audit.backend must be %q or %q", BackendChrome, BackendInsights)
	}
	if c.Audit.ChunkSize <= 0 {
		return fmt.Errorf("audit.chunk_size must be > 0")
	}
	if c.Audit.StaggerSec <= 0 {
		return fmt.Errorf("audit.stagger_seconds must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.DB.Provider == "postgres" && c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set when db.provider is postgres")
	}
	if c.Storage.Provider == "gcs" && c.Storage.Bucket == "" {
		return fmt.Errorf("storage.bucket must be set when storage.provider is gcs")
	}
	if c.TasksConfigured() && c.Audit.CallbackURL == "" {
		return fmt.Errorf("audit.callback_url must be set when cloud tasks is configured")
	}
	return nil
}

// TasksConfigured reports whether the async path has a queue to talk to.
func (c Config) TasksConfigured() bool {
	return c.Tasks.ProjectID != "" && c.Tasks.LocationID != "" && c.Tasks.QueueID != ""
}

// Stagger returns the chunk ramp interval as a duration.
func (c Config) Stagger() time.Duration {
	return time.Duration(c.Audit.StaggerSec) * time.Second
}
