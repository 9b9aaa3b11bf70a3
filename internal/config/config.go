// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Sweep     SweepConfig     `mapstructure:"sweep"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
	Headless  HeadlessConfig  `mapstructure:"headless"`
	Store     StoreConfig     `mapstructure:"store"`
	Transport TransportConfig `mapstructure:"transport"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SweepConfig governs the reconciliation loop.
type SweepConfig struct {
	IntervalMinutes int `mapstructure:"interval_minutes"`
	Concurrency     int `mapstructure:"concurrency"`
}

// FetchConfig configures the page fetcher.
type FetchConfig struct {
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	UserAgent      string `mapstructure:"user_agent"`
	// PerHostRPS throttles fetches per host; zero disables throttling.
	PerHostRPS   float64 `mapstructure:"per_host_rps"`
	PerHostBurst int     `mapstructure:"per_host_burst"`
}

// HeadlessConfig configures the headless rendering subsystem.
type HeadlessConfig struct {
	Enabled         bool `mapstructure:"enabled"`
	MaxParallel     int  `mapstructure:"max_parallel"`
	NavTimeoutSec   int  `mapstructure:"nav_timeout_seconds"`
	PromotionThresh int  `mapstructure:"promotion_threshold"`
}

// StoreConfig selects and configures the tracking store backend.
type StoreConfig struct {
	Provider string              `mapstructure:"provider"`
	File     FileStoreConfig     `mapstructure:"file"`
	Postgres PostgresStoreConfig `mapstructure:"postgres"`
}

// FileStoreConfig sets the JSON state file location.
type FileStoreConfig struct {
	Path string `mapstructure:"path"`
}

// PostgresStoreConfig controls access to the relational database.
type PostgresStoreConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// TransportConfig selects the outbound message transport.
type TransportConfig struct {
	Provider string         `mapstructure:"provider"`
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Bot API credentials and polling behavior.
type TelegramConfig struct {
	BotToken           string `mapstructure:"bot_token"`
	PollTimeoutSeconds int    `mapstructure:"poll_timeout_seconds"`
}

// ArchiveConfig selects the snapshot archive backend for changed pages.
type ArchiveConfig struct {
	Provider  string `mapstructure:"provider"`
	Prefix    string `mapstructure:"prefix"`
	LocalDir  string `mapstructure:"local_dir"`
	GCSBucket string `mapstructure:"gcs_bucket"`
}

// PubSubConfig holds metadata for publish-subscribe change events.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// NotifyConfig controls the document-list artifact workspace.
type NotifyConfig struct {
	WorkDir string `mapstructure:"work_dir"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PAGEWATCH")
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
	v.SetDefault("sweep.interval_minutes", 30)
	v.SetDefault("sweep.concurrency", 4)
	v.SetDefault("fetch.timeout_seconds", 10)
	v.SetDefault("fetch.user_agent", "pagewatch-bot/0.1")
	v.SetDefault("fetch.per_host_rps", 0)
	v.SetDefault("fetch.per_host_burst", 1)
	v.SetDefault("headless.enabled", false)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.nav_timeout_seconds", 25)
	v.SetDefault("headless.promotion_threshold", 60)
	v.SetDefault("store.provider", "file")
	v.SetDefault("store.file.path", "pagewatch_state.json")
	v.SetDefault("store.postgres.table", "tracked_sites")
	v.SetDefault("transport.provider", "log")
	v.SetDefault("transport.telegram.poll_timeout_seconds", 30)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "snapshots")
	v.SetDefault("notify.work_dir", "")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Sweep.IntervalMinutes <= 0 {
		return fmt.Errorf("sweep.interval_minutes must be > 0")
	}
	if c.Sweep.Concurrency <= 0 {
		return fmt.Errorf("sweep.concurrency must be > 0")
	}
	if c.Fetch.TimeoutSeconds <= 0 {
		return fmt.Errorf("fetch.timeout_seconds must be > 0")
	}
	if c.Headless.Enabled && c.Headless.MaxParallel <= 0 {
		return fmt.Errorf("headless.max_parallel must be > 0 when headless is enabled")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	switch c.Store.Provider {
	case "memory":
	case "file":
		if c.Store.File.Path == "" {
			return fmt.Errorf("store.file.path must be set for the file store")
		}
	case "postgres":
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set for the postgres store")
		}
	default:
		return fmt.Errorf("unknown store provider %q", c.Store.Provider)
	}
	switch c.Transport.Provider {
	case "log":
	case "telegram":
		if c.Transport.Telegram.BotToken == "" {
			return fmt.Errorf("transport.telegram.bot_token must be set for the telegram transport")
		}
	default:
		return fmt.Errorf("unknown transport provider %q", c.Transport.Provider)
	}
	switch c.Archive.Provider {
	case "none", "memory":
	case "local":
		if c.Archive.LocalDir == "" {
			return fmt.Errorf("archive.local_dir must be set for the local archive")
		}
	case "gcs":
		if c.Archive.GCSBucket == "" {
			return fmt.Errorf("archive.gcs_bucket must be set for the gcs archive")
		}
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}
	return nil
}

// SweepInterval converts the configured interval into a duration.
func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Sweep.IntervalMinutes) * time.Minute
}

// FetchTimeout converts the configured fetch timeout into a duration.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Fetch.TimeoutSeconds) * time.Second
}
