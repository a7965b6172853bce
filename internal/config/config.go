// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreBadger   = "badger"
	StorePostgres = "postgres"
)

// Upload backends.
const (
	UploadsLocal  = "local"
	UploadsMemory = "memory"
	UploadsGCS    = "gcs"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Stream  StreamConfig  `mapstructure:"stream"`
	Store   StoreConfig   `mapstructure:"store"`
	Uploads UploadsConfig `mapstructure:"uploads"`
	Audit   AuditConfig   `mapstructure:"audit"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port                   int   `mapstructure:"port"`
	RequestTimeoutSeconds  int   `mapstructure:"request_timeout_seconds"`
	MaxUploadBytes         int64 `mapstructure:"max_upload_bytes"`
	ShutdownTimeoutSeconds int   `mapstructure:"shutdown_timeout_seconds"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// StreamConfig tunes progress streams. RatePerSecond limits how often one
// client address may open a stream; zero disables the limit.
type StreamConfig struct {
	DelayMs        int     `mapstructure:"delay_ms"`
	WriteTimeoutMs int     `mapstructure:"write_timeout_ms"`
	RatePerSecond  float64 `mapstructure:"rate_per_second"`
	Burst          int     `mapstructure:"burst"`
}

// StoreConfig selects and configures the todo store.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Badger   BadgerConfig   `mapstructure:"badger"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// BadgerConfig configures the on-disk store.
type BadgerConfig struct {
	Dir string `mapstructure:"dir"`
}

// PostgresConfig controls access to the relational database.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

// UploadsConfig sets where uploaded files are written.
type UploadsConfig struct {
	Backend   string            `mapstructure:"backend"`
	Local     LocalUploadConfig `mapstructure:"local"`
	GCSBucket string            `mapstructure:"gcs_bucket"`
	Prefix    string            `mapstructure:"prefix"`
}

// LocalUploadConfig configures the filesystem upload backend.
type LocalUploadConfig struct {
	BaseDir string `mapstructure:"base_dir"`
}

// AuditConfig controls stream session auditing.
type AuditConfig struct {
	Enabled       bool             `mapstructure:"enabled"`
	LogEnabled    bool             `mapstructure:"log_enabled"`
	BufferSize    int              `mapstructure:"buffer_size"`
	Batch         AuditBatchConfig `mapstructure:"batch"`
	SinkTimeoutMs int              `mapstructure:"sink_timeout_ms"`
}

// AuditBatchConfig bounds audit batches.
type AuditBatchConfig struct {
	MaxEvents int `mapstructure:"max_events"`
	MaxWaitMs int `mapstructure:"max_wait_ms"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("TODO")
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
	v.SetDefault("server.request_timeout_seconds", 30)
	v.SetDefault("server.max_upload_bytes", 32<<20)
	v.SetDefault("server.shutdown_timeout_seconds", 10)
	v.SetDefault("logging.development", true)
	v.SetDefault("stream.delay_ms", 50)
	v.SetDefault("stream.write_timeout_ms", 5000)
	v.SetDefault("stream.rate_per_second", 5)
	v.SetDefault("stream.burst", 10)
	v.SetDefault("store.backend", StoreMemory)
	v.SetDefault("store.badger.dir", "./.data/todos")
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "todos")
	v.SetDefault("store.postgres.max_conns", 10)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", time.Hour)
	v.SetDefault("uploads.backend", UploadsLocal)
	v.SetDefault("uploads.local.base_dir", "./.uploads")
	v.SetDefault("uploads.gcs_bucket", "")
	v.SetDefault("uploads.prefix", "uploads")
	v.SetDefault("audit.enabled", true)
	v.SetDefault("audit.log_enabled", true)
	v.SetDefault("audit.buffer_size", 1024)
	v.SetDefault("audit.batch.max_events", 100)
	v.SetDefault("audit.batch.max_wait_ms", 1000)
	v.SetDefault("audit.sink_timeout_ms", 5000)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Server.RequestTimeoutSeconds <= 0 {
		return fmt.Errorf("server.request_timeout_seconds must be > 0")
	}
	if c.Server.MaxUploadBytes <= 0 {
		return fmt.Errorf("server.max_upload_bytes must be > 0")
	}
	if c.Stream.DelayMs <= 0 {
		return fmt.Errorf("stream.delay_ms must be > 0")
	}
	if c.Stream.WriteTimeoutMs < 0 {
		return fmt.Errorf("stream.write_timeout_ms must be >= 0")
	}
	if c.Stream.RatePerSecond < 0 {
		return fmt.Errorf("stream.rate_per_second must be >= 0")
	}
	if c.Stream.Burst < 0 {
		return fmt.Errorf("stream.burst must be >= 0")
	}
	switch c.Store.Backend {
	case StoreMemory:
	case StoreBadger:
		if c.Store.Badger.Dir == "" {
			return fmt.Errorf("store.badger.dir is required for the badger backend")
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	switch c.Uploads.Backend {
	case UploadsMemory:
	case UploadsLocal:
		if c.Uploads.Local.BaseDir == "" {
			return fmt.Errorf("uploads.local.base_dir is required for the local backend")
		}
	case UploadsGCS:
		if c.Uploads.GCSBucket == "" {
			return fmt.Errorf("uploads.gcs_bucket is required for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown uploads.backend %q", c.Uploads.Backend)
	}
	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return fmt.Errorf("audit.buffer_size must be > 0 when audit is enabled")
	}
	if (c.PubSub.ProjectID == "") != (c.PubSub.TopicName == "") {
		return fmt.Errorf("pubsub.project_id and pubsub.topic_name must be set together")
	}
	return nil
}

// RequestTimeout returns the non-streaming request budget.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful shutdown budget.
func (c Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutSeconds) * time.Second
}

// StreamDelay returns the pause between progress frames.
func (c Config) StreamDelay() time.Duration {
	return time.Duration(c.Stream.DelayMs) * time.Millisecond
}

// StreamWriteTimeout returns the per-frame write deadline.
func (c Config) StreamWriteTimeout() time.Duration {
	return time.Duration(c.Stream.WriteTimeoutMs) * time.Millisecond
}
