package config

import (
	"time"
)

// Config is the complete patrolctl configuration, merged from defaults,
// an optional YAML file, environment variables (PATROLKIT_ prefix), and
// command-line flags.
type Config struct {
	ServerKey  string        `mapstructure:"server_key" yaml:"server_key"`
	GlobalKey  string        `mapstructure:"global_key" yaml:"global_key"`
	BaseURL    string        `mapstructure:"base_url" yaml:"base_url"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries"`

	Queue   QueueConfig   `mapstructure:"queue" yaml:"queue"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Watch   WatchConfig   `mapstructure:"watch" yaml:"watch"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// QueueConfig controls request pacing.
type QueueConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	Workers  int           `mapstructure:"workers" yaml:"workers"`
	Interval time.Duration `mapstructure:"interval" yaml:"interval"`
}

// CacheConfig controls response caching.
type CacheConfig struct {
	Enabled       bool          `mapstructure:"enabled" yaml:"enabled"`
	TTL           time.Duration `mapstructure:"ttl" yaml:"ttl"`
	StaleIfError  bool          `mapstructure:"stale_if_error" yaml:"stale_if_error"`
	MaxItems      int           `mapstructure:"max_items" yaml:"max_items"`
	KeyPrefix     string        `mapstructure:"key_prefix" yaml:"key_prefix"`
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
	RedisURL      string        `mapstructure:"redis_url" yaml:"redis_url"`
}

// WatchConfig controls the change-detection session behind `patrolctl
// watch`.
type WatchConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	Kinds          []string      `mapstructure:"kinds" yaml:"kinds"`
	IncludeInitial bool          `mapstructure:"include_initial" yaml:"include_initial"`
	RetryOnError   bool          `mapstructure:"retry_on_error" yaml:"retry_on_error"`
	RetryInterval  time.Duration `mapstructure:"retry_interval" yaml:"retry_interval"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "console" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}
