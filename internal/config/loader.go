// Package config loads patrolctl configuration from three layers: baked-in
// defaults, an optional YAML config file, and PATROLKIT_-prefixed
// environment variables. Later layers win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// EnvPrefix is the environment variable prefix, e.g. PATROLKIT_SERVER_KEY.
const EnvPrefix = "PATROLKIT"

// SetDefaults installs the default values on v.
func SetDefaults(v *viper.Viper) {
	// Every key needs a default so environment-only overrides are visible
	// to AllSettings.
	v.SetDefault("server_key", "")
	v.SetDefault("global_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("timeout", "15s")
	v.SetDefault("max_retries", 3)

	v.SetDefault("queue.enabled", false)
	v.SetDefault("queue.workers", 1)
	v.SetDefault("queue.interval", "0s")

	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.stale_if_error", true)
	v.SetDefault("cache.max_items", 100)
	v.SetDefault("cache.key_prefix", "patrolkit:")
	v.SetDefault("cache.sweep_interval", "1m")
	v.SetDefault("cache.redis_url", "")

	v.SetDefault("watch.poll_interval", "5s")
	v.SetDefault("watch.kinds", []string{})
	v.SetDefault("watch.include_initial", true)
	v.SetDefault("watch.retry_on_error", true)
	v.SetDefault("watch.retry_interval", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
}

// NewViper returns a viper instance with defaults, env bindings, and file
// search paths configured. cfgFile, when non-empty, pins the config file
// location instead of searching.
func NewViper(cfgFile string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		return v
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if dir := DefaultConfigDir(); dir != "" {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	return v
}

// Load reads the config file (when present) and decodes the merged layers.
// A missing config file is fine; defaults and environment still apply.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// DefaultConfigDir is the per-user configuration directory.
func DefaultConfigDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(base, "patrolctl")
}

// DefaultConfigPath is the per-user configuration file location.
func DefaultConfigPath() string {
	dir := DefaultConfigDir()
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, "config.yaml")
}
