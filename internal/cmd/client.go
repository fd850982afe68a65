package cmd

import (
	"fmt"

	"github.com/patrolkit/patrolkit"
	"github.com/patrolkit/patrolkit/internal/config"
)

// newClient builds an API client from the merged configuration.
func newClient(cfg *config.Config) (*patrolkit.Client, error) {
	if cfg.ServerKey == "" {
		return nil, fmt.Errorf("no server key configured: set server_key in %s, "+
			"export %s_SERVER_KEY, or pass --server-key", config.DefaultConfigPath(), config.EnvPrefix)
	}

	client, err := patrolkit.New(patrolkit.Config{
		ServerKey:  cfg.ServerKey,
		GlobalKey:  cfg.GlobalKey,
		BaseURL:    cfg.BaseURL,
		Timeout:    cfg.Timeout,
		MaxRetries: cfg.MaxRetries,
		Queue: patrolkit.QueueConfig{
			Enabled:  cfg.Queue.Enabled,
			Workers:  cfg.Queue.Workers,
			Interval: cfg.Queue.Interval,
		},
		Cache: patrolkit.CacheConfig{
			Enabled:       cfg.Cache.Enabled,
			TTL:           cfg.Cache.TTL,
			StaleIfError:  cfg.Cache.StaleIfError,
			MaxItems:      cfg.Cache.MaxItems,
			KeyPrefix:     cfg.Cache.KeyPrefix,
			SweepInterval: cfg.Cache.SweepInterval,
			RedisURL:      cfg.Cache.RedisURL,
		},
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	return client, nil
}

// withClient loads config, builds a client, runs fn, and closes the client.
func withClient(fn func(*patrolkit.Client) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}
	defer client.Close() // nolint:errcheck // best-effort cleanup
	return fn(client)
}
