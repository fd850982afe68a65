package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(NewViper(filepath.Join(t.TempDir(), "missing.yaml")))
	require.NoError(t, err)

	require.Empty(t, cfg.ServerKey)
	require.Equal(t, 15*time.Second, cfg.Timeout)
	require.Equal(t, 3, cfg.MaxRetries)
	require.True(t, cfg.Cache.Enabled)
	require.Equal(t, 30*time.Second, cfg.Cache.TTL)
	require.True(t, cfg.Cache.StaleIfError)
	require.Equal(t, 100, cfg.Cache.MaxItems)
	require.False(t, cfg.Queue.Enabled)
	require.Equal(t, 5*time.Second, cfg.Watch.PollInterval)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "console", cfg.Logging.Format)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_key: srv-from-file
timeout: 3s
queue:
  enabled: true
  workers: 2
  interval: 250ms
cache:
  ttl: 2m
  redis_url: redis://localhost:6379/0
watch:
  kinds:
    - players
    - kills
logging:
  level: debug
  format: json
`), 0o600))

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)

	require.Equal(t, "srv-from-file", cfg.ServerKey)
	require.Equal(t, 3*time.Second, cfg.Timeout)
	require.True(t, cfg.Queue.Enabled)
	require.Equal(t, 2, cfg.Queue.Workers)
	require.Equal(t, 250*time.Millisecond, cfg.Queue.Interval)
	require.Equal(t, 2*time.Minute, cfg.Cache.TTL)
	require.Equal(t, "redis://localhost:6379/0", cfg.Cache.RedisURL)
	require.Equal(t, []string{"players", "kills"}, cfg.Watch.Kinds)
	require.Equal(t, "debug", cfg.Logging.Level)
	require.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_key: srv-from-file\n"), 0o600))

	t.Setenv("PATROLKIT_SERVER_KEY", "srv-from-env")
	t.Setenv("PATROLKIT_CACHE_TTL", "45s")
	t.Setenv("PATROLKIT_WATCH_KINDS", "players,queue")

	cfg, err := Load(NewViper(path))
	require.NoError(t, err)

	require.Equal(t, "srv-from-env", cfg.ServerKey)
	require.Equal(t, 45*time.Second, cfg.Cache.TTL)
	require.Equal(t, []string{"players", "queue"}, cfg.Watch.Kinds)
}

func TestLoadRejectsMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server_key: [unclosed\n"), 0o600))

	_, err := Load(NewViper(path))
	require.Error(t, err)
}

func TestDefaultConfigPath(t *testing.T) {
	path := DefaultConfigPath()
	if path == "" {
		t.Skip("no user config dir on this platform")
	}
	require.Equal(t, "config.yaml", filepath.Base(path))
	require.Contains(t, path, "patrolctl")
}
