package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewRedisRejectsBadURL(t *testing.T) {
	_, err := NewRedis(RedisConfig{URL: "not-a-url"})
	require.Error(t, err)
}

func TestRedisConnectivityErrorPropagates(t *testing.T) {
	// Port 1 is never a redis server; the lazy connect must fail and the
	// failure must reach the caller rather than degrade to a miss.
	r, err := NewRedis(RedisConfig{URL: "redis://127.0.0.1:1"})
	require.NoError(t, err)
	require.Equal(t, StatusIdle, r.Status())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err = r.Get(ctx, "key")
	require.Error(t, err)
	require.Equal(t, StatusError, r.Status())
}

func TestRedisClosedRejectsOperations(t *testing.T) {
	r, err := NewRedis(RedisConfig{URL: "redis://127.0.0.1:1"})
	require.NoError(t, err)
	require.NoError(t, r.Close())
	require.Equal(t, StatusDisconnected, r.Status())

	err = r.Set(context.Background(), "key", []byte("v"), time.Minute)
	require.Error(t, err)

	// Close is idempotent.
	require.NoError(t, r.Close())
}
