package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Status is the connectivity lifecycle of the remote backend. It is exposed
// read-only for observability; the cache itself only connects lazily on
// first use and disconnects on Close.
type Status string

const (
	// StatusDisabled is reported by callers when no remote backend is
	// configured at all; the backend itself never enters this state.
	StatusDisabled Status = "disabled"

	StatusIdle         Status = "idle"
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// RedisConfig configures a Redis cache.
type RedisConfig struct {
	// URL is a redis connection URL, e.g. redis://localhost:6379/0.
	URL string

	// KeyPrefix namespaces every key, defaulting to "patrolkit:".
	KeyPrefix string

	Logger *zap.Logger
}

// Redis is the remote backend. It has no capacity bound of its own (the
// remote store's policy is the bound), no raw-entry introspection, and every
// operation can fail with a connectivity error which propagates to the
// caller.
type Redis struct {
	client *redis.Client
	prefix string
	logger *zap.Logger

	mu     sync.Mutex
	status Status
}

// NewRedis prepares a Redis cache. No connection is made until the first
// operation.
func NewRedis(cfg RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "patrolkit:"
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Redis{
		client: redis.NewClient(opts),
		prefix: prefix,
		logger: logger,
		status: StatusIdle,
	}, nil
}

var _ Cache = (*Redis)(nil)

// Status returns the current connectivity state.
func (r *Redis) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Get implements Cache.
func (r *Redis) Get(ctx context.Context, key string) (Result, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return Result{}, err
	}

	value, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Result{}, nil
	}
	if err != nil {
		r.setStatus(StatusError)
		return Result{}, fmt.Errorf("redis get: %w", err)
	}
	return Result{Value: value, Found: true}, nil
}

// GetStale implements Cache. Redis drops expired keys server-side, so a
// stale read degrades to a plain lookup on this backend.
func (r *Redis) GetStale(ctx context.Context, key string) (Result, error) {
	return r.Get(ctx, key)
}

// Set implements Cache. ttl <= 0 stores without expiration.
func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.ensureConnected(ctx); err != nil {
		return err
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, r.key(key), value, ttl).Err(); err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Delete implements Cache.
func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.ensureConnected(ctx); err != nil {
		return err
	}

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("redis delete: %w", err)
	}
	return nil
}

// Clear implements Cache by scanning and deleting every key under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	if err := r.ensureConnected(ctx); err != nil {
		return err
	}

	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) >= 100 {
			if err := r.client.Del(ctx, keys...).Err(); err != nil {
				r.setStatus(StatusError)
				return fmt.Errorf("redis clear: %w", err)
			}
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("redis clear scan: %w", err)
	}
	if len(keys) > 0 {
		if err := r.client.Del(ctx, keys...).Err(); err != nil {
			r.setStatus(StatusError)
			return fmt.Errorf("redis clear: %w", err)
		}
	}
	return nil
}

// Len implements Cache by counting keys under the prefix.
func (r *Redis) Len(ctx context.Context) (int, error) {
	if err := r.ensureConnected(ctx); err != nil {
		return 0, err
	}

	count := 0
	iter := r.client.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		r.setStatus(StatusError)
		return 0, fmt.Errorf("redis len: %w", err)
	}
	return count, nil
}

// Close disconnects from the remote store. Safe to call more than once.
func (r *Redis) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.status == StatusDisconnected {
		return nil
	}
	r.status = StatusDisconnected
	return r.client.Close()
}

func (r *Redis) key(key string) string {
	return r.prefix + key
}

// ensureConnected performs the lazy connect-on-first-use ping.
func (r *Redis) ensureConnected(ctx context.Context) error {
	r.mu.Lock()
	if r.status == StatusConnected {
		r.mu.Unlock()
		return nil
	}
	if r.status == StatusDisconnected {
		r.mu.Unlock()
		return errors.New("redis cache is closed")
	}
	r.status = StatusConnecting
	r.mu.Unlock()

	if err := r.client.Ping(ctx).Err(); err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("redis connect: %w", err)
	}

	r.setStatus(StatusConnected)
	r.logger.Debug("connected to redis cache backend")
	return nil
}

func (r *Redis) setStatus(status Status) {
	r.mu.Lock()
	r.status = status
	r.mu.Unlock()
}
