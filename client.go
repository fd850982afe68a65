// Package patrolkit is a Go client for the Emergency Response: Liberty
// County server management API. It wraps the raw HTTP surface with rate
// limit tracking, retries, optional response caching, optional request
// pacing, and typed resource accessors.
package patrolkit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/patrolkit/patrolkit/cache"
	"github.com/patrolkit/patrolkit/queue"
	"github.com/patrolkit/patrolkit/ratelimit"
	"github.com/patrolkit/patrolkit/transport"
)

// QueueConfig controls optional request pacing. With pacing enabled, every
// outbound call is serialized through a worker pool that pauses Interval
// between jobs.
type QueueConfig struct {
	Enabled  bool
	Workers  int
	Interval time.Duration
}

// CacheConfig controls optional response caching for reads.
type CacheConfig struct {
	Enabled       bool
	TTL           time.Duration
	StaleIfError  bool
	MaxItems      int
	KeyPrefix     string
	SweepInterval time.Duration

	// RedisURL switches the backend from the bounded in-memory store to a
	// Redis-backed remote store.
	RedisURL string
}

// Config is the construction-time configuration surface.
type Config struct {
	// ServerKey is the per-server credential. Required.
	ServerKey string

	// GlobalKey is the optional account-level credential.
	GlobalKey string

	// BaseURL overrides the production endpoint, mostly for tests.
	BaseURL string

	// Timeout bounds each HTTP attempt.
	Timeout time.Duration

	// MaxRetries is the retry budget per logical call.
	MaxRetries int

	Queue QueueConfig
	Cache CacheConfig

	// DisableKeepAlives turns off HTTP connection reuse.
	DisableKeepAlives bool

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client is the high-level API surface. All methods are safe for concurrent
// use.
type Client struct {
	pipeline *transport.Pipeline
	tracker  *ratelimit.Tracker
	cache    cache.Cache
	queue    *queue.Queue
	logger   *zap.Logger
}

// New builds a Client from cfg.
func New(cfg Config) (*Client, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if cfg.DisableKeepAlives {
			httpClient.Transport = &http.Transport{DisableKeepAlives: true}
		}
	}

	tracker := ratelimit.NewTracker()

	var store cache.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.RedisURL != "" {
			remote, err := cache.NewRedis(cache.RedisConfig{
				URL:       cfg.Cache.RedisURL,
				KeyPrefix: cfg.Cache.KeyPrefix,
				Logger:    logger,
			})
			if err != nil {
				return nil, fmt.Errorf("configure redis cache: %w", err)
			}
			store = remote
		} else {
			store = cache.NewMemory(cache.MemoryConfig{
				MaxItems:      cfg.Cache.MaxItems,
				SweepInterval: cfg.Cache.SweepInterval,
				Logger:        logger,
			})
		}
	}

	var paced *queue.Queue
	if cfg.Queue.Enabled {
		paced = queue.New(queue.Config{
			Workers:  cfg.Queue.Workers,
			Interval: cfg.Queue.Interval,
			Logger:   logger,
		})
	}

	pipeline, err := transport.New(transport.Config{
		ServerKey:    cfg.ServerKey,
		GlobalKey:    cfg.GlobalKey,
		BaseURL:      cfg.BaseURL,
		Timeout:      cfg.Timeout,
		MaxRetries:   cfg.MaxRetries,
		Tracker:      tracker,
		Cache:        store,
		CacheTTL:     cfg.Cache.TTL,
		StaleIfError: cfg.Cache.StaleIfError,
		Queue:        paced,
		HTTPClient:   httpClient,
		Logger:       logger,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		pipeline: pipeline,
		tracker:  tracker,
		cache:    store,
		queue:    paced,
		logger:   logger,
	}, nil
}

// CallOption adjusts one call.
type CallOption func(*transport.CallOptions)

// WithoutCache disables cache lookup and store for this call.
func WithoutCache() CallOption {
	return func(o *transport.CallOptions) { o.DisableCache = true }
}

// WithCacheTTL overrides the configured cache TTL for this call.
func WithCacheTTL(ttl time.Duration) CallOption {
	return func(o *transport.CallOptions) { o.CacheTTL = ttl }
}

func callOptions(opts []CallOption) *transport.CallOptions {
	resolved := &transport.CallOptions{}
	for _, opt := range opts {
		opt(resolved)
	}
	return resolved
}

func fetch[T any](ctx context.Context, c *Client, path string, opts []CallOption) (T, error) {
	var out T
	body, err := c.pipeline.Get(ctx, path, callOptions(opts))
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode %s response: %w", path, err)
	}
	return out, nil
}

// Status fetches the server metadata snapshot.
func (c *Client) Status(ctx context.Context, opts ...CallOption) (*ServerStatus, error) {
	return fetch[*ServerStatus](ctx, c, "/server", opts)
}

// Players lists everyone currently in the server.
func (c *Client) Players(ctx context.Context, opts ...CallOption) ([]Player, error) {
	return fetch[[]Player](ctx, c, "/server/players", opts)
}

// QueuedPlayers lists the ids of players waiting to join.
func (c *Client) QueuedPlayers(ctx context.Context, opts ...CallOption) ([]int64, error) {
	return fetch[[]int64](ctx, c, "/server/queue", opts)
}

// Bans maps banned player ids (decimal strings) to display names.
func (c *Client) Bans(ctx context.Context, opts ...CallOption) (map[string]string, error) {
	return fetch[map[string]string](ctx, c, "/server/bans", opts)
}

// Staff fetches the co-owner/admin/moderator roster.
func (c *Client) Staff(ctx context.Context, opts ...CallOption) (*StaffRoster, error) {
	return fetch[*StaffRoster](ctx, c, "/server/staff", opts)
}

// Vehicles lists spawned vehicles.
func (c *Client) Vehicles(ctx context.Context, opts ...CallOption) ([]Vehicle, error) {
	return fetch[[]Vehicle](ctx, c, "/server/vehicles", opts)
}

// JoinLogs fetches the join/leave log, newest first.
func (c *Client) JoinLogs(ctx context.Context, opts ...CallOption) ([]JoinEntry, error) {
	return fetch[[]JoinEntry](ctx, c, "/server/joinlogs", opts)
}

// KillLogs fetches the kill log, newest first.
func (c *Client) KillLogs(ctx context.Context, opts ...CallOption) ([]KillEntry, error) {
	return fetch[[]KillEntry](ctx, c, "/server/killlogs", opts)
}

// CommandLogs fetches the executed-command log, newest first.
func (c *Client) CommandLogs(ctx context.Context, opts ...CallOption) ([]CommandEntry, error) {
	return fetch[[]CommandEntry](ctx, c, "/server/commandlogs", opts)
}

// ModCalls fetches the moderator-call log, newest first.
func (c *Client) ModCalls(ctx context.Context, opts ...CallOption) ([]ModCallEntry, error) {
	return fetch[[]ModCallEntry](ctx, c, "/server/modcalls", opts)
}

// RunCommand executes a server command, e.g. ":h message". Command calls
// never touch the cache.
func (c *Client) RunCommand(ctx context.Context, command string) error {
	_, err := c.pipeline.Post(ctx, "/server/command", map[string]string{"command": command})
	return err
}

// RateLimit returns the last known window for the global bucket.
func (c *Client) RateLimit() (ratelimit.Window, bool) {
	return c.tracker.Status(ratelimit.GlobalBucket)
}

// CacheStats reports counters for the in-memory backend. It returns false
// for the remote backend, which has no raw introspection.
func (c *Client) CacheStats() (cache.Stats, bool) {
	mem, ok := c.cache.(*cache.Memory)
	if !ok {
		return cache.Stats{}, false
	}
	return mem.Stats(), true
}

// CacheStatus reports the remote backend's connectivity state, or
// StatusDisabled when no remote backend is configured.
func (c *Client) CacheStatus() cache.Status {
	remote, ok := c.cache.(*cache.Redis)
	if !ok {
		return cache.StatusDisabled
	}
	return remote.Status()
}

// QueueStatus reports the pacing queue state; the zero value when pacing is
// disabled.
func (c *Client) QueueStatus() queue.Status {
	if c.queue == nil {
		return queue.Status{}
	}
	return c.queue.Status()
}

// Close releases the queue workers, the cache sweep timer, and any remote
// cache connection. Safe to call more than once.
func (c *Client) Close() error {
	if c.queue != nil {
		c.queue.Stop()
	}
	switch backend := c.cache.(type) {
	case *cache.Memory:
		backend.Close()
	case *cache.Redis:
		return backend.Close()
	}
	return nil
}
