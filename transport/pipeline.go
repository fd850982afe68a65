// Package transport performs logical API calls reliably: rate limit gating,
// per-attempt timeouts, retry with exponential backoff, server-directed 429
// handling, optional pacing through a queue, and optional response caching
// with a stale-on-error fallback.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/patrolkit/patrolkit/apierror"
	"github.com/patrolkit/patrolkit/cache"
	"github.com/patrolkit/patrolkit/queue"
	"github.com/patrolkit/patrolkit/ratelimit"
)

// DefaultBaseURL is the production API endpoint.
const DefaultBaseURL = "https://api.policeroleplay.community/v1"

const (
	defaultTimeout        = 15 * time.Second
	defaultMaxRetries     = 3
	defaultRetryBaseDelay = 500 * time.Millisecond
	defaultRetryMinDelay  = 100 * time.Millisecond
	rateLimitFallback     = 5 * time.Second
)

// Config configures a Pipeline.
type Config struct {
	// ServerKey authenticates every call via the Server-Key header.
	ServerKey string

	// GlobalKey is the optional secondary credential sent in the
	// Authorization header.
	GlobalKey string

	// BaseURL overrides DefaultBaseURL.
	BaseURL string

	// Timeout bounds each individual HTTP attempt, not the whole retry
	// sequence.
	Timeout time.Duration

	// MaxRetries is the retry budget on top of the first attempt.
	MaxRetries int

	// RetryBaseDelay seeds the exponential backoff; RetryMinDelay floors
	// every computed delay.
	RetryBaseDelay time.Duration
	RetryMinDelay  time.Duration

	// Tracker gates calls on the last known rate limit window. Required.
	Tracker *ratelimit.Tracker

	// Cache, when set, serves unexpired GET responses without network
	// activity. StaleIfError additionally falls back to expired entries
	// when a refresh fails. CacheTTL is the default entry lifetime.
	Cache        cache.Cache
	CacheTTL     time.Duration
	StaleIfError bool

	// Queue, when set, paces the whole attempt sequence of every call.
	Queue *queue.Queue

	HTTPClient *http.Client
	Logger     *zap.Logger
}

// CallOptions are per-call overrides.
type CallOptions struct {
	// DisableCache skips both cache lookup and store for this call.
	DisableCache bool

	// CacheTTL overrides the pipeline default when > 0.
	CacheTTL time.Duration
}

// Pipeline issues logical HTTP operations against the remote API.
type Pipeline struct {
	serverKey    string
	globalKey    string
	baseURL      *url.URL
	timeout      time.Duration
	maxRetries   int
	retryBase    time.Duration
	retryMin     time.Duration
	tracker      *ratelimit.Tracker
	cache        cache.Cache
	cacheTTL     time.Duration
	staleIfError bool
	queue        *queue.Queue
	http         *http.Client
	logger       *zap.Logger
}

// New validates cfg and returns a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if strings.TrimSpace(cfg.ServerKey) == "" {
		return nil, fmt.Errorf("server key is required")
	}
	if cfg.Tracker == nil {
		return nil, fmt.Errorf("rate limit tracker is required")
	}

	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	} else if cfg.MaxRetries == 0 {
		cfg.MaxRetries = defaultMaxRetries
	}
	if cfg.RetryBaseDelay <= 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.RetryMinDelay <= 0 {
		cfg.RetryMinDelay = defaultRetryMinDelay
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return &Pipeline{
		serverKey:    cfg.ServerKey,
		globalKey:    cfg.GlobalKey,
		baseURL:      parsed,
		timeout:      cfg.Timeout,
		maxRetries:   cfg.MaxRetries,
		retryBase:    cfg.RetryBaseDelay,
		retryMin:     cfg.RetryMinDelay,
		tracker:      cfg.Tracker,
		cache:        cfg.Cache,
		cacheTTL:     cfg.CacheTTL,
		staleIfError: cfg.StaleIfError,
		queue:        cfg.Queue,
		http:         cfg.HTTPClient,
		logger:       cfg.Logger,
	}, nil
}

// Get performs a read. Unexpired cache hits return without any network
// activity; a stale hit is kept as a fallback and a fresh fetch is still
// attempted.
func (p *Pipeline) Get(ctx context.Context, path string, opts *CallOptions) ([]byte, error) {
	if opts == nil {
		opts = &CallOptions{}
	}
	cacheable := p.cache != nil && !opts.DisableCache

	var staleValue []byte
	haveStale := false

	if cacheable {
		result, err := p.cacheLookup(ctx, path)
		if err != nil {
			// A failing cache backend is treated as a miss for reads.
			p.logger.Warn("cache lookup failed", zap.String("path", path), zap.Error(err))
		} else if result.Found {
			if !result.Stale {
				p.logger.Debug("cache hit", zap.String("path", path))
				return result.Value, nil
			}
			staleValue = result.Value
			haveStale = true
		}
	}

	body, err := p.execute(ctx, http.MethodGet, path, nil)
	if err != nil {
		if cacheable && p.staleIfError && haveStale {
			p.logger.Warn("serving stale cache value after fetch failure",
				zap.String("path", path), zap.Error(err))
			return staleValue, nil
		}
		return nil, err
	}

	if cacheable {
		ttl := p.cacheTTL
		if opts.CacheTTL > 0 {
			ttl = opts.CacheTTL
		}
		if storeErr := p.cache.Set(ctx, path, body, ttl); storeErr != nil {
			p.logger.Warn("cache store failed", zap.String("path", path), zap.Error(storeErr))
		}
	}

	return body, nil
}

// Post performs a mutating call. Writes never read or write the cache.
func (p *Pipeline) Post(ctx context.Context, path string, payload any) ([]byte, error) {
	var body []byte
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		body = encoded
	}
	return p.execute(ctx, http.MethodPost, path, body)
}

// cacheLookup honours the stale-on-error setting: with it enabled, expired
// entries are surfaced (flagged) instead of discarded.
func (p *Pipeline) cacheLookup(ctx context.Context, path string) (cache.Result, error) {
	if p.staleIfError {
		return p.cache.GetStale(ctx, path)
	}
	return p.cache.Get(ctx, path)
}

// execute routes the attempt sequence through the queue when one is
// configured, otherwise runs it inline.
func (p *Pipeline) execute(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	if p.queue == nil {
		return p.attempts(ctx, method, path, body)
	}

	job := p.queue.Enqueue(ctx, func(jobCtx context.Context) (any, error) {
		return p.attempts(jobCtx, method, path, body)
	})
	value, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	result, ok := value.([]byte)
	if !ok {
		return nil, fmt.Errorf("unexpected queue result type %T", value)
	}
	return result, nil
}

// attempts runs the full retry sequence for one logical call.
func (p *Pipeline) attempts(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.retryBase
	bo.RandomizationFactor = 0.125
	bo.Multiplier = 2
	bo.MaxInterval = 30 * time.Second
	bo.MaxElapsedTime = 0
	bo.Reset()

	fullURL := p.resolve(path)

	var lastErr error
	for attempt := 0; attempt <= p.maxRetries; attempt++ {
		if wait, d := p.tracker.Wait(ratelimit.GlobalBucket); wait {
			p.logger.Debug("waiting for rate limit window",
				zap.Duration("wait", d), zap.String("path", path))
			if err := sleepCtx(ctx, d); err != nil {
				return nil, err
			}
		}

		resp, respBody, err := p.attempt(ctx, method, fullURL, body)
		if err != nil {
			lastErr = fmt.Errorf("%s %s: %w", method, path, err)
			if ctx.Err() != nil {
				return nil, lastErr
			}
			if attempt < p.maxRetries && retryableTransport(err) {
				delay := p.nextDelay(bo)
				p.logger.Debug("retrying after transport failure",
					zap.Int("attempt", attempt+1), zap.Duration("delay", delay), zap.Error(err))
				if err := sleepCtx(ctx, delay); err != nil {
					return nil, err
				}
				continue
			}
			return nil, lastErr
		}

		// Rate limit headers are recorded unconditionally, success or
		// not, so subsequent calls see the freshest window.
		p.recordRateLimit(resp)

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return respBody, nil
		}

		apiErr := apierror.FromResponse(method, path, fullURL, resp, respBody)

		if resp.StatusCode == http.StatusTooManyRequests {
			wait := p.rateLimitWait(resp, apiErr)
			p.tracker.Record(ratelimit.GlobalBucket, 0, 0, time.Now().UTC().Add(wait))
			if attempt < p.maxRetries {
				p.logger.Warn("rate limited, honouring server retry hint",
					zap.Duration("wait", wait), zap.String("path", path))
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			return nil, apiErr
		}

		if apiErr.Retryable() && attempt < p.maxRetries {
			delay := p.nextDelay(bo)
			p.logger.Debug("retrying after server error",
				zap.Int("status", resp.StatusCode), zap.Duration("delay", delay))
			if err := sleepCtx(ctx, delay); err != nil {
				return nil, err
			}
			continue
		}

		return nil, apiErr
	}

	return nil, lastErr
}

// attempt performs one bounded HTTP attempt. The timeout applies per
// attempt, independent of prior queueing or backoff time.
func (p *Pipeline) attempt(ctx context.Context, method, fullURL string, body []byte) (*http.Response, []byte, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, method, fullURL, reader)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("Server-Key", p.serverKey)
	if p.globalKey != "" {
		req.Header.Set("Authorization", p.globalKey)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, err
	}
	return resp, respBody, nil
}

func (p *Pipeline) resolve(path string) string {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return p.baseURL.String() + path
	}
	base := *p.baseURL
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	return base.ResolveReference(ref).String()
}

// nextDelay floors the backoff's next interval at the configured minimum.
func (p *Pipeline) nextDelay(bo *backoff.ExponentialBackOff) time.Duration {
	delay := bo.NextBackOff()
	if delay == backoff.Stop || delay < p.retryMin {
		delay = p.retryMin
	}
	return delay
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
