package transport

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"syscall"
	"time"

	"github.com/patrolkit/patrolkit/apierror"
	"github.com/patrolkit/patrolkit/ratelimit"
)

// retryableTransport classifies transport-level failures. Connection resets,
// refusals, timeouts, DNS failures and generic client-layer failures are
// transient; caller cancellation never is.
func retryableTransport(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

// recordRateLimit captures X-RateLimit-* headers into the tracker whenever
// they are present, regardless of response status.
func (p *Pipeline) recordRateLimit(resp *http.Response) {
	if resp == nil {
		return
	}

	remainingHeader := resp.Header.Get("X-RateLimit-Remaining")
	if remainingHeader == "" {
		return
	}
	remaining, err := strconv.Atoi(remainingHeader)
	if err != nil {
		return
	}

	limit, _ := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit"))

	reset := time.Now().UTC()
	if epoch, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && epoch > 0 {
		reset = time.Unix(epoch, 0).UTC()
	}

	p.tracker.Record(ratelimit.GlobalBucket, limit, remaining, reset)
}

// rateLimitWait resolves the wait for a 429, in priority order: the JSON
// retry_after field, the Retry-After header (seconds or HTTP date), the
// rate limit reset header, then a fixed fallback.
func (p *Pipeline) rateLimitWait(resp *http.Response, apiErr *apierror.Error) time.Duration {
	if apiErr != nil && apiErr.RetryAfter > 0 {
		return apiErr.RetryAfter
	}

	if d := retryAfterHeader(resp); d > 0 {
		return d
	}

	if epoch, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil && epoch > 0 {
		if d := time.Until(time.Unix(epoch, 0)); d > 0 {
			return d
		}
	}

	return rateLimitFallback
}

// retryAfterHeader parses a Retry-After header, which carries either a
// number of seconds or an HTTP date.
func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := resp.Header.Get("Retry-After")
	if retry == "" {
		return 0
	}

	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}

	return 0
}
