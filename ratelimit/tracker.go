// Package ratelimit tracks server-reported rate limit windows per bucket and
// decides whether a caller must wait before issuing the next request.
package ratelimit

import (
	"sync"
	"time"
)

// GlobalBucket is the single bucket the remote API accounts against. The
// tracker is keyed by bucket anyway so per-resource limits can be added
// without changing callers.
const GlobalBucket = "global"

// Window is the last known rate limit window for one bucket.
type Window struct {
	Bucket    string
	Limit     int
	Remaining int
	Reset     time.Time
}

// Tracker records windows from response headers and 429 replies. Absence of
// a recorded window means no constraint is known and callers never wait.
type Tracker struct {
	// Clock overrides time.Now, for tests.
	Clock func() time.Time

	mu      sync.Mutex
	windows map[string]Window
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{windows: make(map[string]Window)}
}

// Record replaces any prior window for the bucket.
func (t *Tracker) Record(bucket string, limit, remaining int, reset time.Time) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.windows == nil {
		t.windows = make(map[string]Window)
	}
	t.windows[bucket] = Window{
		Bucket:    bucket,
		Limit:     limit,
		Remaining: remaining,
		Reset:     reset,
	}
}

// Wait reports whether the caller should sleep before the next request, and
// for how long. It returns true only when the window is exhausted and its
// reset instant is still in the future.
func (t *Tracker) Wait(bucket string) (bool, time.Duration) {
	if t == nil {
		return false, 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	window, ok := t.windows[bucket]
	if !ok {
		return false, 0
	}
	if window.Remaining > 0 {
		return false, 0
	}

	until := window.Reset.Sub(t.now())
	if until <= 0 {
		return false, 0
	}
	return true, until
}

// Status returns the recorded window for the bucket, if any.
func (t *Tracker) Status(bucket string) (Window, bool) {
	if t == nil {
		return Window{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	window, ok := t.windows[bucket]
	return window, ok
}

// Clear forgets the window for one bucket.
func (t *Tracker) Clear(bucket string) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.windows, bucket)
}

// ClearAll forgets every recorded window.
func (t *Tracker) ClearAll() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windows = make(map[string]Window)
}

func (t *Tracker) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
