// Package cache provides response caching for API calls behind one contract
// with two interchangeable backends: a bounded in-memory store and a
// Redis-backed remote store.
package cache

import (
	"context"
	"time"
)

// Result is the outcome of a lookup. Stale is only ever true for GetStale.
type Result struct {
	Value []byte
	Found bool
	Stale bool
}

// Cache is the contract shared by both backends. Callers can swap the
// backing store without changing call sites. Remote backends may fail with
// connectivity errors; treating those as misses is the caller's decision.
type Cache interface {
	// Get returns a non-expired entry. Expired entries are misses.
	Get(ctx context.Context, key string) (Result, error)

	// GetStale returns the entry even when expired, flagged Stale, without
	// deleting it. Used for the serve-stale-on-error fallback path.
	GetStale(ctx context.Context, key string) (Result, error)

	// Set stores a value. ttl <= 0 means the entry never expires.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes one entry.
	Delete(ctx context.Context, key string) error

	// Clear removes every entry.
	Clear(ctx context.Context) error

	// Len reports the number of live entries.
	Len(ctx context.Context) (int, error)
}

// Stats are cumulative counters for one backend instance. Hits counts
// fresh servings only; expired entries returned by GetStale count as Stale.
type Stats struct {
	Hits      uint64
	Stale     uint64
	Misses    uint64
	Sets      uint64
	Deletes   uint64
	Evictions uint64
	Size      int
}

// HitRate is the share of lookups served fresh, or 0 when nothing has been
// observed. Stale servings depress the rate like misses do.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Stale + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
