package cache

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	defaultMaxItems      = 100
	defaultSweepInterval = time.Minute
)

type memoryEntry struct {
	value     []byte
	createdAt time.Time
	expiresAt time.Time // zero means never
	seq       uint64
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemoryConfig configures a Memory cache.
type MemoryConfig struct {
	// MaxItems bounds the number of live entries. Inserting a new key at
	// capacity evicts the oldest entry by insertion order.
	MaxItems int

	// SweepInterval is the cadence of the background expiry sweep. Zero
	// uses the default; negative disables the sweep entirely.
	SweepInterval time.Duration

	// OnEvict is invoked for entries removed by capacity pressure or the
	// sweep, not for explicit deletes.
	OnEvict func(key string, value []byte)

	Logger *zap.Logger

	// Clock overrides time.Now, for tests.
	Clock func() time.Time
}

// Memory is the bounded in-memory backend. Entries are evicted oldest-first
// by insertion order (overwrites keep the original position).
type Memory struct {
	maxItems int
	onEvict  func(string, []byte)
	logger   *zap.Logger
	clock    func() time.Time

	mu      sync.Mutex
	entries map[string]*memoryEntry
	order   []orderItem
	nextSeq uint64
	stats   Stats

	sweeper  *time.Ticker
	stopCh   chan struct{}
	stopOnce sync.Once
}

type orderItem struct {
	key string
	seq uint64
}

// NewMemory returns a started Memory cache. Close releases the sweep timer.
func NewMemory(cfg MemoryConfig) *Memory {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = defaultMaxItems
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = func() time.Time { return time.Now().UTC() }
	}

	m := &Memory{
		maxItems: cfg.MaxItems,
		onEvict:  cfg.OnEvict,
		logger:   cfg.Logger,
		clock:    cfg.Clock,
		entries:  make(map[string]*memoryEntry),
		stopCh:   make(chan struct{}),
	}

	interval := cfg.SweepInterval
	if interval == 0 {
		interval = defaultSweepInterval
	}
	if interval > 0 {
		m.sweeper = time.NewTicker(interval)
		go m.sweepLoop()
	}

	return m
}

var _ Cache = (*Memory)(nil)

// Get implements Cache. Expired entries are treated as misses and removed.
func (m *Memory) Get(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return Result{}, nil
	}
	if entry.expired(m.clock()) {
		delete(m.entries, key)
		m.stats.Evictions++
		m.stats.Misses++
		return Result{}, nil
	}

	m.stats.Hits++
	return Result{Value: entry.value, Found: true}, nil
}

// GetStale implements Cache. Expired entries come back flagged stale and are
// left in place for the sweep to collect.
func (m *Memory) GetStale(_ context.Context, key string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[key]
	if !ok {
		m.stats.Misses++
		return Result{}, nil
	}

	stale := entry.expired(m.clock())
	if stale {
		m.stats.Stale++
	} else {
		m.stats.Hits++
	}
	return Result{Value: entry.value, Found: true, Stale: stale}, nil
}

// Set implements Cache.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()

	now := m.clock()

	if existing, ok := m.entries[key]; ok {
		existing.value = value
		existing.createdAt = now
		existing.expiresAt = expiry(now, ttl)
		m.stats.Sets++
		m.mu.Unlock()
		return nil
	}

	var evictedKey string
	var evictedValue []byte
	evictedAny := false
	if len(m.entries) >= m.maxItems {
		evictedKey, evictedValue, evictedAny = m.evictOldestLocked()
	}

	m.nextSeq++
	m.entries[key] = &memoryEntry{
		value:     value,
		createdAt: now,
		expiresAt: expiry(now, ttl),
		seq:       m.nextSeq,
	}
	m.order = append(m.order, orderItem{key: key, seq: m.nextSeq})
	m.stats.Sets++
	m.mu.Unlock()

	if evictedAny && m.onEvict != nil {
		m.onEvict(evictedKey, evictedValue)
	}
	return nil
}

// Delete implements Cache. Explicit deletes do not fire the eviction callback.
func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.stats.Deletes++
	}
	return nil
}

// Clear implements Cache.
func (m *Memory) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stats.Deletes += uint64(len(m.entries))
	m.entries = make(map[string]*memoryEntry)
	m.order = nil
	return nil
}

// Len implements Cache.
func (m *Memory) Len(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries), nil
}

// Stats returns a snapshot of the counters.
func (m *Memory) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.stats
	snapshot.Size = len(m.entries)
	return snapshot
}

// Entry is a raw view of one live entry, for introspection. Only the memory
// backend supports this.
type Entry struct {
	Value     []byte
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Entries returns a copy of all live entries keyed by cache key.
func (m *Memory) Entries() map[string]Entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[string]Entry, len(m.entries))
	for key, entry := range m.entries {
		out[key] = Entry{Value: entry.value, CreatedAt: entry.createdAt, ExpiresAt: entry.expiresAt}
	}
	return out
}

// Close stops the background sweep. Safe to call more than once.
func (m *Memory) Close() {
	m.stopOnce.Do(func() {
		close(m.stopCh)
		if m.sweeper != nil {
			m.sweeper.Stop()
		}
	})
}

// evictOldestLocked removes the single oldest surviving entry and returns it
// so the caller can fire the eviction callback outside the lock. Order items
// whose seq no longer matches a live entry are skipped and dropped.
func (m *Memory) evictOldestLocked() (string, []byte, bool) {
	for len(m.order) > 0 {
		item := m.order[0]
		m.order = m.order[1:]

		entry, ok := m.entries[item.key]
		if !ok || entry.seq != item.seq {
			continue
		}

		delete(m.entries, item.key)
		m.stats.Evictions++
		return item.key, entry.value, true
	}
	return "", nil, false
}

func (m *Memory) sweepLoop() {
	for {
		select {
		case <-m.stopCh:
			return
		case <-m.sweeper.C:
			m.sweep()
		}
	}
}

// sweep removes every expired entry, counting each as an eviction. This
// bounds memory even when expired keys are never looked up again.
func (m *Memory) sweep() {
	m.mu.Lock()

	now := m.clock()
	var evicted []orderItem
	var values [][]byte
	for key, entry := range m.entries {
		if entry.expired(now) {
			delete(m.entries, key)
			m.stats.Evictions++
			evicted = append(evicted, orderItem{key: key, seq: entry.seq})
			values = append(values, entry.value)
		}
	}
	m.compactLocked()
	swept := len(evicted)
	onEvict := m.onEvict
	m.mu.Unlock()

	if swept > 0 {
		m.logger.Debug("cache sweep removed expired entries", zap.Int("count", swept))
	}
	if onEvict != nil {
		for i, item := range evicted {
			onEvict(item.key, values[i])
		}
	}
}

// compactLocked rebuilds the order slice once dead items dominate it, so the
// slice does not retain consumed slots indefinitely.
func (m *Memory) compactLocked() {
	if len(m.order) <= 2*len(m.entries)+16 {
		return
	}

	live := m.order[:0]
	for _, item := range m.order {
		if entry, ok := m.entries[item.key]; ok && entry.seq == item.seq {
			live = append(live, item)
		}
	}
	m.order = live
}

func expiry(now time.Time, ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return now.Add(ttl)
}
