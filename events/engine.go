// Package events emulates real-time change notifications over the plain
// request/response API. An Engine polls snapshots of tracked resource kinds
// on a fixed interval, diffs them against the last observed state, and
// dispatches discrete change events to registered handlers.
package events

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/patrolkit/patrolkit"
)

// Kind identifies one tracked resource kind.
type Kind string

const (
	// Presence-style kinds: diffs produce arrived/departed events.
	KindPlayers  Kind = "players"
	KindQueue    Kind = "queue"
	KindVehicles Kind = "vehicles"

	// Log-style kinds: diffs produce new-record events past a high-water
	// mark.
	KindCommands Kind = "commands"
	KindKills    Kind = "kills"
	KindJoins    Kind = "joins"
	KindModCalls Kind = "modcalls"
)

// dispatchOrder fixes the order kinds are diffed and dispatched in.
var dispatchOrder = []Kind{
	KindPlayers, KindQueue, KindVehicles,
	KindCommands, KindKills, KindJoins, KindModCalls,
}

// Source provides the snapshots the engine polls. *patrolkit.Client
// satisfies it.
type Source interface {
	Players(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.Player, error)
	QueuedPlayers(ctx context.Context, opts ...patrolkit.CallOption) ([]int64, error)
	Vehicles(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.Vehicle, error)
	CommandLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.CommandEntry, error)
	KillLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.KillEntry, error)
	JoinLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.JoinEntry, error)
	ModCalls(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.ModCallEntry, error)
}

// Event is one discrete change. Exactly one payload pointer is set,
// matching Kind; Departed distinguishes the direction of presence changes.
type Event struct {
	Kind     Kind
	Departed bool

	Player   *patrolkit.Player
	QueueID  *int64
	Vehicle  *patrolkit.Vehicle
	Command  *patrolkit.CommandEntry
	Kill     *patrolkit.KillEntry
	Join     *patrolkit.JoinEntry
	ModCall  *patrolkit.ModCallEntry
}

// Handlers receives dispatched events. Nil fields are skipped. Registering
// a second Handlers value replaces fields last-writer-wins: only non-nil
// fields overwrite.
type Handlers struct {
	PlayerJoined     func(patrolkit.Player)
	PlayerLeft       func(patrolkit.Player)
	QueueJoined      func(int64)
	QueueLeft        func(int64)
	VehicleSpawned   func(patrolkit.Vehicle)
	VehicleDespawned func(patrolkit.Vehicle)
	Command          func(patrolkit.CommandEntry)
	Kill             func(patrolkit.KillEntry)
	Join             func(patrolkit.JoinEntry)
	ModCall          func(patrolkit.ModCallEntry)
}

// Config configures an Engine.
type Config struct {
	// Source provides snapshots. Required.
	Source Source

	// Kinds selects what to track. Empty tracks everything.
	Kinds []Kind

	// PollInterval is the timer cadence, defaulting to 5s.
	PollInterval time.Duration

	// IncludeInitial seeds the observed state with one synchronous
	// snapshot per kind before the timer starts, so the first poll only
	// reports genuinely new changes.
	IncludeInitial bool

	// RetryOnError holds polling in a cooldown of RetryInterval after a
	// failed cycle instead of hammering a broken origin. RetryInterval
	// defaults to twice the poll interval.
	RetryOnError  bool
	RetryInterval time.Duration

	// Filter drops events before dispatch when it returns false.
	Filter func(Event) bool

	// OnError observes polling-cycle failures. The timer keeps running.
	OnError func(error)

	Logger *zap.Logger
}

// Engine is the polling change detector. One instance owns its observed
// state exclusively; at most one poll cycle is in flight at any time.
type Engine struct {
	source        Source
	kinds         []Kind
	interval      time.Duration
	includeSeed   bool
	retryOnError  bool
	retryInterval time.Duration
	filter        func(Event) bool
	onError       func(error)
	logger        *zap.Logger
	handlers      Handlers

	mu            sync.Mutex
	running       bool
	inFlight      bool
	cooldownUntil time.Time
	cancel        context.CancelFunc
	doneCh        chan struct{}
	state         observedState
}

// observedState is the last snapshot per tracked kind: identity sets for
// presence kinds, timestamp cursors for log kinds.
type observedState struct {
	players  map[string]patrolkit.Player
	queue    map[int64]struct{}
	vehicles map[string]patrolkit.Vehicle

	commands logCursor
	kills    logCursor
	joins    logCursor
	modCalls logCursor
}

// NewEngine validates cfg and returns a stopped engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Source == nil {
		return nil, errors.New("event source is required")
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 2 * cfg.PollInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	kinds := cfg.Kinds
	if len(kinds) == 0 {
		kinds = dispatchOrder
	}

	return &Engine{
		source:        cfg.Source,
		kinds:         kinds,
		interval:      cfg.PollInterval,
		includeSeed:   cfg.IncludeInitial,
		retryOnError:  cfg.RetryOnError,
		retryInterval: cfg.RetryInterval,
		filter:        cfg.Filter,
		onError:       cfg.OnError,
		logger:        cfg.Logger,
	}, nil
}

// On registers handlers. Non-nil fields replace previously registered ones.
func (e *Engine) On(h Handlers) {
	e.mu.Lock()
	defer e.mu.Unlock()
	mergeHandlers(&e.handlers, h)
}

// Start seeds state if configured and begins the poll timer. Starting a
// running engine is a no-op.
//
// ctx bounds the initial seeding only; the poll loop keeps running after
// ctx ends and stops on Stop or Close.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = true
	e.inFlight = false
	e.cooldownUntil = time.Time{}
	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel
	e.doneCh = make(chan struct{})
	e.mu.Unlock()

	if e.includeSeed {
		if err := e.seed(ctx); err != nil {
			// The loop has not started yet, so unwind directly instead of
			// going through Stop, which waits for it.
			e.mu.Lock()
			e.running = false
			e.cancel = nil
			e.doneCh = nil
			e.mu.Unlock()
			cancel()
			return err
		}
	}

	go e.loop(pollCtx)
	e.logger.Debug("event engine started", zap.Duration("interval", e.interval))
	return nil
}

// Stop cancels the timer and resets in-flight and cooldown bookkeeping.
// Observed state is kept, so a later Start resumes from it. Idempotent.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel := e.cancel
	done := e.doneCh
	e.inFlight = false
	e.cooldownUntil = time.Time{}
	e.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
	e.logger.Debug("event engine stopped")
}

// Close is an alias for Stop, for callers treating the engine as an owned
// resource.
func (e *Engine) Close() { e.Stop() }

// Running reports whether the poll timer is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

func (e *Engine) loop(ctx context.Context) {
	defer close(e.doneCh)

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick(ctx)
		}
	}
}

// tick runs one timer firing. It is a no-op when the engine is stopped, a
// previous poll is still in flight, or an error cooldown has not elapsed.
func (e *Engine) tick(ctx context.Context) {
	e.mu.Lock()
	if !e.running || e.inFlight || time.Now().Before(e.cooldownUntil) {
		e.mu.Unlock()
		return
	}
	e.inFlight = true
	e.mu.Unlock()

	err := e.poll(ctx)

	e.mu.Lock()
	e.inFlight = false
	if err != nil && e.retryOnError {
		e.cooldownUntil = time.Now().Add(e.retryInterval)
	}
	e.mu.Unlock()

	if err != nil {
		e.logger.Warn("poll cycle failed", zap.Error(err))
		if e.onError != nil {
			e.onError(err)
		}
	}
}

func (e *Engine) tracks(kind Kind) bool {
	for _, k := range e.kinds {
		if k == kind {
			return true
		}
	}
	return false
}

func mergeHandlers(dst *Handlers, src Handlers) {
	if src.PlayerJoined != nil {
		dst.PlayerJoined = src.PlayerJoined
	}
	if src.PlayerLeft != nil {
		dst.PlayerLeft = src.PlayerLeft
	}
	if src.QueueJoined != nil {
		dst.QueueJoined = src.QueueJoined
	}
	if src.QueueLeft != nil {
		dst.QueueLeft = src.QueueLeft
	}
	if src.VehicleSpawned != nil {
		dst.VehicleSpawned = src.VehicleSpawned
	}
	if src.VehicleDespawned != nil {
		dst.VehicleDespawned = src.VehicleDespawned
	}
	if src.Command != nil {
		dst.Command = src.Command
	}
	if src.Kill != nil {
		dst.Kill = src.Kill
	}
	if src.Join != nil {
		dst.Join = src.Join
	}
	if src.ModCall != nil {
		dst.ModCall = src.ModCall
	}
}

// snapshot is one poll cycle's fetched data for the tracked kinds.
type snapshot struct {
	players  []patrolkit.Player
	queue    []int64
	vehicles []patrolkit.Vehicle
	commands []patrolkit.CommandEntry
	kills    []patrolkit.KillEntry
	joins    []patrolkit.JoinEntry
	modCalls []patrolkit.ModCallEntry
}

// fetch pulls every tracked kind concurrently. Any failure fails the cycle.
func (e *Engine) fetch(ctx context.Context) (*snapshot, error) {
	snap := &snapshot{}
	group, groupCtx := errgroup.WithContext(ctx)

	if e.tracks(KindPlayers) {
		group.Go(func() error {
			players, err := e.source.Players(groupCtx)
			snap.players = players
			return err
		})
	}
	if e.tracks(KindQueue) {
		group.Go(func() error {
			queue, err := e.source.QueuedPlayers(groupCtx)
			snap.queue = queue
			return err
		})
	}
	if e.tracks(KindVehicles) {
		group.Go(func() error {
			vehicles, err := e.source.Vehicles(groupCtx)
			snap.vehicles = vehicles
			return err
		})
	}
	if e.tracks(KindCommands) {
		group.Go(func() error {
			commands, err := e.source.CommandLogs(groupCtx)
			snap.commands = commands
			return err
		})
	}
	if e.tracks(KindKills) {
		group.Go(func() error {
			kills, err := e.source.KillLogs(groupCtx)
			snap.kills = kills
			return err
		})
	}
	if e.tracks(KindJoins) {
		group.Go(func() error {
			joins, err := e.source.JoinLogs(groupCtx)
			snap.joins = joins
			return err
		})
	}
	if e.tracks(KindModCalls) {
		group.Go(func() error {
			modCalls, err := e.source.ModCalls(groupCtx)
			snap.modCalls = modCalls
			return err
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}
	return snap, nil
}

// seed fetches one snapshot per kind and records it without emitting
// events.
func (e *Engine) seed(ctx context.Context) error {
	snap, err := e.fetch(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	lookback := e.lookback()
	e.state.players = playerSet(snap.players)
	e.state.queue = queueSet(snap.queue)
	e.state.vehicles = vehicleSet(snap.vehicles)
	baseline(&e.state.commands, snap.commands, commandTS, commandKey, lookback)
	baseline(&e.state.kills, snap.kills, killTS, killKey, lookback)
	baseline(&e.state.joins, snap.joins, joinTS, joinKey, lookback)
	baseline(&e.state.modCalls, snap.modCalls, modCallTS, modCallKey, lookback)
	return nil
}

// lookback is how far behind the high-water mark the log diff still
// inspects, in seconds. Log timestamps have second resolution, so a record
// landing in the same second as the mark would otherwise be lost.
func (e *Engine) lookback() int64 {
	secs := int64(e.interval / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}

// poll fetches snapshots, computes deltas and dispatches surviving events
// in the fixed kind order.
func (e *Engine) poll(ctx context.Context) error {
	snap, err := e.fetch(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	evts := e.diffLocked(snap)
	handlers := e.handlers
	filter := e.filter
	e.mu.Unlock()

	for _, evt := range evts {
		if filter != nil && !filter(evt) {
			continue
		}
		dispatch(handlers, evt)
	}
	return nil
}

func dispatch(h Handlers, evt Event) {
	switch evt.Kind {
	case KindPlayers:
		if evt.Departed {
			if h.PlayerLeft != nil {
				h.PlayerLeft(*evt.Player)
			}
		} else if h.PlayerJoined != nil {
			h.PlayerJoined(*evt.Player)
		}
	case KindQueue:
		if evt.Departed {
			if h.QueueLeft != nil {
				h.QueueLeft(*evt.QueueID)
			}
		} else if h.QueueJoined != nil {
			h.QueueJoined(*evt.QueueID)
		}
	case KindVehicles:
		if evt.Departed {
			if h.VehicleDespawned != nil {
				h.VehicleDespawned(*evt.Vehicle)
			}
		} else if h.VehicleSpawned != nil {
			h.VehicleSpawned(*evt.Vehicle)
		}
	case KindCommands:
		if h.Command != nil {
			h.Command(*evt.Command)
		}
	case KindKills:
		if h.Kill != nil {
			h.Kill(*evt.Kill)
		}
	case KindJoins:
		if h.Join != nil {
			h.Join(*evt.Join)
		}
	case KindModCalls:
		if h.ModCall != nil {
			h.ModCall(*evt.ModCall)
		}
	}
}
