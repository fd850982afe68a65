package events

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/patrolkit/patrolkit"
)

// fakeSource serves mutable snapshots and counts fetches.
type fakeSource struct {
	mu       sync.Mutex
	players  []patrolkit.Player
	queue    []int64
	vehicles []patrolkit.Vehicle
	commands []patrolkit.CommandEntry
	kills    []patrolkit.KillEntry
	joins    []patrolkit.JoinEntry
	modCalls []patrolkit.ModCallEntry
	err      error
	polls    int
}

func (s *fakeSource) set(mutate func(*fakeSource)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	mutate(s)
}

func (s *fakeSource) snapshotErr() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.polls++
	return s.err
}

func (s *fakeSource) Players(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.Player, error) {
	if err := s.snapshotErr(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]patrolkit.Player(nil), s.players...), nil
}

func (s *fakeSource) QueuedPlayers(ctx context.Context, opts ...patrolkit.CallOption) ([]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]int64(nil), s.queue...), nil
}

func (s *fakeSource) Vehicles(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]patrolkit.Vehicle(nil), s.vehicles...), nil
}

func (s *fakeSource) CommandLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.CommandEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]patrolkit.CommandEntry(nil), s.commands...), nil
}

func (s *fakeSource) KillLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.KillEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]patrolkit.KillEntry(nil), s.kills...), nil
}

func (s *fakeSource) JoinLogs(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.JoinEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]patrolkit.JoinEntry(nil), s.joins...), nil
}

func (s *fakeSource) ModCalls(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.ModCallEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	return append([]patrolkit.ModCallEntry(nil), s.modCalls...), nil
}

// recorder collects dispatched events under a lock.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) add(evt Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
}

func (r *recorder) all() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func (r *recorder) handlers() Handlers {
	return Handlers{
		PlayerJoined: func(p patrolkit.Player) {
			r.add(Event{Kind: KindPlayers, Player: &p})
		},
		PlayerLeft: func(p patrolkit.Player) {
			r.add(Event{Kind: KindPlayers, Departed: true, Player: &p})
		},
		QueueJoined: func(id int64) {
			r.add(Event{Kind: KindQueue, QueueID: &id})
		},
		QueueLeft: func(id int64) {
			r.add(Event{Kind: KindQueue, Departed: true, QueueID: &id})
		},
		VehicleSpawned: func(v patrolkit.Vehicle) {
			r.add(Event{Kind: KindVehicles, Vehicle: &v})
		},
		VehicleDespawned: func(v patrolkit.Vehicle) {
			r.add(Event{Kind: KindVehicles, Departed: true, Vehicle: &v})
		},
		Command: func(e patrolkit.CommandEntry) {
			r.add(Event{Kind: KindCommands, Command: &e})
		},
		Kill: func(e patrolkit.KillEntry) {
			r.add(Event{Kind: KindKills, Kill: &e})
		},
		Join: func(e patrolkit.JoinEntry) {
			r.add(Event{Kind: KindJoins, Join: &e})
		},
		ModCall: func(e patrolkit.ModCallEntry) {
			r.add(Event{Kind: KindModCalls, ModCall: &e})
		},
	}
}

func player(name string, id int64, team string) patrolkit.Player {
	return patrolkit.Player{Player: name + ":" + strconv.FormatInt(id, 10), Team: team}
}

func TestEngineRequiresSource(t *testing.T) {
	_, err := NewEngine(Config{})
	require.Error(t, err)
}

func TestDiffPresenceArrivalsAndDepartures(t *testing.T) {
	e, err := NewEngine(Config{
		Source: &fakeSource{},
		Kinds:  []Kind{KindPlayers, KindQueue, KindVehicles},
	})
	require.NoError(t, err)

	first := &snapshot{
		players:  []patrolkit.Player{player("Alice", 1, "Police"), player("Bob", 2, "Civilian")},
		queue:    []int64{7},
		vehicles: []patrolkit.Vehicle{{Name: "Falcon", Owner: "Alice:1"}},
	}
	evts := e.diffLocked(first)
	require.Len(t, evts, 4)
	for _, evt := range evts {
		require.False(t, evt.Departed)
	}

	second := &snapshot{
		players:  []patrolkit.Player{player("Bob", 2, "Civilian"), player("Cara", 3, "Fire")},
		queue:    []int64{},
		vehicles: []patrolkit.Vehicle{{Name: "Falcon", Owner: "Alice:1"}},
	}
	evts = e.diffLocked(second)
	require.Len(t, evts, 3)

	var arrived, departed []Event
	for _, evt := range evts {
		if evt.Departed {
			departed = append(departed, evt)
		} else {
			arrived = append(arrived, evt)
		}
	}
	require.Len(t, arrived, 1)
	require.Equal(t, KindPlayers, arrived[0].Kind)
	require.Equal(t, "Cara", arrived[0].Player.Name())
	require.Len(t, departed, 2)
	require.Equal(t, "Alice", departed[0].Player.Name())
	require.Equal(t, int64(7), *departed[1].QueueID)
}

func TestDiffLogBaselinesThenEmits(t *testing.T) {
	e, err := NewEngine(Config{
		Source:       &fakeSource{},
		Kinds:        []Kind{KindCommands},
		PollInterval: 5 * time.Second,
	})
	require.NoError(t, err)

	history := []patrolkit.CommandEntry{
		{Player: "Alice:1", Timestamp: 2000, Command: ":h old"},
		{Player: "Alice:1", Timestamp: 1000, Command: ":m older"},
	}
	evts := e.diffLocked(&snapshot{commands: history})
	require.Empty(t, evts, "first poll must not replay history")

	next := append([]patrolkit.CommandEntry{
		{Player: "Bob:2", Timestamp: 2010, Command: ":kick Cara"},
		{Player: "Bob:2", Timestamp: 2005, Command: ":h hi"},
	}, history...)
	evts = e.diffLocked(&snapshot{commands: next})
	require.Len(t, evts, 2)
	require.Equal(t, ":h hi", evts[0].Command.Command, "new records arrive oldest first")
	require.Equal(t, ":kick Cara", evts[1].Command.Command)

	evts = e.diffLocked(&snapshot{commands: next})
	require.Empty(t, evts, "unchanged log emits nothing")
}

func TestDiffLogSameSecondRecordEmittedOnce(t *testing.T) {
	e, err := NewEngine(Config{
		Source:       &fakeSource{},
		Kinds:        []Kind{KindKills},
		PollInterval: 10 * time.Second,
	})
	require.NoError(t, err)

	base := []patrolkit.KillEntry{{Killer: "Alice:1", Killed: "Bob:2", Timestamp: 5000}}
	require.Empty(t, e.diffLocked(&snapshot{kills: base}))

	// A second kill lands in the very second the cursor already points at.
	same := append([]patrolkit.KillEntry{{Killer: "Cara:3", Killed: "Dan:4", Timestamp: 5000}}, base...)
	evts := e.diffLocked(&snapshot{kills: same})
	require.Len(t, evts, 1)
	require.Equal(t, "Cara:3", evts[0].Kill.Killer)

	require.Empty(t, e.diffLocked(&snapshot{kills: same}))
	require.Empty(t, e.diffLocked(&snapshot{kills: same}))
}

func TestAdvanceIgnoresRecordsBelowLookback(t *testing.T) {
	cur := &logCursor{}
	ts := func(e patrolkit.JoinEntry) int64 { return e.Timestamp }

	baseline(cur, []patrolkit.JoinEntry{{Player: "A:1", Timestamp: 100, Join: true}}, ts, joinKey, 2)

	// 50 is far below hwm-lookback and must be treated as already handled.
	stale := []patrolkit.JoinEntry{
		{Player: "A:1", Timestamp: 100, Join: true},
		{Player: "B:2", Timestamp: 50, Join: true},
	}
	require.Empty(t, advance(cur, stale, ts, joinKey, 2))
}

func TestEnginePollingDispatchesHandlers(t *testing.T) {
	source := &fakeSource{players: []patrolkit.Player{player("Alice", 1, "Police")}}
	rec := &recorder{}

	e, err := NewEngine(Config{
		Source:         source,
		Kinds:          []Kind{KindPlayers},
		PollInterval:   20 * time.Millisecond,
		IncludeInitial: true,
	})
	require.NoError(t, err)
	e.On(rec.handlers())

	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()
	require.True(t, e.Running())

	// Seeded: the initial roster must not produce events.
	time.Sleep(60 * time.Millisecond)
	require.Empty(t, rec.all())

	source.set(func(s *fakeSource) {
		s.players = append(s.players, player("Bob", 2, "Civilian"))
	})

	require.Eventually(t, func() bool {
		evts := rec.all()
		return len(evts) == 1 && evts[0].Player.Name() == "Bob" && !evts[0].Departed
	}, 2*time.Second, 10*time.Millisecond)

	source.set(func(s *fakeSource) {
		s.players = s.players[1:]
	})

	require.Eventually(t, func() bool {
		evts := rec.all()
		return len(evts) == 2 && evts[1].Departed && evts[1].Player.Name() == "Alice"
	}, 2*time.Second, 10*time.Millisecond)
}

// slowSource stalls every Players fetch and records how many are running
// at once.
type slowSource struct {
	fakeSource
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func (s *slowSource) Players(ctx context.Context, opts ...patrolkit.CallOption) ([]patrolkit.Player, error) {
	current := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		seen := s.maxInFlight.Load()
		if current <= seen || s.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	time.Sleep(s.delay)
	return s.fakeSource.Players(ctx)
}

func TestEngineSkipsTicksWhilePollInFlight(t *testing.T) {
	source := &slowSource{delay: 80 * time.Millisecond}
	source.players = []patrolkit.Player{player("Alice", 1, "Police")}

	e, err := NewEngine(Config{
		Source:       source,
		Kinds:        []Kind{KindPlayers},
		PollInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))

	// Many timer firings land while each 80ms poll is unresolved; all of
	// them must be no-ops.
	time.Sleep(400 * time.Millisecond)
	e.Stop()

	require.Equal(t, int32(1), source.maxInFlight.Load(),
		"a timer firing during an unresolved poll must not start a second one")
}

func TestEngineOutlivesStartContext(t *testing.T) {
	source := &fakeSource{}
	rec := &recorder{}

	e, err := NewEngine(Config{
		Source:       source,
		Kinds:        []Kind{KindPlayers},
		PollInterval: 15 * time.Millisecond,
	})
	require.NoError(t, err)
	e.On(rec.handlers())

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, e.Start(ctx))
	defer e.Stop()

	cancel()

	// The poll loop is bound to Stop, not to the Start context.
	source.set(func(s *fakeSource) {
		s.players = []patrolkit.Player{player("Alice", 1, "Police")}
	})
	require.Eventually(t, func() bool {
		return len(rec.all()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	require.True(t, e.Running())
}

func TestEngineErrorCooldown(t *testing.T) {
	source := &fakeSource{err: errors.New("origin down")}

	var mu sync.Mutex
	var failures int

	e, err := NewEngine(Config{
		Source:        source,
		Kinds:         []Kind{KindPlayers},
		PollInterval:  15 * time.Millisecond,
		RetryOnError:  true,
		RetryInterval: time.Hour,
		OnError: func(error) {
			mu.Lock()
			failures++
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return failures >= 1
	}, 2*time.Second, 5*time.Millisecond)

	// The hour-long cooldown holds every later tick back.
	time.Sleep(100 * time.Millisecond)
	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, 1, failures)
}

func TestEngineSeedFailureSurfaces(t *testing.T) {
	source := &fakeSource{err: errors.New("boom")}
	e, err := NewEngine(Config{
		Source:         source,
		Kinds:          []Kind{KindPlayers},
		IncludeInitial: true,
	})
	require.NoError(t, err)

	require.Error(t, e.Start(context.Background()))
	require.False(t, e.Running())
}

func TestEngineFilterDropsEvents(t *testing.T) {
	source := &fakeSource{players: []patrolkit.Player{player("Alice", 1, "Police")}}
	e, err := NewEngine(Config{
		Source: source,
		Kinds:  []Kind{KindPlayers},
		Filter: func(evt Event) bool { return !evt.Departed },
	})
	require.NoError(t, err)

	rec := &recorder{}
	e.On(rec.handlers())

	require.NoError(t, e.poll(context.Background()))
	source.set(func(s *fakeSource) { s.players = nil })
	require.NoError(t, e.poll(context.Background()))

	evts := rec.all()
	require.Len(t, evts, 1, "the departure must be filtered out")
	require.False(t, evts[0].Departed)
}

func TestEngineStopIdempotentAndRestartable(t *testing.T) {
	source := &fakeSource{players: []patrolkit.Player{player("Alice", 1, "Police")}}
	e, err := NewEngine(Config{
		Source:         source,
		Kinds:          []Kind{KindPlayers},
		PollInterval:   10 * time.Millisecond,
		IncludeInitial: true,
	})
	require.NoError(t, err)

	require.NoError(t, e.Start(context.Background()))
	e.Stop()
	e.Stop()
	require.False(t, e.Running())

	// Observed state survives the stop, so a restart does not re-announce
	// Alice.
	rec := &recorder{}
	e.On(rec.handlers())
	require.NoError(t, e.Start(context.Background()))
	defer e.Stop()

	time.Sleep(50 * time.Millisecond)
	require.Empty(t, rec.all())
}

func TestHandlersMergeLastWriterWins(t *testing.T) {
	var got []string
	h := Handlers{}
	mergeHandlers(&h, Handlers{
		PlayerJoined: func(patrolkit.Player) { got = append(got, "first") },
		PlayerLeft:   func(patrolkit.Player) { got = append(got, "left") },
	})
	mergeHandlers(&h, Handlers{
		PlayerJoined: func(patrolkit.Player) { got = append(got, "second") },
	})

	h.PlayerJoined(patrolkit.Player{})
	h.PlayerLeft(patrolkit.Player{})
	require.Equal(t, []string{"second", "left"}, got)
}
