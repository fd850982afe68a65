package events

import (
	"sort"
	"strconv"

	"github.com/patrolkit/patrolkit"
)

// logCursor tracks how far into a log the engine has read. hwm is the
// newest timestamp already handled; seen dedupes records inside the
// look-back window, keyed by record identity.
type logCursor struct {
	seeded bool
	hwm    int64
	seen   map[string]struct{}
}

// baseline records the current tail of a log without emitting anything.
func baseline[T any](cur *logCursor, records []T, ts func(T) int64, key func(T) string, lookback int64) {
	cur.seeded = true
	cur.hwm = 0
	cur.seen = make(map[string]struct{})
	for _, rec := range records {
		if t := ts(rec); t > cur.hwm {
			cur.hwm = t
		}
	}
	for _, rec := range records {
		if ts(rec) >= cur.hwm-lookback {
			cur.seen[key(rec)] = struct{}{}
		}
	}
}

// advance returns the records past the cursor in chronological order and
// moves the cursor forward. Records landing at or just behind the
// high-water mark are caught by the seen set, so same-second arrivals are
// emitted exactly once.
func advance[T any](cur *logCursor, records []T, ts func(T) int64, key func(T) string, lookback int64) []T {
	if !cur.seeded {
		baseline(cur, records, ts, key, lookback)
		return nil
	}

	var fresh []T
	newHWM := cur.hwm
	for _, rec := range records {
		t := ts(rec)
		if t < cur.hwm-lookback {
			continue
		}
		if _, ok := cur.seen[key(rec)]; ok {
			continue
		}
		fresh = append(fresh, rec)
		if t > newHWM {
			newHWM = t
		}
	}

	sort.SliceStable(fresh, func(i, j int) bool { return ts(fresh[i]) < ts(fresh[j]) })

	cur.hwm = newHWM
	seen := make(map[string]struct{})
	for _, rec := range records {
		if ts(rec) >= cur.hwm-lookback {
			seen[key(rec)] = struct{}{}
		}
	}
	cur.seen = seen
	return fresh
}

func commandTS(e patrolkit.CommandEntry) int64 { return e.Timestamp }
func killTS(e patrolkit.KillEntry) int64       { return e.Timestamp }
func joinTS(e patrolkit.JoinEntry) int64       { return e.Timestamp }
func modCallTS(e patrolkit.ModCallEntry) int64 { return e.Timestamp }

func commandKey(e patrolkit.CommandEntry) string {
	return strconv.FormatInt(e.Timestamp, 10) + "\x00" + e.Player + "\x00" + e.Command
}

func killKey(e patrolkit.KillEntry) string {
	return strconv.FormatInt(e.Timestamp, 10) + "\x00" + e.Killer + "\x00" + e.Killed
}

func joinKey(e patrolkit.JoinEntry) string {
	return strconv.FormatInt(e.Timestamp, 10) + "\x00" + e.Player + "\x00" + strconv.FormatBool(e.Join)
}

func modCallKey(e patrolkit.ModCallEntry) string {
	return strconv.FormatInt(e.Timestamp, 10) + "\x00" + e.Caller + "\x00" + e.Moderator
}

func playerSet(players []patrolkit.Player) map[string]patrolkit.Player {
	set := make(map[string]patrolkit.Player, len(players))
	for _, p := range players {
		set[p.Player] = p
	}
	return set
}

func queueSet(ids []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}

func vehicleSet(vehicles []patrolkit.Vehicle) map[string]patrolkit.Vehicle {
	set := make(map[string]patrolkit.Vehicle, len(vehicles))
	for _, v := range vehicles {
		set[v.Owner+"\x00"+v.Name] = v
	}
	return set
}

// diffLocked compares snap against the observed state, mutates the state to
// match, and returns the resulting events in the fixed kind order. On the
// very first poll of a presence kind everything present counts as arrived;
// the first poll of a log kind only baselines the cursor, so an unbounded
// history backlog is never replayed.
func (e *Engine) diffLocked(snap *snapshot) []Event {
	var evts []Event
	lookback := e.lookback()

	if e.tracks(KindPlayers) {
		next := playerSet(snap.players)
		for _, p := range snap.players {
			if _, ok := e.state.players[p.Player]; !ok {
				p := p
				evts = append(evts, Event{Kind: KindPlayers, Player: &p})
			}
		}
		for _, tag := range sortedKeys(e.state.players) {
			if _, ok := next[tag]; !ok {
				p := e.state.players[tag]
				evts = append(evts, Event{Kind: KindPlayers, Departed: true, Player: &p})
			}
		}
		e.state.players = next
	}

	if e.tracks(KindQueue) {
		next := queueSet(snap.queue)
		for _, id := range snap.queue {
			if _, ok := e.state.queue[id]; !ok {
				id := id
				evts = append(evts, Event{Kind: KindQueue, QueueID: &id})
			}
		}
		for _, id := range sortedInts(e.state.queue) {
			if _, ok := next[id]; !ok {
				id := id
				evts = append(evts, Event{Kind: KindQueue, Departed: true, QueueID: &id})
			}
		}
		e.state.queue = next
	}

	if e.tracks(KindVehicles) {
		next := vehicleSet(snap.vehicles)
		for _, v := range snap.vehicles {
			if _, ok := e.state.vehicles[v.Owner+"\x00"+v.Name]; !ok {
				v := v
				evts = append(evts, Event{Kind: KindVehicles, Vehicle: &v})
			}
		}
		for _, key := range sortedKeys(e.state.vehicles) {
			if _, ok := next[key]; !ok {
				v := e.state.vehicles[key]
				evts = append(evts, Event{Kind: KindVehicles, Departed: true, Vehicle: &v})
			}
		}
		e.state.vehicles = next
	}

	if e.tracks(KindCommands) {
		for _, rec := range advance(&e.state.commands, snap.commands, commandTS, commandKey, lookback) {
			rec := rec
			evts = append(evts, Event{Kind: KindCommands, Command: &rec})
		}
	}
	if e.tracks(KindKills) {
		for _, rec := range advance(&e.state.kills, snap.kills, killTS, killKey, lookback) {
			rec := rec
			evts = append(evts, Event{Kind: KindKills, Kill: &rec})
		}
	}
	if e.tracks(KindJoins) {
		for _, rec := range advance(&e.state.joins, snap.joins, joinTS, joinKey, lookback) {
			rec := rec
			evts = append(evts, Event{Kind: KindJoins, Join: &rec})
		}
	}
	if e.tracks(KindModCalls) {
		for _, rec := range advance(&e.state.modCalls, snap.modCalls, modCallTS, modCallKey, lookback) {
			rec := rec
			evts = append(evts, Event{Kind: KindModCalls, ModCall: &rec})
		}
	}

	return evts
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedInts(m map[int64]struct{}) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
