package mux

import (
	"sort"
	"sync"
	"time"

	"github.com/rzbill/rocketspeed/internal/wire"
)

// HeartbeatAggregator tracks which shards were included in the last
// heartbeat sent on a socket and computes the added/removed delta for the
// next one, so a socket multiplexing many shards' liveness can send a
// small HeartbeatDelta instead of repeating the full shard list every tick.
type HeartbeatAggregator struct {
	last map[uint64]struct{}
}

// NewHeartbeatAggregator returns an aggregator with no prior shard set.
func NewHeartbeatAggregator() *HeartbeatAggregator {
	return &HeartbeatAggregator{last: make(map[uint64]struct{})}
}

// Delta computes (added, removed) against the current live set and stores
// current as the new baseline for the next call.
func (h *HeartbeatAggregator) Delta(current []uint64) (added, removed []uint64) {
	currentSet := make(map[uint64]struct{}, len(current))
	for _, id := range current {
		currentSet[id] = struct{}{}
		if _, ok := h.last[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range h.last {
		if _, ok := currentSet[id]; !ok {
			removed = append(removed, id)
		}
	}
	h.last = currentSet
	return added, removed
}

// HeartbeatEmitter batches per-stream "alive" ticks observed during one
// period and turns them into the single wire message the socket sends for
// that period: a full Heartbeat the first time, a HeartbeatDelta relative
// to the previously sent set afterwards. Safe for concurrent MarkAlive.
type HeartbeatEmitter struct {
	mu       sync.Mutex
	agg      *HeartbeatAggregator
	alive    map[uint64]struct{}
	sentFull bool
}

// NewHeartbeatEmitter returns an emitter with no alive shards.
func NewHeartbeatEmitter() *HeartbeatEmitter {
	return &HeartbeatEmitter{agg: NewHeartbeatAggregator(), alive: make(map[uint64]struct{})}
}

// MarkAlive records that shardID was seen alive in the current period.
func (e *HeartbeatEmitter) MarkAlive(shardID uint64) {
	e.mu.Lock()
	e.alive[shardID] = struct{}{}
	e.mu.Unlock()
}

// Emit closes the current period and returns the message to send for it.
// A shard not marked alive since the previous Emit is reported as removed.
func (e *HeartbeatEmitter) Emit(nowMs uint64) wire.Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	current := make([]uint64, 0, len(e.alive))
	for id := range e.alive {
		current = append(current, id)
	}
	sort.Slice(current, func(i, j int) bool { return current[i] < current[j] })
	e.alive = make(map[uint64]struct{})

	added, removed := e.agg.Delta(current)
	if !e.sentFull {
		e.sentFull = true
		return &wire.Heartbeat{SourceTimeMs: nowMs, ShardIDs: current}
	}
	sort.Slice(added, func(i, j int) bool { return added[i] < added[j] })
	sort.Slice(removed, func(i, j int) bool { return removed[i] < removed[j] })
	return &wire.HeartbeatDelta{SourceTimeMs: nowMs, Added: added, Removed: removed}
}

// HeartbeatMonitor is the receive-side watchdog: it tracks when each
// shard was last covered by an incoming Heartbeat/HeartbeatDelta and
// reports the ones that have gone quiet. Quiet shards are only reported,
// never closed; that stays the owner's decision.
type HeartbeatMonitor struct {
	mu   sync.Mutex
	last map[uint64]time.Time
}

// NewHeartbeatMonitor returns a monitor tracking no shards.
func NewHeartbeatMonitor() *HeartbeatMonitor {
	return &HeartbeatMonitor{last: make(map[uint64]time.Time)}
}

// ObserveFull applies a full Heartbeat: every listed shard is stamped
// fresh and every previously known shard missing from the list is
// forgotten.
func (m *HeartbeatMonitor) ObserveFull(shardIDs []uint64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fresh := make(map[uint64]time.Time, len(shardIDs))
	for _, id := range shardIDs {
		fresh[id] = now
	}
	m.last = fresh
}

// ObserveDelta applies a HeartbeatDelta: added shards are stamped fresh,
// removed shards are forgotten, and every shard still in the set is
// stamped fresh (the delta's arrival is itself the liveness signal).
func (m *HeartbeatMonitor) ObserveDelta(added, removed []uint64, now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range removed {
		delete(m.last, id)
	}
	for id := range m.last {
		m.last[id] = now
	}
	for _, id := range added {
		m.last[id] = now
	}
}

// Unhealthy returns the shards that have not been covered by a heartbeat
// for longer than timeout, in ascending order.
func (m *HeartbeatMonitor) Unhealthy(now time.Time, timeout time.Duration) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []uint64
	for id, t := range m.last {
		if now.Sub(t) > timeout {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
