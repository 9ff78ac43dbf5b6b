package topicmap

import (
	"github.com/cespare/xxhash/v2"
)

// hashSeed is the fixed seed used for every lookup so that two processes
// (or two runs of the same process) hash a given (namespace, topic) pair
// identically.
const hashSeed uint64 = 0x57933C4A28A735B0

const (
	minCapacity  = 16
	lowLoad      = 0.25
	highLoad     = 0.5
	optimumLoad  = 0.375
)

// GetStateFunc reports whether the state associated with a value is still
// alive. Compact uses it to drop entries whose subscription has gone away
// without requiring an explicit Delete call for every one.
type GetStateFunc[V any] func(v V) bool

type entry[V any] struct {
	occupied bool
	distance int
	namespace string
	topic     string
	hash      uint64
	value     V
}

// Map is an open-addressed, linear-probing (namespace, topic) -> V table
// with Robin Hood insertion and backward-shift deletion (no tombstones).
type Map[V any] struct {
	buckets []entry[V]
	count   int
}

// New returns an empty Map sized at the minimum capacity.
func New[V any]() *Map[V] {
	return &Map[V]{buckets: make([]entry[V], minCapacity)}
}

func keyHash(namespace, topic string) uint64 {
	d := xxhash.NewWithSeed(hashSeed)
	_, _ = d.WriteString(namespace)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(topic)
	return d.Sum64()
}

// Len returns the number of stored entries.
func (m *Map[V]) Len() int { return m.count }

func (m *Map[V]) loadFactor() float64 {
	return float64(m.count) / float64(len(m.buckets))
}

// Put inserts or overwrites the value for (namespace, topic).
func (m *Map[V]) Put(namespace, topic string, value V) {
	if m.loadFactor() >= highLoad {
		m.resize(optimumSize(m.count+1, len(m.buckets)*2))
	}
	h := keyHash(namespace, topic)
	m.insert(entry[V]{occupied: true, namespace: namespace, topic: topic, hash: h, value: value}, true)
}

// insert performs the Robin Hood probe sequence. countNew controls whether a
// genuinely new key increments m.count (false when re-inserting during a
// resize, since count is already correct).
func (m *Map[V]) insert(e entry[V], countNew bool) {
	n := len(m.buckets)
	idx := int(e.hash % uint64(n))
	e.distance = 0
	for {
		cur := &m.buckets[idx]
		if !cur.occupied {
			*cur = e
			if countNew {
				m.count++
			}
			return
		}
		if cur.hash == e.hash && cur.namespace == e.namespace && cur.topic == e.topic {
			cur.value = e.value
			return
		}
		if cur.distance < e.distance {
			e, *cur = *cur, e
		}
		e.distance++
		idx = (idx + 1) % n
	}
}

// Get looks up the value for (namespace, topic).
func (m *Map[V]) Get(namespace, topic string) (V, bool) {
	idx, found := m.find(namespace, topic)
	if !found {
		var zero V
		return zero, false
	}
	return m.buckets[idx].value, true
}

func (m *Map[V]) find(namespace, topic string) (int, bool) {
	n := len(m.buckets)
	if n == 0 {
		return 0, false
	}
	h := keyHash(namespace, topic)
	idx := int(h % uint64(n))
	distance := 0
	for {
		cur := &m.buckets[idx]
		if !cur.occupied || distance > cur.distance {
			return 0, false
		}
		if cur.hash == h && cur.namespace == namespace && cur.topic == topic {
			return idx, true
		}
		idx = (idx + 1) % n
		distance++
	}
}

// Delete removes (namespace, topic) if present, backward-shifting the
// following probe chain so no tombstone is left behind. Returns whether a
// value was removed.
func (m *Map[V]) Delete(namespace, topic string) bool {
	idx, found := m.find(namespace, topic)
	if !found {
		return false
	}
	n := len(m.buckets)
	m.buckets[idx] = entry[V]{}
	m.count--
	next := (idx + 1) % n
	for m.buckets[next].occupied && m.buckets[next].distance > 0 {
		m.buckets[idx] = m.buckets[next]
		m.buckets[idx].distance--
		m.buckets[next] = entry[V]{}
		idx = next
		next = (next + 1) % n
	}
	if m.count > 0 && m.loadFactor() < lowLoad && len(m.buckets) > minCapacity {
		m.resize(optimumSize(m.count, minCapacity))
	}
	return true
}

// Compact drops every entry for which alive reports false. Mirrors the
// externally supplied state lookup used to reconcile the map against
// subscriptions that have been torn down without an explicit Delete.
func (m *Map[V]) Compact(alive GetStateFunc[V]) int {
	var stale []struct{ ns, topic string }
	for _, e := range m.buckets {
		if e.occupied && !alive(e.value) {
			stale = append(stale, struct{ ns, topic string }{e.namespace, e.topic})
		}
	}
	for _, s := range stale {
		m.Delete(s.ns, s.topic)
	}
	return len(stale)
}

// resize rebuilds the table at the given capacity, re-probing every entry.
func (m *Map[V]) resize(newCap int) {
	if newCap < minCapacity {
		newCap = minCapacity
	}
	old := m.buckets
	m.buckets = make([]entry[V], newCap)
	for _, e := range old {
		if e.occupied {
			e.distance = 0
			m.insert(e, false)
		}
	}
}

// optimumSize returns a capacity, at least minCapacity and a power of two,
// that puts count entries near the optimum load factor.
func optimumSize(count, hint int) int {
	target := int(float64(count) / optimumLoad)
	if hint > target {
		target = hint
	}
	size := minCapacity
	for size < target {
		size *= 2
	}
	return size
}
