package multishard

import (
	"io"

	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/substore"
)

// SubscriberIf is the narrow surface a per-shard subscriber must expose.
type SubscriberIf interface {
	Subscribe(namespace, topic string, startSeqno uint64) (uint64, error)
	Unsubscribe(subID uint64) error
}

// Snapshotter is implemented by a SubscriberIf that can report its own
// live subscriptions for persistence; *subscriber.Subscriber satisfies it.
// A shard subscriber that doesn't implement it is simply skipped by
// MultiShard.Snapshot.
type Snapshotter interface {
	Snapshot() []substore.Record
}

// ShardSubscriberFactory builds the per-shard Subscriber the first time a
// shard is needed.
type ShardSubscriberFactory func(shard router.ShardID) (SubscriberIf, error)

type shardEntry struct {
	sub      SubscriberIf
	refCount int
}

type handleInfo struct {
	shard   router.ShardID
	localID uint64
}

// MultiShard owns a shard -> SubscriberIf map, creating each shard's
// subscriber lazily on its first subscription and destroying it once its
// last subscription is gone. It is not itself thread-safe across
// goroutines; Worker is the layer that serializes access to it.
type MultiShard struct {
	rt      router.Router
	factory ShardSubscriberFactory

	shards     map[router.ShardID]*shardEntry
	handles    map[uint64]handleInfo
	nextHandle uint64
}

// NewMultiShard builds a MultiShard that resolves shards via rt and builds
// per-shard subscribers via factory.
func NewMultiShard(rt router.Router, factory ShardSubscriberFactory) *MultiShard {
	return &MultiShard{
		rt:      rt,
		factory: factory,
		shards:  make(map[router.ShardID]*shardEntry),
		handles: make(map[uint64]handleInfo),
	}
}

// Subscribe routes (namespace, topic) to its shard, lazily creating that
// shard's Subscriber if this is its first use, and returns an opaque
// handle scoped to this MultiShard.
func (m *MultiShard) Subscribe(namespace, topic string, startSeqno uint64) (uint64, error) {
	shard := m.rt.GetShard(namespace, topic)
	entry, ok := m.shards[shard]
	created := false
	if !ok {
		sub, err := m.factory(shard)
		if err != nil {
			return 0, err
		}
		entry = &shardEntry{sub: sub}
		m.shards[shard] = entry
		created = true
	}

	localID, err := entry.sub.Subscribe(namespace, topic, startSeqno)
	if err != nil {
		if created {
			delete(m.shards, shard)
		}
		return 0, err
	}
	entry.refCount++

	m.nextHandle++
	handle := m.nextHandle
	m.handles[handle] = handleInfo{shard: shard, localID: localID}
	return handle, nil
}

// Unsubscribe tears down the subscription behind handle. If it was the
// last subscription on its shard, the shard's Subscriber is destroyed
// (closed, if it implements io.Closer) and removed from the map.
func (m *MultiShard) Unsubscribe(handle uint64) error {
	info, ok := m.handles[handle]
	if !ok {
		return rserrors.New(rserrors.NotFound, "multishard: unknown handle")
	}
	entry, ok := m.shards[info.shard]
	if !ok {
		delete(m.handles, handle)
		return rserrors.New(rserrors.InternalError, "multishard: handle pointed at missing shard")
	}

	err := entry.sub.Unsubscribe(info.localID)
	delete(m.handles, handle)
	entry.refCount--
	if entry.refCount <= 0 {
		delete(m.shards, info.shard)
		if closer, ok := entry.sub.(io.Closer); ok {
			_ = closer.Close()
		}
	}
	return err
}

// ShardCount reports how many shards currently have a live subscriber.
func (m *MultiShard) ShardCount() int {
	return len(m.shards)
}

// Snapshot collects every live subscription across every shard whose
// subscriber implements Snapshotter, for persistence via substore.
func (m *MultiShard) Snapshot() []substore.Record {
	var out []substore.Record
	for _, entry := range m.shards {
		if snap, ok := entry.sub.(Snapshotter); ok {
			out = append(out, snap.Snapshot()...)
		}
	}
	return out
}
