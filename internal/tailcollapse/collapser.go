package tailcollapse

import (
	"sync"

	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/topicmap"
	"github.com/rzbill/rocketspeed/internal/wire"
)

// BaseSubscriber is the narrow surface of the single-shard subscriber the
// collapser drives — exactly the subset of *subscriber.Subscriber's public
// API this overlay needs.
type BaseSubscriber interface {
	Subscribe(namespace, topic string, startSeqno uint64) (uint64, error)
	Unsubscribe(subID uint64) error
}

type topicKey struct {
	namespace string
	topic     string
}

type upstreamEntry struct {
	upstreamSubID uint64
	startSeqno    uint64
	observer      *TailCollapsingObserver
	owner         uint64
}

// Collapser sits between the application and a single-shard subscriber: it
// is itself that subscriber's Observer, and it hands out its own downstream
// subscription ids that are independent of the upstream ids the base
// subscriber allocates.
//
// Per the tail-only collapsing rule, a new request only joins an existing
// upstream when both the request and the existing upstream start at the
// tail (TailSeqno); any other combination targeting the same topic is
// rejected rather than silently restarting or diverging the upstream.
type Collapser struct {
	base BaseSubscriber

	mu           sync.Mutex
	byTopic      *topicmap.Map[*upstreamEntry]
	downstreamOf map[uint64]topicKey
	nextDownID   uint64
}

// New builds a Collapser driving base. The returned Collapser must be
// passed as the Observer when constructing the underlying subscriber.
func New(base BaseSubscriber) *Collapser {
	return &Collapser{
		base:         base,
		byTopic:      topicmap.New[*upstreamEntry](),
		downstreamOf: make(map[uint64]topicKey),
	}
}

// Subscribe joins or creates an upstream subscription for (namespace,
// topic) and returns a downstream id scoped to obs.
func (c *Collapser) Subscribe(namespace, topic string, startSeqno uint64, obs DownstreamObserver) (uint64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := topicKey{namespace: namespace, topic: topic}
	if entry, ok := c.byTopic.Get(namespace, topic); ok {
		if startSeqno != TailSeqno || entry.startSeqno != TailSeqno {
			return 0, rserrors.New(rserrors.InvalidArgument,
				"tailcollapse: topic already has an upstream subscription with an incompatible start point")
		}
		c.nextDownID++
		downID := c.nextDownID
		entry.observer.add(downID, obs)
		c.downstreamOf[downID] = key
		return downID, nil
	}

	upstreamID, err := c.base.Subscribe(namespace, topic, startSeqno)
	if err != nil {
		return 0, err
	}
	c.nextDownID++
	downID := c.nextDownID
	tco := newTailCollapsingObserver()
	tco.add(downID, obs)
	c.byTopic.Put(namespace, topic, &upstreamEntry{
		upstreamSubID: upstreamID,
		startSeqno:    startSeqno,
		observer:      tco,
		owner:         downID,
	})
	c.downstreamOf[downID] = key
	return downID, nil
}

// Unsubscribe removes downID. If it was the last downstream riding its
// upstream, the upstream subscription is torn down too; otherwise, if it
// was the recorded owner, ownership is reassigned to a remaining
// downstream.
func (c *Collapser) Unsubscribe(downID uint64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	key, ok := c.downstreamOf[downID]
	if !ok {
		return rserrors.New(rserrors.NotFound, "tailcollapse: unknown downstream subscription")
	}
	entry, ok := c.byTopic.Get(key.namespace, key.topic)
	if !ok {
		delete(c.downstreamOf, downID)
		return rserrors.New(rserrors.InternalError, "tailcollapse: downstream pointed at missing upstream entry")
	}
	delete(c.downstreamOf, downID)
	empty := entry.observer.remove(downID)
	if empty {
		c.byTopic.Delete(key.namespace, key.topic)
		return c.base.Unsubscribe(entry.upstreamSubID)
	}
	if entry.owner == downID {
		if newOwner, ok := entry.observer.anyOwner(); ok {
			entry.owner = newOwner
		}
	}
	return nil
}

// OnData implements subscriber.Observer, routing a delivery to every
// downstream observer sharing the topic's upstream subscription.
func (c *Collapser) OnData(namespace, topic string, seqno uint64, msgID wire.MsgID, payload []byte) {
	c.mu.Lock()
	entry, ok := c.byTopic.Get(namespace, topic)
	c.mu.Unlock()
	if !ok {
		return
	}
	entry.observer.OnData(seqno, msgID, payload)
}

// OnGap implements subscriber.Observer.
func (c *Collapser) OnGap(namespace, topic string, from, to uint64, gapType wire.GapType) {
	c.mu.Lock()
	entry, ok := c.byTopic.Get(namespace, topic)
	c.mu.Unlock()
	if !ok {
		return
	}
	entry.observer.OnGap(from, to, gapType)
}

// DownstreamCount reports how many downstream observers currently ride the
// upstream subscription for (namespace, topic), or 0 if none exists.
func (c *Collapser) DownstreamCount(namespace, topic string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.byTopic.Get(namespace, topic)
	if !ok {
		return 0
	}
	return entry.observer.len()
}
