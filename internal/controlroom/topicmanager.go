package controlroom

import (
	"github.com/rzbill/rocketspeed/internal/topicmap"
)

// SubscriberEntry is one host's standing subscription on a topic: which
// host, and the next seqno it expects. Lists are typically size 1 (the
// small-vector case), so we keep this a plain slice rather than a map.
type SubscriberEntry struct {
	Host         HostNumber
	NextExpected uint64
}

type subList struct {
	entries []SubscriberEntry
}

// TopicManager maps (namespace, topic) to the list of hosts subscribed to
// it, keyed through the same open-addressed topicmap.Map the client side
// uses for its own topic lookups, generalized here to a
// small-slice value instead of a single SubscriptionID.
type TopicManager struct {
	topics *topicmap.Map[*subList]
}

// NewTopicManager builds an empty TopicManager.
func NewTopicManager() *TopicManager {
	return &TopicManager{topics: topicmap.New[*subList]()}
}

// AddSubscriber registers host on (namespace, topic) starting at seqno.
// Returns true iff the topic transitioned from having no subscribers to
// having one — the caller's cue to start tailing the underlying log.
// Re-adding a host already present updates its NextExpected in place.
func (m *TopicManager) AddSubscriber(namespace, topic string, seqno uint64, host HostNumber) bool {
	list, ok := m.topics.Get(namespace, topic)
	if !ok {
		list = &subList{entries: []SubscriberEntry{{Host: host, NextExpected: seqno}}}
		m.topics.Put(namespace, topic, list)
		return true
	}
	for i := range list.entries {
		if list.entries[i].Host == host {
			list.entries[i].NextExpected = seqno
			return false
		}
	}
	list.entries = append(list.entries, SubscriberEntry{Host: host, NextExpected: seqno})
	return false
}

// RemoveSubscriber unregisters host from (namespace, topic). Returns true
// iff the topic transitioned to having no subscribers — the caller's cue
// to stop tailing the underlying log.
func (m *TopicManager) RemoveSubscriber(namespace, topic string, host HostNumber) bool {
	list, ok := m.topics.Get(namespace, topic)
	if !ok {
		return false
	}
	for i := range list.entries {
		if list.entries[i].Host == host {
			list.entries = append(list.entries[:i], list.entries[i+1:]...)
			break
		}
	}
	if len(list.entries) == 0 {
		m.topics.Delete(namespace, topic)
		return true
	}
	return false
}

// Visitor is called once per subscriber whose NextExpected lies in
// [from, to]. Its return value becomes the subscriber's new NextExpected
// (0 leaves it unchanged), letting the fan-out path advance the cursor
// after a successful delivery in the same pass that found it.
type Visitor func(host HostNumber, nextExpected uint64) (advanceTo uint64)

// VisitSubscribers iterates every subscriber of (namespace, topic) whose
// NextExpected falls in [from, to], permitting the visitor to advance it.
func (m *TopicManager) VisitSubscribers(namespace, topic string, from, to uint64, visit Visitor) {
	list, ok := m.topics.Get(namespace, topic)
	if !ok {
		return
	}
	for i := range list.entries {
		e := &list.entries[i]
		if e.NextExpected < from || e.NextExpected > to {
			continue
		}
		if adv := visit(e.Host, e.NextExpected); adv != 0 {
			e.NextExpected = adv
		}
	}
}

// Subscribers returns a snapshot of every current subscriber of
// (namespace, topic). Fan-out order within a topic's list is
// unspecified.
func (m *TopicManager) Subscribers(namespace, topic string) []SubscriberEntry {
	list, ok := m.topics.Get(namespace, topic)
	if !ok {
		return nil
	}
	out := make([]SubscriberEntry, len(list.entries))
	copy(out, list.entries)
	return out
}

// TopicCount reports how many topics currently have at least one
// subscriber.
func (m *TopicManager) TopicCount() int { return m.topics.Len() }
