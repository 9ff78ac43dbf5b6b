package controlroom

import (
	"context"

	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// MetadataKind distinguishes a subscribe request from an unsubscribe.
type MetadataKind int

const (
	MetadataSubscribe MetadataKind = iota
	MetadataUnsubscribe
)

// MessageMetadata is a subscribe/unsubscribe command arriving from the
// tower, carried on the ControlRoom's single command queue alongside
// MessageData.
type MessageMetadata struct {
	Kind      MetadataKind
	Namespace string
	Topic     string
	SubID     uint64
	Seqno     uint64 // start seqno, meaningful only for MetadataSubscribe
	Host      HostID
}

// MessageData is one tailed record (or the LogID it belongs to), carried on
// the ControlRoom's command queue for fan-out to every current subscriber
// of its topic.
type MessageData struct {
	LogID     uint64
	Namespace string
	Topic     string
	Seqno     uint64
	MsgID     wire.MsgID
	Payload   []byte
}

// Deliverer is the narrow send surface the control room needs to reach a
// subscriber host. It is satisfied by the stream layer in production
// (looking the host's Stream up and writing a DeliverData/SubAck onto it).
type Deliverer interface {
	DeliverData(host HostID, namespace, topic string, subID uint64, seqno uint64, msgID wire.MsgID, payload []byte) error
	Ack(host HostID, namespace, topic string, subID uint64, cursor uint64) error
}

// TailerControl starts and stops tailing the log backing one topic. The
// control room calls StartTailing when a topic's subscriber set becomes
// non-empty and StopTailing when it becomes empty again, so an unreferenced
// topic costs nothing in the log tailer. namespace/topic are passed through
// (rather than just logID) so an implementation can maintain its own
// logID -> (namespace, topic) reverse lookup for routing tailed records
// back into SubmitData, since Router's hash is one-way.
type TailerControl interface {
	StartTailing(namespace, topic string, logID, fromSeqno uint64) error
	StopTailing(namespace, topic string, logID uint64)
}

// Metrics is the optional observability hook for fan-out and subscriber
// set size; a nil Metrics on Options disables it.
type Metrics interface {
	FanOut(count int)
	SubscriberSetSize(topics, subscribers int)
}

// Options configures a ControlRoom.
type Options struct {
	Router  router.Router
	Tailer  TailerControl
	Deliver Deliverer
	Metrics Metrics
	Loop    *eventloop.Loop
	// Logger is optional; nil disables logging.
	Logger logpkg.Logger
}

// ControlRoom is the server-side worker driving one shard's worth of
// topics: it owns the TopicManager, the HostMap, and reacts to both
// MessageData (from the log tailer) and MessageMetadata (subscribe/
// unsubscribe, from incoming Subscribe/Unsubscribe messages) serialized
// through its event loop.
type ControlRoom struct {
	opts    Options
	logger  logpkg.Logger
	hosts   *HostMap
	topics  *TopicManager
	subIDs  map[HostNumber]map[topicKey]uint64 // host -> topic -> subID, for acks and unsubscribe lookups
	lastLog map[string]uint64                  // "namespace\x00topic" -> log's last-read seqno
}

type topicKey struct{ namespace, topic string }

// New builds a ControlRoom. The caller is responsible for running
// opts.Loop (loop.Run) in its own goroutine.
func New(opts Options) *ControlRoom {
	logger := opts.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &ControlRoom{
		opts:    opts,
		logger:  logger.WithComponent("controlroom"),
		hosts:   NewHostMap(),
		topics:  NewTopicManager(),
		subIDs:  make(map[HostNumber]map[topicKey]uint64),
		lastLog: make(map[string]uint64),
	}
}

// SubmitMetadata enqueues a subscribe/unsubscribe request for processing on
// the control room's loop. Safe to call from any goroutine.
func (c *ControlRoom) SubmitMetadata(m MessageMetadata) {
	c.opts.Loop.Dispatch(func() { c.applyMetadata(m) })
}

// SubmitMetadataSync is SubmitMetadata but blocks until processed; used by
// tests and by the BacklogQuery/BacklogFill handler, which must answer
// synchronously from the request path.
func (c *ControlRoom) SubmitMetadataSync(ctx context.Context, m MessageMetadata) error {
	done := make(chan struct{})
	err := c.opts.Loop.SendCommand(ctx, func() {
		c.applyMetadata(m)
		close(done)
	})
	if err != nil {
		return err
	}
	<-done
	return nil
}

func (c *ControlRoom) applyMetadata(m MessageMetadata) {
	host := c.hosts.Number(m.Host)
	switch m.Kind {
	case MetadataSubscribe:
		becameNonEmpty := c.topics.AddSubscriber(m.Namespace, m.Topic, m.Seqno, host)
		c.rememberSub(host, m.Namespace, m.Topic, m.SubID)
		if becameNonEmpty {
			logID := uint64(c.opts.Router.GetLogID(m.Namespace, m.Topic))
			c.logger.Debug("first subscriber, tailing log",
				logpkg.Str("ns", m.Namespace), logpkg.Str("topic", m.Topic),
				logpkg.Uint64("log_id", logID), logpkg.Uint64("from", m.Seqno))
			_ = c.opts.Tailer.StartTailing(m.Namespace, m.Topic, logID, m.Seqno)
		}
		if c.opts.Deliver != nil {
			_ = c.opts.Deliver.Ack(m.Host, m.Namespace, m.Topic, m.SubID, m.Seqno)
		}
	case MetadataUnsubscribe:
		becameEmpty := c.topics.RemoveSubscriber(m.Namespace, m.Topic, host)
		c.forgetSub(host, m.Namespace, m.Topic)
		if becameEmpty {
			logID := uint64(c.opts.Router.GetLogID(m.Namespace, m.Topic))
			c.logger.Debug("last subscriber gone, tailing stopped",
				logpkg.Str("ns", m.Namespace), logpkg.Str("topic", m.Topic),
				logpkg.Uint64("log_id", logID))
			c.opts.Tailer.StopTailing(m.Namespace, m.Topic, logID)
		}
	}
	c.reportSetSize()
}

func (c *ControlRoom) rememberSub(host HostNumber, namespace, topic string, subID uint64) {
	key := topicKey{namespace, topic}
	m, ok := c.subIDs[host]
	if !ok {
		m = make(map[topicKey]uint64)
		c.subIDs[host] = m
	}
	m[key] = subID
}

func (c *ControlRoom) forgetSub(host HostNumber, namespace, topic string) {
	if m, ok := c.subIDs[host]; ok {
		delete(m, topicKey{namespace, topic})
		if len(m) == 0 {
			delete(c.subIDs, host)
		}
	}
}

func (c *ControlRoom) subIDFor(host HostNumber, namespace, topic string) (uint64, bool) {
	m, ok := c.subIDs[host]
	if !ok {
		return 0, false
	}
	id, ok := m[topicKey{namespace, topic}]
	return id, ok
}

// SubmitData enqueues one tailed record for fan-out to every current
// subscriber of its topic. Safe to call from any goroutine (the log
// tailer calls it from the owning loop, but nothing here assumes that).
func (c *ControlRoom) SubmitData(d MessageData) {
	c.opts.Loop.Dispatch(func() { c.applyData(d) })
}

func (c *ControlRoom) applyData(d MessageData) {
	subs := c.topics.Subscribers(d.Namespace, d.Topic)
	delivered := 0
	for _, s := range subs {
		hostID, ok := c.hosts.HostID(s.Host)
		if !ok {
			continue
		}
		subID, ok := c.subIDFor(s.Host, d.Namespace, d.Topic)
		if !ok {
			continue
		}
		if c.opts.Deliver != nil {
			if err := c.opts.Deliver.DeliverData(hostID, d.Namespace, d.Topic, subID, d.Seqno, d.MsgID, d.Payload); err == nil {
				delivered++
				// Advance this subscriber's NextExpected past the record it
				// was just sent. AddSubscriber on an already-known host is
				// an in-place NextExpected update, not a fresh subscribe.
				c.topics.AddSubscriber(d.Namespace, d.Topic, d.Seqno+1, s.Host)
			}
		}
	}
	key := d.Namespace + "\x00" + d.Topic
	c.lastLog[key] = d.Seqno
	if c.opts.Metrics != nil {
		c.opts.Metrics.FanOut(delivered)
	}
}

func (c *ControlRoom) reportSetSize() {
	if c.opts.Metrics == nil {
		return
	}
	subscribers := 0
	for _, m := range c.subIDs {
		subscribers += len(m)
	}
	c.opts.Metrics.SubscriberSetSize(c.topics.TopicCount(), subscribers)
}

// LastRead returns the last seqno fanned out for (namespace, topic), or
// (0, false) if nothing has been delivered yet.
func (c *ControlRoom) LastRead(namespace, topic string) (uint64, bool) {
	v, ok := c.lastLog[namespace+"\x00"+topic]
	return v, ok
}

// BacklogQuery answers the BacklogQuery/BacklogFill round-trip: does
// data exist for (namespace, topic) in (prevSeqno, nextSeqno]? Answered
// from the last seqno this control room fanned out for the topic (via
// LastRead) without re-reading the storage backend.
func (c *ControlRoom) BacklogQuery(namespace, topic string, prevSeqno, nextSeqno uint64) wire.BacklogResult {
	last, ok := c.LastRead(namespace, topic)
	if !ok {
		return wire.BacklogNotFound
	}
	if last >= nextSeqno && prevSeqno <= last {
		return wire.BacklogFound
	}
	return wire.BacklogNotFound
}

// TopicManager exposes the underlying TopicManager for introspection
// (admin surface, tests).
func (c *ControlRoom) TopicManager() *TopicManager { return c.topics }

// HostMap exposes the underlying HostMap for introspection.
func (c *ControlRoom) HostMap() *HostMap { return c.hosts }
