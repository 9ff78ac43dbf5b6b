package subscriber

import (
	"context"
	"sync"
	"time"

	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/substore"
	"github.com/rzbill/rocketspeed/internal/topicmap"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Transport is the narrow send surface the subscriber needs from whatever
// connection it currently owns (a mux.Socket in production, a fake in
// tests).
type Transport interface {
	Send(env wire.Envelope) error
}

// Connector dials a fresh Transport when the current one goes away.
type Connector interface {
	Connect(ctx context.Context) (Transport, error)
}

// Observer receives delivered data and gap notifications for every active
// subscription on this shard.
type Observer interface {
	OnData(namespace, topic string, seqno uint64, msgID wire.MsgID, payload []byte)
	OnGap(namespace, topic string, from, to uint64, gapType wire.GapType)
}

// Config bundles the configuration knobs this package reads.
type Config struct {
	TenantID  uint16
	Backoff   BackoffConfig
	RateLimit RateLimitConfig
	// UnsubscribeDedupWindow is how long a just-terminated subscription id
	// is remembered so a delivery that was already in flight when
	// Unsubscribe fired is recognized as stale instead of being applied or
	// (worse) routed to a since-reused id.
	UnsubscribeDedupWindow time.Duration
	// Logger is optional; nil disables logging.
	Logger logpkg.Logger
}

type subscription struct {
	namespace string
	topic     string
	subID     uint64
	state     State
	// expected is the next seqno this subscription expects, advanced only
	// as deliveries and gaps are applied. Zero is the tail sentinel: no
	// delivery has arrived yet on a from-tail subscription, so the first
	// one is accepted at whatever seqno it carries.
	expected uint64
}

// Subscriber drives every subscription this process holds against a single
// shard connection: it owns the reconnect/backoff loop, resubscribes
// everything still live after a reconnect, and applies the dedup window so
// a stray delivery for a just-unsubscribed id is dropped rather than
// mis-delivered.
type Subscriber struct {
	cfg      Config
	logger   logpkg.Logger
	observer Observer
	limiter  *RateLimiterSink
	backoff  *backoff

	mu         sync.Mutex
	transport  Transport
	nextSubID  uint64
	subs       map[uint64]*subscription
	byTopic    *topicmap.Map[uint64]
	terminated map[uint64]time.Time
}

// New builds a Subscriber bound to an already-connected transport.
func New(cfg Config, transport Transport, observer Observer) *Subscriber {
	if cfg.UnsubscribeDedupWindow <= 0 {
		cfg.UnsubscribeDedupWindow = 5 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Subscriber{
		cfg:        cfg,
		logger:     logger.WithComponent("subscriber"),
		observer:   observer,
		limiter:    NewRateLimiterSink(cfg.RateLimit),
		backoff:    newBackoff(cfg.Backoff, 0xC0FFEE),
		transport:  transport,
		subs:       make(map[uint64]*subscription),
		byTopic:    topicmap.New[uint64](),
		terminated: make(map[uint64]time.Time),
	}
}

// Subscribe starts a subscription on (namespace, topic) at startSeqno and
// returns its locally assigned SubscriptionID. Re-subscribing an
// (namespace, topic) pair that is already active returns the existing id.
func (s *Subscriber) Subscribe(namespace, topic string, startSeqno uint64) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byTopic.Get(namespace, topic); ok {
		if sub, ok := s.subs[existing]; ok && (sub.state == Active || sub.state == PendingSend) {
			return existing, nil
		}
	}

	s.nextSubID++
	subID := s.nextSubID
	sub := &subscription{namespace: namespace, topic: topic, subID: subID, state: PendingSend, expected: startSeqno}
	s.subs[subID] = sub
	s.byTopic.Put(namespace, topic, subID)

	s.trySend(sub, startSeqno)
	return subID, nil
}

// trySend attempts to send (or resend) a Subscribe for sub, gated by the
// rate limiter; if the limiter denies it, sub is left in PendingSend for a
// later Flush to retry.
func (s *Subscriber) trySend(sub *subscription, seqno uint64) {
	if !s.limiter.Allow() {
		sub.state = PendingSend
		return
	}
	err := s.transport.Send(wire.Envelope{TenantID: s.cfg.TenantID, Body: &wire.Subscribe{
		Namespace: sub.namespace,
		Topic:     sub.topic,
		SubID:     sub.subID,
		Sources:   []string{sub.topic},
		Seqnos:    []uint64{seqno},
	}})
	if err != nil {
		sub.state = PendingSend
		return
	}
	sub.state = Active
}

// Flush retries sending Subscribe for every subscription still stuck in
// PendingSend (e.g. because the rate limiter denied it earlier).
func (s *Subscriber) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.subs {
		if sub.state == PendingSend {
			s.trySend(sub, sub.expected)
		}
	}
}

// Unsubscribe tears down subID. The id is remembered for
// UnsubscribeDedupWindow so a delivery already in flight for it is
// recognized as stale rather than misapplied.
func (s *Subscriber) Unsubscribe(subID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[subID]
	if !ok {
		return rserrors.New(rserrors.NotFound, "subscriber: unknown subscription")
	}
	sub.state = Terminating
	_ = s.transport.Send(wire.Envelope{TenantID: s.cfg.TenantID, Body: &wire.Unsubscribe{
		SubID:     subID,
		Reason:    wire.UnsubscribeRequested,
		Namespace: sub.namespace,
		Topic:     sub.topic,
	}})
	sub.state = Terminated
	s.byTopic.Delete(sub.namespace, sub.topic)
	delete(s.subs, subID)
	s.terminated[subID] = time.Now()
	return nil
}

// isStale reports whether subID was recently terminated and is still
// within the dedup window, and opportunistically forgets entries that have
// aged out.
func (s *Subscriber) isStale(subID uint64) bool {
	t, ok := s.terminated[subID]
	if !ok {
		return false
	}
	if time.Since(t) > s.cfg.UnsubscribeDedupWindow {
		delete(s.terminated, subID)
		return false
	}
	return true
}

// HandleDeliverData applies an inbound data delivery. A seqno behind the
// subscription's expected one is a stale re-delivery and is dropped. A
// seqno ahead of it is a gap preamble: accepted only when the delivery's
// prev_seqno equals the expected seqno (the server is vouching nothing
// was sent in between); otherwise a message was missed, so the delivery
// is dropped and a resubscribe from the still-owed seqno is requested.
func (s *Subscriber) HandleDeliverData(m *wire.DeliverData) {
	s.mu.Lock()
	sub, ok := s.subs[m.SubID]
	if !ok {
		s.isStale(m.SubID) // opportunistically age out dedup entries
		s.mu.Unlock()
		return
	}
	if sub.expected != 0 {
		if m.Seqno < sub.expected {
			s.mu.Unlock()
			return // stale re-delivery
		}
		if m.Seqno > sub.expected && m.PrevSeqno != sub.expected {
			s.logger.Warn("delivery jumped past expected seqno, resubscribing",
				logpkg.Str("ns", sub.namespace), logpkg.Str("topic", sub.topic),
				logpkg.Uint64("expected", sub.expected), logpkg.Uint64("seqno", m.Seqno),
				logpkg.Uint64("prev_seqno", m.PrevSeqno))
			sub.state = PendingSend
			s.trySend(sub, sub.expected)
			s.mu.Unlock()
			return
		}
	}
	sub.expected = m.Seqno + 1
	ns, topic := sub.namespace, sub.topic
	s.mu.Unlock()
	s.observer.OnData(ns, topic, m.Seqno, m.MsgID, m.Payload)
}

// HandleDeliverGap applies an inbound gap notification, advancing the
// expected seqno past the gap. A gap entirely behind the expected seqno
// is stale and dropped.
func (s *Subscriber) HandleDeliverGap(m *wire.DeliverGap) {
	s.mu.Lock()
	sub, ok := s.subs[m.SubID]
	if !ok {
		s.mu.Unlock()
		return
	}
	if sub.expected != 0 && m.Seqno < sub.expected {
		s.mu.Unlock()
		return
	}
	sub.expected = m.Seqno + 1
	ns, topic := sub.namespace, sub.topic
	s.mu.Unlock()
	s.observer.OnGap(ns, topic, m.PrevSeqno+1, m.Seqno, m.GapType)
}

// HandleSubAck applies acknowledgement of a Subscribe, reconciling the
// source cursor the shard reports back. The cursor is the seqno the
// shard will deliver next, so it can only move expected forward.
func (s *Subscriber) HandleSubAck(m *wire.SubAck) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[m.SubID]
	if !ok || sub.state != PendingSend && sub.state != Active {
		return
	}
	sub.state = Active
	if len(m.Cursors) > 0 && m.Cursors[0] > sub.expected {
		sub.expected = m.Cursors[0]
	}
}

// Reconnect drives the backoff loop until connector successfully dials a
// new Transport, then resubscribes every subscription that was Active or
// PendingSend at the time the previous connection was lost.
func (s *Subscriber) Reconnect(ctx context.Context, connector Connector) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		t, err := connector.Connect(ctx)
		if err == nil {
			s.mu.Lock()
			s.transport = t
			s.backoff.Reset()
			resubscribed := 0
			for _, sub := range s.subs {
				if sub.state == Active || sub.state == PendingSend {
					s.trySend(sub, sub.expected)
					resubscribed++
				}
			}
			s.mu.Unlock()
			s.logger.Info("reconnected", logpkg.Int("resubscribed", resubscribed))
			return nil
		}
		delay := s.backoff.Next()
		s.logger.Debug("connect failed, backing off",
			logpkg.Err(err), logpkg.Dur("delay", delay))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// Snapshot returns one substore.Record per live subscription, recording
// the next expected seqno as the point to resubscribe from so a restart
// re-delivers nothing already seen. Used by the multi-shard subscriber's
// SaveSubscriptions call.
func (s *Subscriber) Snapshot() []substore.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]substore.Record, 0, len(s.subs))
	for _, sub := range s.subs {
		if sub.state != Active && sub.state != PendingSend {
			continue
		}
		out = append(out, substore.Record{
			TenantID:  s.cfg.TenantID,
			Namespace: sub.namespace,
			Topic:     sub.topic,
			Seqno:     sub.expected,
		})
	}
	return out
}

// State returns the current lifecycle state of subID, or None if unknown.
func (s *Subscriber) State(subID uint64) State {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.subs[subID]
	if !ok {
		return None
	}
	return sub.state
}
