package rocketeer

import (
	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/mux"
	"github.com/rzbill/rocketspeed/internal/wire"
	"github.com/rzbill/rocketspeed/pkg/id"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Server is the per-worker communication layer wrapping one Rocketeer. All
// InboundSubscription state lives only on the loop goroutine; Deliver,
// Advance, and Terminate are safe to call from any goroutine and dispatch
// onto the loop internally.
type Server struct {
	loop    *eventloop.Loop
	ids     *idAllocator
	stamps  *id.Generator
	app     Rocketeer
	sender  Sender
	metrics Metrics
	logger  logpkg.Logger

	subs map[InboundID]*inboundState
}

type inboundState struct {
	sub       InboundSubscription
	prevSeqno uint64
}

// NewServer builds a Server bound to workerIndex (used to partition
// InboundIDs) and driven by loop, which the caller runs (loop.Run) in its
// own goroutine. metrics may be nil to disable reordered-drop reporting.
func NewServer(workerIndex uint32, loop *eventloop.Loop, app Rocketeer, sender Sender, metrics Metrics) *Server {
	return NewServerWithLogger(workerIndex, loop, app, sender, metrics, logpkg.NewNopLogger())
}

// NewServerWithLogger is NewServer with an injected logger.
func NewServerWithLogger(workerIndex uint32, loop *eventloop.Loop, app Rocketeer, sender Sender, metrics Metrics, logger logpkg.Logger) *Server {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Server{
		loop:    loop,
		ids:     newIDAllocator(workerIndex),
		stamps:  id.NewGenerator(),
		app:     app,
		sender:  sender,
		metrics: metrics,
		logger:  logger.WithComponent("rocketeer").With(logpkg.Int("worker", int(workerIndex))),
		subs:    make(map[InboundID]*inboundState),
	}
}

// HandleSubscribe processes an incoming Subscribe on the loop goroutine
// that owns stream: it allocates the InboundSubscription with
// prev_seqno = start-1 (or 0 if start is 0, so the first Deliver(start)
// still satisfies the monotonicity check), and invokes the application's
// HandleNewSubscription. Must be called from the owning loop goroutine
// (i.e. from the socket's own ReceiveLoop callback), not from an arbitrary
// goroutine.
func (s *Server) HandleSubscribe(stream mux.StreamID, tenantID uint16, namespace, topic string, subID uint64, start uint64) InboundID {
	id := s.ids.next()
	prev := uint64(0)
	if start > 0 {
		prev = start - 1
	}
	st := &inboundState{
		sub: InboundSubscription{
			ID: id, Stream: stream, SubID: subID, TenantID: tenantID,
			Namespace: namespace, Topic: topic,
			OpenedAt: s.stamps.Next(),
		},
		prevSeqno: prev,
	}
	s.subs[id] = st
	s.logger.Debug("inbound subscription opened",
		logpkg.Str("ns", namespace), logpkg.Str("topic", topic),
		logpkg.Uint64("sub_id", subID), logpkg.Uint64("start", start),
		logpkg.Str("opened_at", st.sub.OpenedAt.String()))
	s.app.HandleNewSubscription(st.sub, start)
	return id
}

// HandleSubscriberEnded processes an incoming Unsubscribe or a Goodbye
// that implicitly ends id, on the owning loop goroutine. Drops the state
// and invokes HandleTermination with TerminationSubscriber.
func (s *Server) HandleSubscriberEnded(id InboundID, reason wire.UnsubscribeReason) {
	st, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	s.logger.Debug("inbound subscription ended by subscriber",
		logpkg.Str("ns", st.sub.Namespace), logpkg.Str("topic", st.sub.Topic),
		logpkg.Uint64("sub_id", st.sub.SubID))
	s.app.HandleTermination(st.sub, TerminationSubscriber, reason)
}

// Deliver enforces monotonicity and, if seqno advances prev_seqno, sends a
// DeliverData and updates prev_seqno. A non-advancing seqno is dropped and
// counted as reordered rather than sent. Thread-safe: dispatches onto this
// Server's own loop. Returns retry=false if that loop's queue is currently
// full.
func (s *Server) Deliver(id InboundID, msgID wire.MsgID, seqno uint64, payload []byte) (retry bool) {
	done := make(chan struct{})
	accepted := s.loop.TrySendCommand(func() {
		s.deliverOnLoop(id, msgID, seqno, payload)
		close(done)
	})
	if !accepted {
		return false
	}
	<-done
	return true
}

func (s *Server) deliverOnLoop(id InboundID, msgID wire.MsgID, seqno uint64, payload []byte) {
	st, ok := s.subs[id]
	if !ok {
		return
	}
	if seqno <= st.prevSeqno {
		if s.metrics != nil {
			s.metrics.ReorderedDrop(st.sub.Namespace, st.sub.Topic)
		}
		return
	}
	msg := &wire.DeliverData{
		SubID: st.sub.SubID, PrevSeqno: st.prevSeqno, Seqno: seqno,
		MsgID: msgID, Payload: payload, Namespace: st.sub.Namespace, Topic: st.sub.Topic,
	}
	if err := s.sender.SendDeliverData(st.sub.Stream, msg); err == nil {
		st.prevSeqno = seqno
	}
}

// Advance enforces the same monotonicity as Deliver but sends a Benign
// DeliverGap covering (prev_seqno, seqno] instead of data. Thread-safe.
func (s *Server) Advance(id InboundID, seqno uint64) (retry bool) {
	done := make(chan struct{})
	accepted := s.loop.TrySendCommand(func() {
		s.advanceOnLoop(id, seqno)
		close(done)
	})
	if !accepted {
		return false
	}
	<-done
	return true
}

func (s *Server) advanceOnLoop(id InboundID, seqno uint64) {
	st, ok := s.subs[id]
	if !ok {
		return
	}
	if seqno <= st.prevSeqno {
		if s.metrics != nil {
			s.metrics.ReorderedDrop(st.sub.Namespace, st.sub.Topic)
		}
		return
	}
	msg := &wire.DeliverGap{
		SubID: st.sub.SubID, PrevSeqno: st.prevSeqno, Seqno: seqno,
		GapType: wire.GapBenign, Namespace: st.sub.Namespace, Topic: st.sub.Topic,
	}
	if err := s.sender.SendDeliverGap(st.sub.Stream, msg); err == nil {
		st.prevSeqno = seqno
	}
}

// Terminate sends an Unsubscribe with reason, invokes HandleTermination
// with TerminationRocketeer, and drops the InboundSubscription's state.
// Thread-safe.
func (s *Server) Terminate(id InboundID, reason wire.UnsubscribeReason) (retry bool) {
	done := make(chan struct{})
	accepted := s.loop.TrySendCommand(func() {
		s.terminateOnLoop(id, reason)
		close(done)
	})
	if !accepted {
		return false
	}
	<-done
	return true
}

func (s *Server) terminateOnLoop(id InboundID, reason wire.UnsubscribeReason) {
	st, ok := s.subs[id]
	if !ok {
		return
	}
	delete(s.subs, id)
	_ = s.sender.SendUnsubscribe(st.sub.Stream, &wire.Unsubscribe{
		SubID: st.sub.SubID, Reason: reason, Namespace: st.sub.Namespace, Topic: st.sub.Topic,
	})
	s.app.HandleTermination(st.sub, TerminationRocketeer, reason)
}

// Lookup returns a snapshot of id's InboundSubscription, if still live.
// Safe to call only from the loop goroutine.
func (s *Server) Lookup(id InboundID) (InboundSubscription, bool) {
	st, ok := s.subs[id]
	if !ok {
		return InboundSubscription{}, false
	}
	return st.sub, true
}

// Count reports how many InboundSubscriptions this worker currently owns.
// Safe to call only from the loop goroutine.
func (s *Server) Count() int { return len(s.subs) }
