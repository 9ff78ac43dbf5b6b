package mux

import (
	"encoding/binary"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// sendQueueHighWatermark/LowWatermark bound the outbound frame queue: the
// socket reports backpressure once the queue crosses high and clears it
// once drained back under low, giving hysteresis instead of flapping.
const (
	sendQueueHighWatermark = 256
	sendQueueLowWatermark  = 64
	sendQueueCapacity      = 1024
)

// StreamHandler receives every envelope addressed to a stream.
type StreamHandler func(env wire.Envelope)

// protocolVersionKey is the stream property carrying the speaker's framing
// version in the Introduction exchanged right after a socket opens.
const protocolVersionKey = "protocol_version"

// Socket multiplexes many logical streams over one net.Conn. All stream
// handler callbacks and the OnBackpressure callback run on loop's
// goroutine; ReceiveLoop/sendLoop own the conn from their own goroutines
// and never touch stream state directly.
type Socket struct {
	conn   net.Conn
	loop   *eventloop.Loop
	logger logpkg.Logger

	trigger *EventTrigger

	sendCh chan outboundFrame
	closed chan struct{}
	once   sync.Once

	mu       sync.Mutex
	handlers map[StreamID]StreamHandler

	hbEmitter *HeartbeatEmitter
	hbMonitor *HeartbeatMonitor

	onBackpressure func(congested bool)
}

type outboundFrame struct {
	streamID StreamID
	body     []byte
}

// NewSocket wraps conn. onBackpressure, if non-nil, is invoked (on loop) as
// the send queue crosses the high/low watermarks.
func NewSocket(conn net.Conn, loop *eventloop.Loop, onBackpressure func(congested bool)) *Socket {
	s := &Socket{
		conn:           conn,
		loop:           loop,
		logger:         logpkg.NewNopLogger(),
		sendCh:         make(chan outboundFrame, sendQueueCapacity),
		closed:         make(chan struct{}),
		handlers:       make(map[StreamID]StreamHandler),
		hbEmitter:      NewHeartbeatEmitter(),
		hbMonitor:      NewHeartbeatMonitor(),
		onBackpressure: onBackpressure,
	}
	s.trigger = NewEventTrigger(func(congested bool) {
		s.loop.Dispatch(func() {
			if s.onBackpressure != nil {
				s.onBackpressure(congested)
			}
		})
	})
	return s
}

// SetLogger replaces the socket's logger; call before starting the loops.
func (s *Socket) SetLogger(logger logpkg.Logger) {
	if logger != nil {
		s.logger = logger.WithComponent("mux").With(logpkg.Str("peer", s.conn.RemoteAddr().String()))
	}
}

// SendIntroduction announces this side's protocol version and client
// properties on streamID, normally the first thing written after the
// socket opens. The peer closes the socket if the version is unknown.
func (s *Socket) SendIntroduction(streamID StreamID, clientProps map[string]string) error {
	intro := &wire.Introduction{
		StreamProperties: []wire.KV{{Key: protocolVersionKey, Value: strconv.Itoa(int(ProtocolVersion))}},
	}
	for k, v := range clientProps {
		intro.ClientProperties = append(intro.ClientProperties, wire.KV{Key: k, Value: v})
	}
	return s.Send(streamID, wire.Envelope{Body: intro})
}

// handleIntroduction gates the peer's advertised protocol version: an
// unknown version closes the socket with Goodbye(Error) before any
// subscription traffic flows over it.
func (s *Socket) handleIntroduction(intro *wire.Introduction) {
	for _, kv := range intro.StreamProperties {
		if kv.Key != protocolVersionKey {
			continue
		}
		v, err := strconv.Atoi(kv.Value)
		if err != nil || byte(v) != ProtocolVersion {
			s.logger.Warn("peer speaks unknown protocol version", logpkg.Str("version", kv.Value))
			s.Close(wire.GoodbyeError)
		}
		return
	}
}

// MarkShardAlive records a per-stream "alive" tick for shardID; ticks
// batch up until the next EmitHeartbeat.
func (s *Socket) MarkShardAlive(shardID uint64) { s.hbEmitter.MarkAlive(shardID) }

// EmitHeartbeat closes the current heartbeat period and sends its single
// aggregated Heartbeat (first period) or HeartbeatDelta on streamID. The
// owner calls this from its loop's tick at the configured period.
func (s *Socket) EmitHeartbeat(streamID StreamID) error {
	msg := s.hbEmitter.Emit(uint64(time.Now().UnixMilli()))
	return s.Send(streamID, wire.Envelope{Body: msg})
}

// UnhealthyShards reports the shards the peer has not covered with a
// heartbeat for longer than timeout. Reported only; closing is the
// owner's decision.
func (s *Socket) UnhealthyShards(timeout time.Duration) []uint64 {
	return s.hbMonitor.Unhealthy(time.Now(), timeout)
}

// RegisterStream attaches handler to handle every envelope addressed to
// streamID. Replaces any existing handler for the same id.
func (s *Socket) RegisterStream(id StreamID, handler StreamHandler) {
	s.mu.Lock()
	s.handlers[id] = handler
	s.mu.Unlock()
}

// UnregisterStream removes a stream's handler.
func (s *Socket) UnregisterStream(id StreamID) {
	s.mu.Lock()
	delete(s.handlers, id)
	s.mu.Unlock()
}

// Send enqueues env for delivery on streamID. Returns an error if the
// socket has been closed. It does not write to the connection itself, but
// when the send queue is full it sets the backpressure trigger and blocks
// until SendLoop makes room.
func (s *Socket) Send(streamID StreamID, env wire.Envelope) error {
	body, err := wire.Serialize(env)
	if err != nil {
		return err
	}
	select {
	case <-s.closed:
		return rserrors.New(rserrors.ShutdownInProgress, "mux: socket closed")
	default:
	}
	select {
	case s.sendCh <- outboundFrame{streamID: streamID, body: body}:
	default:
		// Queue is momentarily full: still accept the frame but make sure
		// congestion is visible before blocking the caller.
		s.trigger.Set(true)
		s.sendCh <- outboundFrame{streamID: streamID, body: body}
	}
	if len(s.sendCh) >= sendQueueHighWatermark {
		s.trigger.Set(true)
	}
	return nil
}

// ReceiveLoop reads frames from conn until it errors or closes, decoding
// each into (StreamID, Envelope) and dispatching to the registered
// handler via loop.Dispatch. It returns when the connection is done; the
// caller should then call Close.
func (s *Socket) ReceiveLoop() error {
	for {
		body, err := ReadFrame(s.conn)
		if err != nil {
			return err
		}
		if len(body) < 8 {
			continue
		}
		streamID := StreamID(binary.BigEndian.Uint64(body[:8]))
		env, err := wire.Deserialize(body[8:])
		if err != nil {
			s.logger.Debug("dropping undecodable frame", logpkg.Err(err))
			continue
		}
		switch body := env.Body.(type) {
		case *wire.Introduction:
			s.handleIntroduction(body)
			continue
		case *wire.Heartbeat:
			s.hbMonitor.ObserveFull(body.ShardIDs, time.Now())
			continue
		case *wire.HeartbeatDelta:
			s.hbMonitor.ObserveDelta(body.Added, body.Removed, time.Now())
			continue
		}
		s.loop.Dispatch(func() {
			s.mu.Lock()
			h := s.handlers[streamID]
			s.mu.Unlock()
			if h != nil {
				h(env)
			}
		})
	}
}

// SendLoop drains the outbound queue to conn until Close is called. Frames
// for multiple streams queued back to back (up to 64) are written as one
// net.Buffers write per batch, a single writev on connections that
// support it.
func (s *Socket) SendLoop() error {
	for {
		select {
		case <-s.closed:
			return nil
		case f := <-s.sendCh:
			batch := [][]byte{encodeMuxBody(f.streamID, f.body)}
		drain:
			for len(batch) < 64 {
				select {
				case next := <-s.sendCh:
					batch = append(batch, encodeMuxBody(next.streamID, next.body))
				default:
					break drain
				}
			}
			bufs := make(net.Buffers, 0, 2*len(batch))
			for _, b := range batch {
				hdr := make([]byte, 5)
				hdr[0] = ProtocolVersion
				binary.BigEndian.PutUint32(hdr[1:], uint32(len(b)))
				bufs = append(bufs, hdr, b)
			}
			if _, err := bufs.WriteTo(s.conn); err != nil {
				return err
			}
			if len(s.sendCh) <= sendQueueLowWatermark {
				s.trigger.Set(false)
			}
		}
	}
}

// Close shuts the connection down. Every stream with a registered handler
// receives a synthetic Goodbye before the handler map is cleared, so
// application code never has to distinguish "peer said goodbye" from
// "the socket died" — it sees the same message either way.
func (s *Socket) Close(code wire.GoodbyeCode) {
	s.once.Do(func() {
		s.logger.Info("socket closed", logpkg.Str("code", goodbyeCodeName(code)))
		close(s.closed)
		_ = s.conn.Close()

		s.mu.Lock()
		handlers := make(map[StreamID]StreamHandler, len(s.handlers))
		for id, h := range s.handlers {
			handlers[id] = h
		}
		s.handlers = make(map[StreamID]StreamHandler)
		s.mu.Unlock()

		goodbye := wire.Envelope{Body: &wire.Goodbye{Code: code, Origin: wire.OriginServer}}
		for _, h := range handlers {
			h := h
			s.loop.Dispatch(func() { h(goodbye) })
		}
	})
}

func goodbyeCodeName(code wire.GoodbyeCode) string {
	if code == wire.GoodbyeGraceful {
		return "graceful"
	}
	return "error"
}

func encodeMuxBody(streamID StreamID, envelope []byte) []byte {
	out := make([]byte, 8+len(envelope))
	binary.BigEndian.PutUint64(out[:8], uint64(streamID))
	copy(out[8:], envelope)
	return out
}
