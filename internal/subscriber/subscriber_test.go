package subscriber

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/rocketspeed/internal/wire"
)

type fakeTransport struct {
	mu   sync.Mutex
	sent []wire.Envelope
	fail bool
}

func (f *fakeTransport) Send(env wire.Envelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("transport down")
	}
	f.sent = append(f.sent, env)
	return nil
}

func (f *fakeTransport) subscribes() []*wire.Subscribe {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*wire.Subscribe
	for _, e := range f.sent {
		if s, ok := e.Body.(*wire.Subscribe); ok {
			out = append(out, s)
		}
	}
	return out
}

type fakeObserver struct {
	mu      sync.Mutex
	data    []uint64
	gaps    []wire.GapType
}

func (o *fakeObserver) OnData(namespace, topic string, seqno uint64, msgID wire.MsgID, payload []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, seqno)
}

func (o *fakeObserver) OnGap(namespace, topic string, from, to uint64, gapType wire.GapType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gaps = append(o.gaps, gapType)
}

func newTestSubscriber(t *testing.T) (*Subscriber, *fakeTransport, *fakeObserver) {
	t.Helper()
	tr := &fakeTransport{}
	obs := &fakeObserver{}
	s := New(Config{TenantID: 1}, tr, obs)
	return s, tr, obs
}

func TestSubscribeSendsSubscribeMessage(t *testing.T) {
	s, tr, _ := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 10)
	require.NoError(t, err)
	require.NotZero(t, id)

	subs := tr.subscribes()
	require.Len(t, subs, 1)
	require.Equal(t, "ns", subs[0].Namespace)
	require.Equal(t, "topic-a", subs[0].Topic)
	require.Equal(t, Active, s.State(id))
}

func TestSubscribeTwiceReturnsSameID(t *testing.T) {
	s, _, _ := newTestSubscriber(t)
	id1, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)
	id2, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)
	require.Equal(t, id1, id2)
}

func TestUnsubscribeTerminatesAndSendsUnsubscribe(t *testing.T) {
	s, tr, _ := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	require.NoError(t, s.Unsubscribe(id))
	require.Equal(t, None, s.State(id))

	var sawUnsub bool
	for _, e := range tr.sent {
		if u, ok := e.Body.(*wire.Unsubscribe); ok && u.SubID == id {
			sawUnsub = true
		}
	}
	require.True(t, sawUnsub)
}

func TestUnsubscribeUnknownIDErrors(t *testing.T) {
	s, _, _ := newTestSubscriber(t)
	err := s.Unsubscribe(999)
	require.Error(t, err)
}

func TestHandleDeliverDataDeliversToObserver(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 5, Namespace: "ns", Topic: "topic-a"})
	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 6, Namespace: "ns", Topic: "topic-a"})

	require.Equal(t, []uint64{5, 6}, obs.data)
}

func TestHandleDeliverDataDropsOutOfOrder(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 10, Namespace: "ns", Topic: "topic-a"})
	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 3, Namespace: "ns", Topic: "topic-a"})

	require.Equal(t, []uint64{10}, obs.data)
}

func TestHandleDeliverDataAfterUnsubscribeIsDroppedAsStale(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)
	require.NoError(t, s.Unsubscribe(id))

	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 1, Namespace: "ns", Topic: "topic-a"})

	require.Empty(t, obs.data)
}

func TestHandleDeliverGapNotifiesObserver(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	s.HandleDeliverGap(&wire.DeliverGap{SubID: id, PrevSeqno: 5, Seqno: 9, GapType: wire.GapRetention})

	require.Equal(t, []wire.GapType{wire.GapRetention}, obs.gaps)
}

func TestHandleSubAckAdvancesCursor(t *testing.T) {
	s, _, _ := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	s.HandleSubAck(&wire.SubAck{SubID: id, Cursors: []uint64{42}})

	s.mu.Lock()
	expected := s.subs[id].expected
	s.mu.Unlock()
	require.Equal(t, uint64(42), expected)
}

func TestHandleDeliverDataAcceptsFirstAtExplicitStart(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 10)
	require.NoError(t, err)

	s.HandleDeliverData(&wire.DeliverData{SubID: id, PrevSeqno: 9, Seqno: 10, Namespace: "ns", Topic: "topic-a"})
	s.HandleDeliverData(&wire.DeliverData{SubID: id, PrevSeqno: 10, Seqno: 11, Namespace: "ns", Topic: "topic-a"})

	require.Equal(t, []uint64{10, 11}, obs.data)
}

func TestHandleDeliverDataAcceptsVouchedJump(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 5)
	require.NoError(t, err)

	// The server vouches nothing was sent between 5 and 8 by carrying
	// prev_seqno equal to what we still expect.
	s.HandleDeliverData(&wire.DeliverData{SubID: id, PrevSeqno: 5, Seqno: 8, Namespace: "ns", Topic: "topic-a"})

	require.Equal(t, []uint64{8}, obs.data)
	s.mu.Lock()
	expected := s.subs[id].expected
	s.mu.Unlock()
	require.Equal(t, uint64(9), expected)
}

func TestHandleDeliverDataUnvouchedJumpResubscribes(t *testing.T) {
	s, tr, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 5)
	require.NoError(t, err)
	require.Len(t, tr.subscribes(), 1)

	// prev_seqno 7 claims a delivery at 7 we never saw: the message at 5
	// was missed, so the delivery must be dropped and a fresh Subscribe
	// from the still-owed seqno sent.
	s.HandleDeliverData(&wire.DeliverData{SubID: id, PrevSeqno: 7, Seqno: 8, Namespace: "ns", Topic: "topic-a"})

	require.Empty(t, obs.data)
	subs := tr.subscribes()
	require.Len(t, subs, 2)
	require.Equal(t, []uint64{5}, subs[1].Seqnos)
}

func TestHandleDeliverGapBehindExpectedIsDropped(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 10)
	require.NoError(t, err)

	s.HandleDeliverGap(&wire.DeliverGap{SubID: id, PrevSeqno: 3, Seqno: 6, GapType: wire.GapRetention})

	require.Empty(t, obs.gaps)
}

type stepConnector struct {
	failTimes int
	transport Transport
}

func (c *stepConnector) Connect(ctx context.Context) (Transport, error) {
	if c.failTimes > 0 {
		c.failTimes--
		return nil, errors.New("dial failed")
	}
	return c.transport, nil
}

func TestReconnectResubscribesActiveSubscriptions(t *testing.T) {
	s, _, _ := newTestSubscriber(t)
	id, err := s.Subscribe("ns", "topic-a", 7)
	require.NoError(t, err)
	require.Equal(t, Active, s.State(id))

	newTransport := &fakeTransport{}
	connector := &stepConnector{failTimes: 2, transport: newTransport}
	s.cfg.Backoff = BackoffConfig{Base: time.Millisecond, Cap: 5 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Reconnect(ctx, connector))

	subs := newTransport.subscribes()
	require.Len(t, subs, 1)
	require.Equal(t, "topic-a", subs[0].Topic)
}

func TestReconnectGivesUpWhenContextCancelled(t *testing.T) {
	s, _, _ := newTestSubscriber(t)
	_, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)

	connector := &stepConnector{failTimes: 1000}
	s.cfg.Backoff = BackoffConfig{Base: time.Millisecond, Cap: 2 * time.Millisecond}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = s.Reconnect(ctx, connector)
	require.Error(t, err)
}

func TestFlushRetriesPendingSendAfterRateLimitDenial(t *testing.T) {
	s, tr, _ := newTestSubscriber(t)
	s.limiter = NewRateLimiterSink(RateLimitConfig{Rate: 0.0001, Burst: 1})
	// Consume the single burst token with a throwaway call.
	s.limiter.Allow()

	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)
	require.Equal(t, PendingSend, s.State(id))
	require.Empty(t, tr.subscribes())

	s.limiter = NewRateLimiterSink(RateLimitConfig{Rate: 1000, Burst: 10})
	s.Flush()

	require.Equal(t, Active, s.State(id))
	require.Len(t, tr.subscribes(), 1)
}

func TestUnsubscribeDedupWindowExpires(t *testing.T) {
	s, _, obs := newTestSubscriber(t)
	s.cfg.UnsubscribeDedupWindow = time.Millisecond
	id, err := s.Subscribe("ns", "topic-a", 0)
	require.NoError(t, err)
	require.NoError(t, s.Unsubscribe(id))

	time.Sleep(5 * time.Millisecond)
	require.False(t, s.isStale(id))

	s.HandleDeliverData(&wire.DeliverData{SubID: id, Seqno: 1})
	require.Empty(t, obs.data)
}
