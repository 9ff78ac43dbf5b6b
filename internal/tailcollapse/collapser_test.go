package tailcollapse

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/rzbill/rocketspeed/internal/wire"
)

type fakeBase struct {
	mu          sync.Mutex
	nextID      uint64
	subscribes  []struct{ ns, topic string; seqno uint64 }
	unsubscribed []uint64
}

func (b *fakeBase) Subscribe(namespace, topic string, startSeqno uint64) (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.subscribes = append(b.subscribes, struct {
		ns, topic string
		seqno     uint64
	}{namespace, topic, startSeqno})
	return b.nextID, nil
}

func (b *fakeBase) Unsubscribe(subID uint64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.unsubscribed = append(b.unsubscribed, subID)
	return nil
}

type recordingObserver struct {
	mu   sync.Mutex
	data []uint64
	gaps []uint64
}

func (o *recordingObserver) OnData(subID uint64, seqno uint64, msgID wire.MsgID, payload []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.data = append(o.data, seqno)
}

func (o *recordingObserver) OnGap(subID uint64, from, to uint64, gapType wire.GapType) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.gaps = append(o.gaps, to)
}

func TestSubscribeAtTailCollapsesToOneUpstream(t *testing.T) {
	base := &fakeBase{}
	c := New(base)

	obs1 := &recordingObserver{}
	obs2 := &recordingObserver{}

	id1, err := c.Subscribe("ns", "topic-a", TailSeqno, obs1)
	require.NoError(t, err)
	id2, err := c.Subscribe("ns", "topic-a", TailSeqno, obs2)
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	require.Len(t, base.subscribes, 1)
	require.Equal(t, 2, c.DownstreamCount("ns", "topic-a"))
}

func TestOnDataMulticastsToAllDownstreams(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	obs1 := &recordingObserver{}
	obs2 := &recordingObserver{}

	_, err := c.Subscribe("ns", "topic-a", TailSeqno, obs1)
	require.NoError(t, err)
	_, err = c.Subscribe("ns", "topic-a", TailSeqno, obs2)
	require.NoError(t, err)

	c.OnData("ns", "topic-a", 42, wire.MsgID{}, []byte("hi"))

	require.Equal(t, []uint64{42}, obs1.data)
	require.Equal(t, []uint64{42}, obs2.data)
}

func TestOnGapMulticasts(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	obs1 := &recordingObserver{}
	_, err := c.Subscribe("ns", "topic-a", TailSeqno, obs1)
	require.NoError(t, err)

	c.OnGap("ns", "topic-a", 1, 5, wire.GapRetention)

	require.Equal(t, []uint64{5}, obs1.gaps)
}

func TestSubscribeNonTailUpstreamRejectsJoin(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	obs1 := &recordingObserver{}
	obs2 := &recordingObserver{}

	_, err := c.Subscribe("ns", "topic-a", 7, obs1)
	require.NoError(t, err)
	_, err = c.Subscribe("ns", "topic-a", TailSeqno, obs2)
	require.Error(t, err)
}

func TestUnsubscribeLastDownstreamTearsDownUpstream(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	obs1 := &recordingObserver{}

	id1, err := c.Subscribe("ns", "topic-a", TailSeqno, obs1)
	require.NoError(t, err)
	require.NoError(t, c.Unsubscribe(id1))

	require.Len(t, base.unsubscribed, 1)
	require.Equal(t, 0, c.DownstreamCount("ns", "topic-a"))
}

func TestUnsubscribeOwnerReassignsWhenOthersRemain(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	obs1 := &recordingObserver{}
	obs2 := &recordingObserver{}

	id1, err := c.Subscribe("ns", "topic-a", TailSeqno, obs1)
	require.NoError(t, err)
	_, err = c.Subscribe("ns", "topic-a", TailSeqno, obs2)
	require.NoError(t, err)

	require.NoError(t, c.Unsubscribe(id1))

	require.Empty(t, base.unsubscribed)
	require.Equal(t, 1, c.DownstreamCount("ns", "topic-a"))
}

func TestUnsubscribeUnknownIDErrors(t *testing.T) {
	base := &fakeBase{}
	c := New(base)
	require.Error(t, c.Unsubscribe(999))
}
