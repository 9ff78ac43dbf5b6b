package tailcollapse

import (
	"sync"

	"github.com/rzbill/rocketspeed/internal/wire"
)

// TailSeqno is the sentinel start seqno meaning "subscribe at the current
// tail of the topic" — the only start point eligible for collapsing.
const TailSeqno uint64 = 0

// DownstreamObserver receives deliveries for one downstream subscription.
// It is the same shape an application would register directly against an
// uncollapsed subscriber, with the addition of its own subID so a shared
// TailCollapsingObserver can route a single upstream delivery to many of
// these.
type DownstreamObserver interface {
	OnData(subID uint64, seqno uint64, msgID wire.MsgID, payload []byte)
	OnGap(subID uint64, from, to uint64, gapType wire.GapType)
}

// TailCollapsingObserver is the shared observer registered against the one
// upstream subscription for a topic. It multicasts every delivery to all
// downstream observers currently riding that upstream.
type TailCollapsingObserver struct {
	mu          sync.Mutex
	downstreams map[uint64]DownstreamObserver
}

func newTailCollapsingObserver() *TailCollapsingObserver {
	return &TailCollapsingObserver{downstreams: make(map[uint64]DownstreamObserver)}
}

func (o *TailCollapsingObserver) add(subID uint64, obs DownstreamObserver) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.downstreams[subID] = obs
}

// remove drops subID and reports whether the observer is now empty.
func (o *TailCollapsingObserver) remove(subID uint64) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.downstreams, subID)
	return len(o.downstreams) == 0
}

func (o *TailCollapsingObserver) len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.downstreams)
}

// anyOwner returns an arbitrary remaining downstream id, used to reassign
// upstream ownership when the current owner unsubscribes but others remain.
func (o *TailCollapsingObserver) anyOwner() (uint64, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id := range o.downstreams {
		return id, true
	}
	return 0, false
}

func (o *TailCollapsingObserver) OnData(seqno uint64, msgID wire.MsgID, payload []byte) {
	o.mu.Lock()
	targets := make([]DownstreamObserver, 0, len(o.downstreams))
	ids := make([]uint64, 0, len(o.downstreams))
	for id, obs := range o.downstreams {
		ids = append(ids, id)
		targets = append(targets, obs)
	}
	o.mu.Unlock()
	for i, obs := range targets {
		obs.OnData(ids[i], seqno, msgID, payload)
	}
}

func (o *TailCollapsingObserver) OnGap(from, to uint64, gapType wire.GapType) {
	o.mu.Lock()
	targets := make([]DownstreamObserver, 0, len(o.downstreams))
	ids := make([]uint64, 0, len(o.downstreams))
	for id, obs := range o.downstreams {
		ids = append(ids, id)
		targets = append(targets, obs)
	}
	o.mu.Unlock()
	for i, obs := range targets {
		obs.OnGap(ids[i], from, to, gapType)
	}
}
