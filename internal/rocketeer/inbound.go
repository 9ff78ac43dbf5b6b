package rocketeer

import "sync/atomic"

// InboundID is a globally unique handle for one InboundSubscription,
// encoding the owning worker in its high bits and a per-worker counter in
// its low bits — the same partitioning idea used for mux.StreamID and
// multishard.SubscriptionID, so a Deliver/Advance/Terminate call can be
// routed to its owning worker without a shared lookup table.
type InboundID uint64

// workerBits reserves the top bits of an InboundID for the owning worker
// index, matching the width used throughout the rest of the tree.
const workerBits = 16

// WorkerOf extracts the owning worker index from an InboundID.
func WorkerOf(id InboundID) uint32 {
	return uint32(uint64(id) >> (64 - workerBits))
}

// idAllocator hands out InboundIDs unique within one worker, counting up
// from 1 so 0 is reserved to mean "no subscription".
type idAllocator struct {
	worker  uint64
	counter uint64
}

func newIDAllocator(worker uint32) *idAllocator {
	return &idAllocator{worker: uint64(worker) << (64 - workerBits)}
}

func (a *idAllocator) next() InboundID {
	c := atomic.AddUint64(&a.counter, 1)
	return InboundID(a.worker | c)
}
