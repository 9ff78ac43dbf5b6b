package multishard

import "sync/atomic"

// SubscriptionID is a globally unique handle encoding the owning worker in
// its high bits and a per-worker counter in its low bits, so a worker's
// ids never collide with another worker's without any cross-worker
// coordination — the same partitioning idea used for mux.StreamID.
type SubscriptionID uint64

// workerBits reserves the top bits of a SubscriptionID for the owning
// worker index. 16 bits supports up to 65535 workers, far more than any
// single process will ever run.
const workerBits = 16

// WorkerOf extracts the owning worker index from a SubscriptionID.
func WorkerOf(id SubscriptionID) uint32 {
	return uint32(uint64(id) >> (64 - workerBits))
}

// idAllocator hands out SubscriptionIDs unique within one worker, counting
// up from 1 so 0 is reserved to mean "no subscription".
type idAllocator struct {
	worker  uint64
	counter uint64
}

func newIDAllocator(worker uint32) *idAllocator {
	return &idAllocator{worker: uint64(worker) << (64 - workerBits)}
}

func (a *idAllocator) next() SubscriptionID {
	c := atomic.AddUint64(&a.counter, 1)
	return SubscriptionID(a.worker | c)
}
