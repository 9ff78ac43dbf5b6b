package mux

import "sync/atomic"

// StreamID identifies one logical stream multiplexed on a socket.
type StreamID uint64

// streamPartitionBits reserves the top bits of a StreamID for the owning
// loop's partition index, so independent loops can allocate stream IDs
// without coordinating with each other, the same scheme the multi-shard
// subscriber uses to build a SubscriptionID out of a worker id and a
// per-worker counter.
const streamPartitionBits = 16

// Allocator hands out StreamIDs unique within one partition (one event
// loop's worth of sockets), counting up from 1 so 0 is reserved to mean
// "no stream".
type Allocator struct {
	partition uint64
	counter   uint64
}

// NewAllocator builds an Allocator for the given loop partition index.
func NewAllocator(partition uint32) *Allocator {
	return &Allocator{partition: uint64(partition) << (64 - streamPartitionBits)}
}

// Next returns the next StreamID for this partition.
func (a *Allocator) Next() StreamID {
	c := atomic.AddUint64(&a.counter, 1)
	return StreamID(a.partition | c)
}

// Partition extracts the owning loop's partition index from a StreamID.
func Partition(id StreamID) uint32 {
	return uint32(uint64(id) >> (64 - streamPartitionBits))
}
