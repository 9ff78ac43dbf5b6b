package multishard

import (
	"sync/atomic"

	"github.com/rzbill/rocketspeed/internal/substore"
)

// Pool fans subscription calls out across a fixed set of Workers: new
// subscriptions are assigned round-robin, and calls on an existing
// SubscriptionID are routed back to the worker that allocated it by
// decoding the id's high bits — no lookup table needed.
type Pool struct {
	workers []*Worker
	next    uint32
}

// NewPool builds a Pool over workers, which must be indexed 0..N-1 in the
// same order their corresponding Worker was constructed with workerIndex.
func NewPool(workers []*Worker) *Pool {
	return &Pool{workers: workers}
}

// Subscribe assigns the new subscription to a worker round-robin and
// blocks until that worker's loop processes it (or its queue is found
// full, in which case retry is false).
func (p *Pool) Subscribe(namespace, topic string, startSeqno uint64) (id SubscriptionID, retry bool) {
	idx := atomic.AddUint32(&p.next, 1) % uint32(len(p.workers))
	return p.workers[idx].Subscribe(namespace, topic, startSeqno)
}

// Unsubscribe routes to the worker that allocated id.
func (p *Pool) Unsubscribe(id SubscriptionID) (ok bool, retry bool) {
	w := WorkerOf(id)
	if int(w) >= len(p.workers) {
		return false, false
	}
	return p.workers[w].Unsubscribe(id)
}

// SaveSubscriptions collects every live subscription across every worker
// and writes them to path as a substore snapshot, for a clean resubscribe
// on the next process start.
func (p *Pool) SaveSubscriptions(path string) error {
	var all []substore.Record
	for _, w := range p.workers {
		all = append(all, w.Snapshot()...)
	}
	return substore.WriteSnapshot(path, all)
}
