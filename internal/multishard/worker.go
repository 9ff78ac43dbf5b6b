package multishard

import (
	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/substore"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// Worker owns one MultiShard, one id space, and one event loop. Every
// method on it is safe to call from any goroutine: the call is packaged
// as a command and pushed onto the loop's queue, and state (the MultiShard
// and the id -> handle table) is only ever touched from the loop goroutine
// itself.
type Worker struct {
	loop    *eventloop.Loop
	ids     *idAllocator
	ms      *MultiShard
	logger  logpkg.Logger
	handles map[SubscriptionID]uint64
}

// NewWorker builds a Worker bound to workerIndex (used to partition
// SubscriptionIDs) and driven by loop, which the caller is responsible for
// running (loop.Run) in its own goroutine.
func NewWorker(workerIndex uint32, loop *eventloop.Loop, rt router.Router, factory ShardSubscriberFactory) *Worker {
	return NewWorkerWithLogger(workerIndex, loop, rt, factory, logpkg.NewNopLogger())
}

// NewWorkerWithLogger is NewWorker with an injected logger.
func NewWorkerWithLogger(workerIndex uint32, loop *eventloop.Loop, rt router.Router, factory ShardSubscriberFactory, logger logpkg.Logger) *Worker {
	if logger == nil {
		logger = logpkg.NewNopLogger()
	}
	return &Worker{
		loop:    loop,
		ids:     newIDAllocator(workerIndex),
		ms:      NewMultiShard(rt, factory),
		logger:  logger.WithComponent("multishard").With(logpkg.Int("worker", int(workerIndex))),
		handles: make(map[SubscriptionID]uint64),
	}
}

// Subscribe allocates a SubscriptionID up front (so the caller always gets
// a stable handle to retry with) and, if the worker's queue has room,
// dispatches the actual subscribe onto the loop. If the queue is full, it
// reports retry=false and the caller should back off and call again.
func (w *Worker) Subscribe(namespace, topic string, startSeqno uint64) (id SubscriptionID, retry bool) {
	id = w.ids.next()
	done := make(chan struct{})
	var handle uint64
	var err error
	accepted := w.loop.TrySendCommand(func() {
		handle, err = w.ms.Subscribe(namespace, topic, startSeqno)
		if err == nil {
			w.handles[id] = handle
		}
		close(done)
	})
	if !accepted {
		w.logger.Debug("queue full, subscribe deferred",
			logpkg.Str("ns", namespace), logpkg.Str("topic", topic))
		return id, false
	}
	<-done
	if err != nil {
		return 0, true
	}
	return id, true
}

// Unsubscribe tears down id. Returns retry=false if the worker's queue is
// currently full; the caller should back off and retry.
func (w *Worker) Unsubscribe(id SubscriptionID) (ok bool, retry bool) {
	done := make(chan struct{})
	var err error
	accepted := w.loop.TrySendCommand(func() {
		handle, found := w.handles[id]
		if !found {
			err = rserrors.New(rserrors.NotFound, "multishard: unknown subscription id")
			close(done)
			return
		}
		err = w.ms.Unsubscribe(handle)
		delete(w.handles, id)
		close(done)
	})
	if !accepted {
		return false, false
	}
	<-done
	return err == nil, true
}

// Snapshot collects every live subscription this worker currently owns,
// across all of its shards, for persistence via substore.
func (w *Worker) Snapshot() []substore.Record {
	done := make(chan struct{})
	var out []substore.Record
	accepted := w.loop.TrySendCommand(func() {
		out = w.ms.Snapshot()
		close(done)
	})
	if !accepted {
		return nil
	}
	<-done
	return out
}
