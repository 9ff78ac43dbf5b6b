package multishard

import (
	"context"
	"testing"
	"time"

	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/router"
	"github.com/rzbill/rocketspeed/internal/substore"
)

// fakeShardSubscriber is a SubscriberIf + Snapshotter stand-in that records
// every (namespace, topic) it was asked to subscribe, without touching any
// real transport.
type fakeShardSubscriber struct {
	next uint64
	live map[uint64]substore.Record
}

func newFakeShardSubscriber(router.ShardID) (SubscriberIf, error) {
	return &fakeShardSubscriber{live: make(map[uint64]substore.Record)}, nil
}

func (f *fakeShardSubscriber) Subscribe(namespace, topic string, startSeqno uint64) (uint64, error) {
	f.next++
	f.live[f.next] = substore.Record{Namespace: namespace, Topic: topic, Seqno: startSeqno}
	return f.next, nil
}

func (f *fakeShardSubscriber) Unsubscribe(subID uint64) error {
	delete(f.live, subID)
	return nil
}

func (f *fakeShardSubscriber) Snapshot() []substore.Record {
	out := make([]substore.Record, 0, len(f.live))
	for _, r := range f.live {
		out = append(out, r)
	}
	return out
}

func newTestPool(t *testing.T, numWorkers int) *Pool {
	t.Helper()
	rt := router.NewStaticRouter(4, []string{"h0"})
	workers := make([]*Worker, numWorkers)
	for i := 0; i < numWorkers; i++ {
		loop := eventloop.New(eventloop.Options{})
		ctx, cancel := context.WithCancel(context.Background())
		go loop.Run(ctx)
		t.Cleanup(cancel)
		workers[i] = NewWorker(uint32(i), loop, rt, newFakeShardSubscriber)
	}
	return NewPool(workers)
}

func waitForPool(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestPoolSubscribeRoutesAndSaveSubscriptionsRoundtrips(t *testing.T) {
	p := newTestPool(t, 3)

	id1, retry := p.Subscribe("ns", "t1", 10)
	if !retry {
		t.Fatalf("Subscribe t1: expected accepted")
	}
	id2, retry := p.Subscribe("ns", "t2", 20)
	if !retry {
		t.Fatalf("Subscribe t2: expected accepted")
	}

	path := t.TempDir() + "/subs.snap"
	waitForPool(t, func() bool {
		if err := p.SaveSubscriptions(path); err != nil {
			return false
		}
		got, err := substore.ReadSnapshot(path)
		return err == nil && len(got) == 2
	})

	got, err := substore.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 persisted records, got %d", len(got))
	}

	ok, retry := p.Unsubscribe(id1)
	if !ok || !retry {
		t.Fatalf("Unsubscribe id1: ok=%v retry=%v", ok, retry)
	}
	ok, retry = p.Unsubscribe(id2)
	if !ok || !retry {
		t.Fatalf("Unsubscribe id2: ok=%v retry=%v", ok, retry)
	}

	waitForPool(t, func() bool {
		if err := p.SaveSubscriptions(path); err != nil {
			return false
		}
		got, err := substore.ReadSnapshot(path)
		return err == nil && len(got) == 0
	})
}

func TestPoolSaveSubscriptionsEmptyPool(t *testing.T) {
	p := newTestPool(t, 1)
	path := t.TempDir() + "/subs.snap"
	if err := p.SaveSubscriptions(path); err != nil {
		t.Fatalf("SaveSubscriptions on empty pool: %v", err)
	}
	got, err := substore.ReadSnapshot(path)
	if err != nil {
		t.Fatalf("ReadSnapshot: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no records, got %v", got)
	}
}
