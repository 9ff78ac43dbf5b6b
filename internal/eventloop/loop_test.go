package eventloop

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestDispatchFIFO(t *testing.T) {
	l := New(Options{QueueSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var order []int
	done := make(chan struct{})
	for i := 0; i < 5; i++ {
		i := i
		l.Dispatch(func() {
			order = append(order, i)
			if i == 4 {
				close(done)
			}
		})
	}
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for dispatched commands")
	}
	for i, v := range order {
		if v != i {
			t.Fatalf("fifo violated: %v", order)
		}
	}
}

type fakeReadEvent struct {
	ready int32
}

func (f *fakeReadEvent) Poll() bool { return atomic.CompareAndSwapInt32(&f.ready, 1, 0) }

func TestRegisterReadEvent(t *testing.T) {
	l := New(Options{QueueSize: 16})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	var fired int32
	ev := &fakeReadEvent{}
	h := l.RegisterReadEvent(ev, func() { atomic.AddInt32(&fired, 1) })
	atomic.StoreInt32(&ev.ready, 1)

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&fired) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if atomic.LoadInt32(&fired) == 0 {
		t.Fatal("read callback never fired")
	}

	h.SetEnabled(false)
	atomic.StoreInt32(&ev.ready, 1)
	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&fired) != 1 {
		t.Fatalf("callback fired after disable: %d", fired)
	}

	h.Cancel()
}

func TestOnTick(t *testing.T) {
	l := New(Options{QueueSize: 16, TickPeriod: 5 * time.Millisecond})
	var ticks int32
	l.OnTick(func() { atomic.AddInt32(&ticks, 1) })
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)

	time.Sleep(50 * time.Millisecond)
	cancel()
	if atomic.LoadInt32(&ticks) < 2 {
		t.Fatalf("expected multiple ticks, got %d", ticks)
	}
}

func TestSendCommandAfterStop(t *testing.T) {
	l := New(Options{QueueSize: 1})
	ctx, cancel := context.WithCancel(context.Background())
	go l.Run(ctx)
	cancel()

	deadline := time.Now().Add(time.Second)
	for !l.Stopped() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !l.Stopped() {
		t.Fatal("loop never stopped")
	}
	if err := l.SendCommand(context.Background(), func() {}); err == nil {
		t.Fatal("expected error sending to a stopped loop")
	}
}
