package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/rzbill/rocketspeed/internal/rserrors"
)

// Command is a unit of work posted onto the loop from any thread.
type Command func()

// ReadEvent is a level-triggered input source the loop polls each pass
// while SetReadEnabled(true): Poll reports whether data is ready, and
// when it is, the loop invokes the callback registered at Register time.
type ReadEvent interface {
	Poll() bool
}

type readSource struct {
	ev      ReadEvent
	cb      func()
	enabled bool
}

// ReadHandle lets a caller unregister or enable/disable a read source
// registered with RegisterReadEvent.
type ReadHandle struct {
	loop *Loop
	id   int
}

// Cancel removes the registration. Safe to call more than once.
func (h ReadHandle) Cancel() {
	h.loop.mu.Lock()
	delete(h.loop.reads, h.id)
	h.loop.mu.Unlock()
}

// SetEnabled toggles whether the loop polls this source. A disabled source
// consumes no CPU via Poll and never fires its callback.
func (h ReadHandle) SetEnabled(enabled bool) {
	h.loop.mu.Lock()
	if s, ok := h.loop.reads[h.id]; ok {
		s.enabled = enabled
	}
	h.loop.mu.Unlock()
}

// Loop is a single-threaded event loop: one goroutine (Run) owns all state
// touched by commands, read callbacks, and tick callbacks. Every other
// thread interacts with it only through Dispatch/SendCommand, which are
// safe to call concurrently and preserve FIFO order per calling thread.
type Loop struct {
	queue      chan Command
	tickPeriod time.Duration
	onTick     []func()

	mu      sync.Mutex
	reads   map[int]*readSource
	nextID  int
	running bool

	closeOnce sync.Once
	done      chan struct{}
}

// Options configures a Loop.
type Options struct {
	// QueueSize bounds the command queue; SendCommand blocks (subject to
	// context cancellation) once it fills.
	QueueSize int
	// TickPeriod is how often registered tick callbacks fire. Zero disables
	// ticking.
	TickPeriod time.Duration
}

// New builds a Loop. Call Run in its own goroutine to start it.
func New(opts Options) *Loop {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 4096
	}
	return &Loop{
		queue:      make(chan Command, opts.QueueSize),
		tickPeriod: opts.TickPeriod,
		reads:      make(map[int]*readSource),
		done:       make(chan struct{}),
	}
}

// Dispatch posts a command for execution on the loop goroutine without
// blocking the caller (other than on a full queue). It is the fire-and-forget
// counterpart to SendCommand.
func (l *Loop) Dispatch(cmd Command) {
	l.queue <- cmd
}

// SendCommand posts a command, honoring ctx cancellation while the queue is
// full. Returns rserrors ShutdownInProgress if the loop has stopped.
func (l *Loop) SendCommand(ctx context.Context, cmd Command) error {
	select {
	case <-l.done:
		return rserrors.New(rserrors.ShutdownInProgress, "eventloop: loop stopped")
	default:
	}
	select {
	case l.queue <- cmd:
		return nil
	case <-l.done:
		return rserrors.New(rserrors.ShutdownInProgress, "eventloop: loop stopped")
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrySendCommand posts cmd without blocking. It reports false if the queue
// is currently full or the loop has stopped, leaving it to the caller to
// back off and retry — the non-blocking counterpart to SendCommand used
// where a full queue should fail fast rather than apply backpressure.
func (l *Loop) TrySendCommand(cmd Command) bool {
	if l.Stopped() {
		return false
	}
	select {
	case l.queue <- cmd:
		return true
	default:
		return false
	}
}

// RegisterReadEvent registers ev for polling; cb runs on the loop goroutine
// whenever Poll reports data ready and the source is enabled. Returns a
// handle to unregister or toggle it.
func (l *Loop) RegisterReadEvent(ev ReadEvent, cb func()) ReadHandle {
	l.mu.Lock()
	id := l.nextID
	l.nextID++
	l.reads[id] = &readSource{ev: ev, cb: cb, enabled: true}
	l.mu.Unlock()
	return ReadHandle{loop: l, id: id}
}

// CreateWriteCallback wraps fn so it is always invoked on the loop
// goroutine, regardless of which thread calls the returned function.
func (l *Loop) CreateWriteCallback(fn func()) func() {
	return func() { l.Dispatch(fn) }
}

// OnTick registers fn to run on every tick period. Must be called before Run.
func (l *Loop) OnTick(fn func()) {
	l.onTick = append(l.onTick, fn)
}

// Run drives the loop until ctx is canceled. It is meant
// to be the entire body of the goroutine that owns this Loop.
func (l *Loop) Run(ctx context.Context) {
	l.mu.Lock()
	l.running = true
	l.mu.Unlock()
	defer l.closeOnce.Do(func() { close(l.done) })

	var ticker *time.Ticker
	var tickCh <-chan time.Time
	if l.tickPeriod > 0 {
		ticker = time.NewTicker(l.tickPeriod)
		defer ticker.Stop()
		tickCh = ticker.C
	}

	poll := time.NewTicker(time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-l.queue:
			cmd()
			l.drainQueue()
		case <-tickCh:
			for _, fn := range l.onTick {
				fn()
			}
		case <-poll.C:
			l.pollReads()
		}
	}
}

// drainQueue runs any further commands already queued without waiting for
// another select iteration, so a burst of Dispatch calls doesn't each pay a
// full scheduler round trip.
func (l *Loop) drainQueue() {
	for {
		select {
		case cmd := <-l.queue:
			cmd()
		default:
			return
		}
	}
}

func (l *Loop) pollReads() {
	l.mu.Lock()
	sources := make([]*readSource, 0, len(l.reads))
	for _, s := range l.reads {
		sources = append(sources, s)
	}
	l.mu.Unlock()
	for _, s := range sources {
		if s.enabled && s.ev.Poll() {
			s.cb()
		}
	}
}

// Stopped reports whether Run has returned.
func (l *Loop) Stopped() bool {
	select {
	case <-l.done:
		return true
	default:
		return false
	}
}
