package logtailer

import (
	"strconv"
	"sync"

	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/storage/logstore"
	"github.com/rzbill/rocketspeed/internal/wire"
	logpkg "github.com/rzbill/rocketspeed/pkg/log"
)

// OnRecord is invoked, on the owning loop, for each delivered record.
type OnRecord func(logID, seqno uint64, header, payload []byte)

// OnGap is invoked, on the owning loop, whenever a hole appears in the
// seqno sequence a reader expected to see.
type OnGap func(logID, from, to uint64, gapType wire.GapType)

// Metrics is the optional observability hook for gap and stale-drop
// counts; a nil Metrics on New disables it.
type Metrics interface {
	GapReported(gapType string)
	StaleDropped(logID string)
}

type logState struct {
	handle ReaderHandle
	next   uint64 // NextExpectedSeqno for this (reader, log) pair
}

// AsyncLogReader tails one or more logs, converting the underlying
// storage's own callback thread into commands queued on loop so every
// downstream consumer only ever observes these callbacks serialized with
// the rest of its state machine.
type AsyncLogReader struct {
	storage Storage
	loop    *eventloop.Loop
	onRec   OnRecord
	onGap   OnGap
	metrics Metrics
	logger  logpkg.Logger

	mu   sync.Mutex
	logs map[uint64]*logState
}

// New builds an AsyncLogReader. onRec/onGap are always invoked from loop's
// goroutine. metrics may be nil to disable gap/drop reporting.
func New(storage Storage, loop *eventloop.Loop, onRec OnRecord, onGap OnGap, metrics Metrics) *AsyncLogReader {
	return &AsyncLogReader{
		storage: storage,
		loop:    loop,
		onRec:   onRec,
		onGap:   onGap,
		metrics: metrics,
		logger:  logpkg.NewNopLogger(),
		logs:    make(map[uint64]*logState),
	}
}

// SetLogger replaces the reader's logger; call before the first Open.
func (r *AsyncLogReader) SetLogger(logger logpkg.Logger) {
	if logger != nil {
		r.logger = logger.WithComponent("logtailer")
	}
}

// Open starts tailing logID from startSeqno (inclusive; 0 means "from the
// beginning"). Opening an already-open log is a no-op error.
func (r *AsyncLogReader) Open(logID, startSeqno uint64) error {
	r.mu.Lock()
	if _, exists := r.logs[logID]; exists {
		r.mu.Unlock()
		return rserrors.New(rserrors.InvalidArgument, "logtailer: log already open")
	}
	st := &logState{next: startSeqno}
	r.logs[logID] = st
	r.mu.Unlock()

	handle := r.storage.OpenReader(logID, startSeqno,
		func(rec logstore.Record) {
			r.loop.Dispatch(func() { r.handleRecord(rec) })
		},
		func(lid, from, to uint64, gt wire.GapType) {
			r.loop.Dispatch(func() { r.handleStorageGap(lid, from, to, gt) })
		})

	r.mu.Lock()
	st.handle = handle
	r.mu.Unlock()
	return nil
}

// Close stops tailing logID.
func (r *AsyncLogReader) Close(logID uint64) {
	r.mu.Lock()
	st, ok := r.logs[logID]
	if ok {
		delete(r.logs, logID)
	}
	r.mu.Unlock()
	if ok && st.handle != nil {
		st.handle.Close()
	}
}

// handleRecord runs on the owning loop. It enforces NextExpectedSeqno
// monotonicity: stale re-deliveries are dropped silently, and a forward
// jump is reported as a retention gap (the record that was expected aged
// out of storage by the time this reader reached it) before delivering the
// record itself.
func (r *AsyncLogReader) handleRecord(rec logstore.Record) {
	r.mu.Lock()
	st, ok := r.logs[rec.LogID]
	r.mu.Unlock()
	if !ok {
		return
	}
	if rec.Seqno < st.next {
		if r.metrics != nil {
			r.metrics.StaleDropped(strconv.FormatUint(rec.LogID, 10))
		}
		return // stale re-delivery, benign
	}
	if rec.Seqno > st.next && st.next != 0 {
		if r.metrics != nil {
			r.metrics.GapReported(wire.GapRetention.String())
		}
		r.logger.Warn("gap ahead of expected seqno",
			logpkg.Uint64("log_id", rec.LogID),
			logpkg.Uint64("from", st.next), logpkg.Uint64("to", rec.Seqno-1))
		r.onGap(rec.LogID, st.next, rec.Seqno-1, wire.GapRetention)
	}
	r.mu.Lock()
	st.next = rec.Seqno + 1
	r.mu.Unlock()
	r.onRec(rec.LogID, rec.Seqno, rec.Header, rec.Payload)
}

// handleStorageGap runs on the owning loop for gaps the storage layer
// itself detected (e.g. a fault-injected data-loss hole).
func (r *AsyncLogReader) handleStorageGap(logID, from, to uint64, gapType wire.GapType) {
	r.mu.Lock()
	st, ok := r.logs[logID]
	if ok && to+1 > st.next {
		st.next = to + 1
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	if r.metrics != nil {
		r.metrics.GapReported(gapType.String())
	}
	r.logger.Debug("storage gap",
		logpkg.Uint64("log_id", logID), logpkg.Uint64("from", from),
		logpkg.Uint64("to", to), logpkg.Str("type", gapType.String()))
	r.onGap(logID, from, to, gapType)
}

// NextExpectedSeqno returns the current NextExpectedSeqno for an open log,
// or (0, false) if it isn't open.
func (r *AsyncLogReader) NextExpectedSeqno(logID uint64) (uint64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.logs[logID]
	if !ok {
		return 0, false
	}
	return st.next, true
}
