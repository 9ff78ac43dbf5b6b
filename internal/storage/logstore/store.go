package logstore

import (
	"context"
	"encoding/binary"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	pebblestore "github.com/rzbill/rocketspeed/internal/storage/pebble"
	"github.com/rzbill/rocketspeed/internal/wire"
)

// Record is one entry read back from a log.
type Record struct {
	LogID   uint64
	Seqno   uint64
	Header  []byte
	Payload []byte
}

// RecordCallback is invoked, from the store's internal tailing goroutine,
// once per record as it becomes available.
type RecordCallback func(rec Record)

// GapCallback is invoked when a reader detects a break in the seqno
// sequence it expected to see.
type GapCallback func(logID, from, to uint64, gapType wire.GapType)

// Store is a pebble-backed LogStorage: an append-only sequence of records
// per LogID, with asynchronous tailing for readers that want to be notified
// of new records as they arrive.
type Store struct {
	db *pebblestore.DB

	mu      sync.Mutex
	lastSeq map[uint64]uint64
	notify  map[uint64]chan struct{}

	faultMu    sync.Mutex
	faultHooks []func(logID uint64, seqno uint64) bool // return true to simulate drop
}

// Open builds a Store over an already-open pebble DB.
func Open(db *pebblestore.DB) *Store {
	return &Store{
		db:      db,
		lastSeq: make(map[uint64]uint64),
		notify:  make(map[uint64]chan struct{}),
	}
}

func (s *Store) notifyChan(logID uint64) chan struct{} {
	ch, ok := s.notify[logID]
	if !ok {
		ch = make(chan struct{})
		s.notify[logID] = ch
	}
	return ch
}

// Append writes one record to logID and returns its assigned seqno. Seqnos
// for a given logID are 1-based and strictly increasing.
func (s *Store) Append(ctx context.Context, logID uint64, header, payload []byte) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seqno := s.lastSeq[logID] + 1

	s.faultMu.Lock()
	hooks := append([]func(uint64, uint64) bool(nil), s.faultHooks...)
	s.faultMu.Unlock()
	for _, h := range hooks {
		if h(logID, seqno) {
			// Simulated storage loss: the seqno is consumed (the gap is
			// real from the reader's point of view) but nothing is
			// written for it.
			s.lastSeq[logID] = seqno
			s.wakeReaders(logID)
			return seqno, nil
		}
	}

	b := s.db.NewBatch()
	defer b.Close()
	val := encodeRecord(header, payload)
	if err := b.Set(keyEntry(logID, seqno), val, nil); err != nil {
		return 0, err
	}
	var metaVal [8]byte
	binary.BigEndian.PutUint64(metaVal[:], seqno)
	if err := b.Set(keyMeta(logID), metaVal[:], nil); err != nil {
		return 0, err
	}
	if err := s.db.CommitBatch(b); err != nil {
		return 0, err
	}
	s.lastSeq[logID] = seqno
	s.wakeReaders(logID)
	return seqno, nil
}

func (s *Store) wakeReaders(logID uint64) {
	ch := s.notifyChan(logID)
	close(ch)
	delete(s.notify, logID)
}

// InjectFault registers a hook consulted on every Append; it can simulate a
// storage-level data loss for a given (logID, seqno) by returning true,
// which lets tests and the log tailer's gap-classification paths be
// exercised without real disk failures.
func (s *Store) InjectFault(hook func(logID uint64, seqno uint64) bool) {
	s.faultMu.Lock()
	s.faultHooks = append(s.faultHooks, hook)
	s.faultMu.Unlock()
}

// FindLatestSeqno returns the most recently assigned seqno for logID, or 0
// if nothing has been appended yet.
func (s *Store) FindLatestSeqno(ctx context.Context, logID uint64) (uint64, error) {
	meta, err := s.db.Get(keyMeta(logID))
	if err != nil {
		return 0, nil
	}
	if len(meta) < 8 {
		return 0, nil
	}
	return binary.BigEndian.Uint64(meta), nil
}

// Read returns up to limit records for logID starting at startSeqno
// (inclusive). A zero startSeqno begins at the first entry.
func (s *Store) Read(logID, startSeqno uint64, limit int) ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: entryLowBound(logID),
		UpperBound: entryHighBound(logID),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []Record
	var ok bool
	if startSeqno == 0 {
		ok = iter.First()
	} else {
		ok = iter.SeekGE(keyEntry(logID, startSeqno))
	}
	for ok && (limit <= 0 || len(out) < limit) {
		seq := seqnoFromEntryKey(iter.Key())
		dec, valid := decodeRecord(iter.Value())
		if valid {
			out = append(out, Record{LogID: logID, Seqno: seq, Header: dec.Header, Payload: dec.Payload})
		}
		ok = iter.Next()
	}
	return out, nil
}

// Reader is a handle returned by OpenReader; Close stops tailing.
type Reader struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Close stops the reader's tailing goroutine and waits for it to exit.
func (r *Reader) Close() {
	r.cancel()
	<-r.done
}

// OpenReader starts tailing logID from startSeqno (inclusive), invoking
// onRecord for every record at or after startSeqno already stored, then
// continuing to invoke it as new records are appended. onGap fires if a
// fault-injected drop leaves a hole in the seqno sequence. Both callbacks
// run on a dedicated goroutine per reader (the storage thread), never on
// the caller's goroutine.
func (s *Store) OpenReader(logID, startSeqno uint64, onRecord RecordCallback, onGap GapCallback) *Reader {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	r := &Reader{cancel: cancel, done: done}

	go func() {
		defer close(done)
		next := startSeqno
		if next == 0 {
			next = 1
		}
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}
			recs, err := s.Read(logID, next, 256)
			if err != nil || len(recs) == 0 {
				if s.waitForAppend(ctx, logID, 50*time.Millisecond) {
					continue
				}
				continue
			}
			for _, rec := range recs {
				if rec.Seqno > next {
					onGap(logID, next, rec.Seqno-1, wire.GapDataLoss)
				}
				onRecord(rec)
				next = rec.Seqno + 1
			}
		}
	}()
	return r
}

// waitForAppend blocks until either a new append to logID occurs, timeout
// elapses, or ctx is canceled. Returns true if woken by an append.
func (s *Store) waitForAppend(ctx context.Context, logID uint64, timeout time.Duration) bool {
	s.mu.Lock()
	ch := s.notifyChan(logID)
	s.mu.Unlock()
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	case <-ctx.Done():
		return false
	}
}
