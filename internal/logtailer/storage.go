package logtailer

import (
	"context"

	"github.com/rzbill/rocketspeed/internal/storage/logstore"
)

// ReaderHandle is an open tailing subscription on a single log.
type ReaderHandle interface {
	Close()
}

// Storage is the capability logtailer reads through. It is satisfied by
// StoreAdapter wrapping *logstore.Store; tests supply their own fakes.
type Storage interface {
	OpenReader(logID, startSeqno uint64, onRecord logstore.RecordCallback, onGap logstore.GapCallback) ReaderHandle
	FindLatestSeqno(ctx context.Context, logID uint64) (uint64, error)
}

// StoreAdapter adapts *logstore.Store to the Storage interface. The
// indirection exists because logstore.Store.OpenReader returns a concrete
// *logstore.Reader, not an interface, so it cannot satisfy Storage directly.
type StoreAdapter struct {
	Store *logstore.Store
}

func (a StoreAdapter) OpenReader(logID, startSeqno uint64, onRecord logstore.RecordCallback, onGap logstore.GapCallback) ReaderHandle {
	return a.Store.OpenReader(logID, startSeqno, onRecord, onGap)
}

func (a StoreAdapter) FindLatestSeqno(ctx context.Context, logID uint64) (uint64, error) {
	return a.Store.FindLatestSeqno(ctx, logID)
}
