package pebblestore

import (
	"errors"
	"time"

	"github.com/cockroachdb/pebble"
)

// FsyncMode selects how eagerly committed writes reach the WAL.
type FsyncMode int

const (
	FsyncModeUnspecified FsyncMode = iota
	// FsyncModeAlways syncs the WAL on every committed batch. The safe
	// default for the record log.
	FsyncModeAlways
	// FsyncModeInterval lets pebble coalesce WAL syncs within
	// FsyncInterval (group commit).
	FsyncModeInterval
	// FsyncModeNever issues no application-driven syncs; pebble still
	// syncs on its own schedule. Trades durability for append throughput.
	FsyncModeNever
)

// Options configures Open.
type Options struct {
	// DataDir is the pebble database directory. Required.
	DataDir string
	// Fsync selects the WAL sync policy; unspecified means a small
	// group-commit window.
	Fsync FsyncMode
	// FsyncInterval is the group-commit window for FsyncModeInterval.
	FsyncInterval time.Duration
}

// ErrNotFound is returned by Get for absent keys.
var ErrNotFound = pebble.ErrNotFound

// DB is the storage handle shared by the record log and the namespace
// registry: point reads and writes, ordered iteration, and atomic batch
// commits under one fsync policy.
type DB struct {
	inner    *pebble.DB
	syncMode pebble.WriteOptions
}

// Open creates or opens the database at opts.DataDir.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}

	po := &pebble.Options{}
	switch opts.Fsync {
	case FsyncModeAlways, FsyncModeNever:
		// Sync behavior is carried entirely by the per-commit WriteOptions.
	case FsyncModeInterval:
		interval := opts.FsyncInterval
		if interval <= 0 {
			interval = 5 * time.Millisecond
		}
		po.WALMinSyncInterval = func() time.Duration { return interval }
	default:
		po.WALMinSyncInterval = func() time.Duration { return 5 * time.Millisecond }
	}

	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, err
	}
	db := &DB{inner: inner}
	if opts.Fsync == FsyncModeAlways {
		db.syncMode = pebble.WriteOptions{Sync: true}
	}
	return db, nil
}

// Close closes the database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// NewBatch starts a batch for an atomic multi-key commit.
func (db *DB) NewBatch() *pebble.Batch { return db.inner.NewBatch() }

// CommitBatch commits b under the configured fsync policy.
func (db *DB) CommitBatch(b *pebble.Batch) error {
	if b == nil {
		return errors.New("pebblestore: nil batch")
	}
	return b.Commit(&db.syncMode)
}

// Set writes one key through a single-op batch so it honors the same
// fsync policy as everything else.
func (db *DB) Set(key, value []byte) error {
	b := db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(key, value, nil); err != nil {
		return err
	}
	return db.CommitBatch(b)
}

// Get returns a copy of the value at key, or ErrNotFound.
func (db *DB) Get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// NewIter opens a pebble iterator; the zero options iterate everything in
// key order.
func (db *DB) NewIter(opts *pebble.IterOptions) (*pebble.Iterator, error) {
	return db.inner.NewIter(opts)
}
