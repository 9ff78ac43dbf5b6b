// Package logtailer implements AsyncLogReader: an asynchronous reader over
// the LogStorage capability that owns one loop-queued callback stream per
// open (reader, log) pair. Storage-thread callbacks are never invoked
// directly on the caller; they are always redispatched onto the supplied
// event loop so downstream state machines never need their own locking.
package logtailer
