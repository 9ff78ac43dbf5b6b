// Package logstore is a pebble-backed reference implementation of the
// LogStorage capability: an append-only, per-LogID sequence of records that
// the log tailer reads asynchronously. Sharding a topic across logs (the
// Router's job) is out of this package's scope — logstore only knows how to
// append to and read from a single numbered log.
package logstore
