// Package pebblestore is the thin pebble handle shared by the record log
// and the namespace registry: point reads and writes, ordered iteration,
// and atomic batch commits, all under one WAL fsync policy chosen at
// Open time.
package pebblestore
