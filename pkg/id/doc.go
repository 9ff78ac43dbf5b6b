// Package id generates 128-bit, lexicographically sortable identifiers.
//
// An ID is 16 bytes big-endian: 8 bytes of millisecond timestamp followed
// by 8 bytes of per-millisecond sequence, so byte-wise comparison orders
// IDs by creation time. The rocketeer server stamps every inbound
// subscription with one; sorting the stamps reproduces subscription
// arrival order without any extra bookkeeping.
//
// A Generator is safe for concurrent use and strictly monotonic within a
// process: a regressing system clock pins the timestamp at its high-water
// mark, and a sequence overflow inside one millisecond waits the
// millisecond out.
package id
