// Package mux implements the stream multiplexer that lets many logical
// streams share one socket: a length-prefixed frame format, a per-loop
// partitioned stream ID allocator, outbound batching with backpressure, and
// a synthetic Goodbye delivered to every open stream when the socket closes
// or errors.
package mux
