// Package eventloop implements the single-threaded cooperative scheduler
// that every other engine component runs on top of: one goroutine drains a
// FIFO command queue, runs registered read callbacks, and fires a periodic
// tick, so that nothing touching shared state needs its own lock.
package eventloop
