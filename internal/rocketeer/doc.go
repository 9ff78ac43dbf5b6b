// Package rocketeer implements the server-side counterpart to the
// subscription engine: the communication layer that wraps an
// application-defined Rocketeer, enforcing seqno monotonicity on every
// outbound Deliver/Advance and routing thread-safe Deliver/Advance/
// Terminate calls back to the worker that owns each InboundSubscription.
package rocketeer
