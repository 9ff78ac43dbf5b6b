// Package subscriber implements the single-shard subscriber: the state
// machine driving one subscription's lifecycle against one upstream shard
// connection, including reconnect backoff with jitter, resubscribe on
// reconnect, a short dedup window that absorbs a rapid
// unsubscribe-then-resubscribe flap, and a token-bucket rate limiter
// gating how fast new subscribe requests leave the shard.
package subscriber
