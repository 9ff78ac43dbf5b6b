// Package tailcollapse overlays the single-shard subscriber with
// topic-level collapsing: when two or more downstream subscriptions name
// the same (namespace, topic) and both start at the tail, only one
// upstream subscription is opened and its deliveries are multicast to
// every downstream observer.
package tailcollapse
