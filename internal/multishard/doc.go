// Package multishard fans a single logical subscription engine out across
// several shards (one per-shard Subscriber, created lazily on first use)
// and across several worker threads (subscription ids are partitioned by
// worker so state never needs cross-thread locking).
package multishard
