// Package substore is a small file-backed subscription snapshot writer and
// reader: length-prefixed msgpack records of (tenant, namespace, topic,
// seqno), usable by the multi-shard subscriber's SaveSubscriptions call to
// persist what to resubscribe to across a process restart.
package substore
