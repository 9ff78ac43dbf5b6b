// Package router maps a (namespace, topic) to the shard and log that own
// it, and a shard to the server currently hosting it. Subscribers use it
// to pick a destination on subscribe and to notice, after a reconnect,
// that the topology moved out from under them.
package router
