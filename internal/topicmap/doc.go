// Package topicmap implements an open-addressed, linear-probing hash table
// from (namespace, topic) to the caller-owned state associated with a
// subscription on it. Entries are located by XXH64(namespace, topic); the
// table never stores tombstones, instead backward-shifting entries on
// delete (Robin Hood hashing), and resizes to keep the load factor inside
// a fixed band.
package topicmap
