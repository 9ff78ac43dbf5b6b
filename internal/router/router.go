package router

import (
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/rzbill/rocketspeed/internal/rserrors"
)

// ShardID identifies one control-room shard.
type ShardID uint32

// LogID identifies one append-only log in storage.
type LogID uint64

// Router is the capability the subscription engine and the control room
// both depend on to go from a topic to the shard/log/server that own it.
// Version changes whenever the shard-to-server assignment changes, so a
// caller holding a stale connection knows to redial.
type Router interface {
	GetShard(namespace, topic string) ShardID
	GetLogID(namespace, topic string) LogID
	GetServerFor(shard ShardID) (string, error)
	Version() uint64
}

func topicHash(namespace, topic string) uint64 {
	d := xxhash.New()
	_, _ = d.WriteString(namespace)
	_, _ = d.WriteString("\x00")
	_, _ = d.WriteString(topic)
	return d.Sum64()
}

// StaticRouter is an in-memory Router backed by a fixed shard count and a
// mutable host assignment, suitable for tests and the single-process
// demo server. Production deployments would replace this with a router
// backed by a cluster membership service; nothing downstream depends on
// that detail, only on the Router interface.
type StaticRouter struct {
	numShards uint32

	mu      sync.RWMutex
	hosts   []string // hosts[shard % len(hosts)]
	version uint64
}

// NewStaticRouter builds a router with numShards shards assigned
// round-robin across hosts.
func NewStaticRouter(numShards uint32, hosts []string) *StaticRouter {
	if numShards == 0 {
		numShards = 1
	}
	cp := make([]string, len(hosts))
	copy(cp, hosts)
	return &StaticRouter{numShards: numShards, hosts: cp}
}

func (r *StaticRouter) GetShard(namespace, topic string) ShardID {
	return ShardID(topicHash(namespace, topic) % uint64(r.numShards))
}

// GetLogID assigns each topic its own log, independent of the hash used
// for sharding so a shard rebalance doesn't imply a log rename.
func (r *StaticRouter) GetLogID(namespace, topic string) LogID {
	return LogID(topicHash(namespace, "log\x00"+topic))
}

func (r *StaticRouter) GetServerFor(shard ShardID) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.hosts) == 0 {
		return "", rserrors.New(rserrors.NotInitialized, "router: no hosts configured")
	}
	return r.hosts[uint32(shard)%uint32(len(r.hosts))], nil
}

func (r *StaticRouter) Version() uint64 {
	return atomic.LoadUint64(&r.version)
}

// NumShards reports the fixed shard count topics are hashed across.
func (r *StaticRouter) NumShards() uint32 { return r.numShards }

// Hosts returns a copy of the current host assignment.
func (r *StaticRouter) Hosts() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cp := make([]string, len(r.hosts))
	copy(cp, r.hosts)
	return cp
}

// UpdateHosts replaces the host list and bumps Version, simulating a
// topology change (host added, removed, or rebalanced).
func (r *StaticRouter) UpdateHosts(hosts []string) {
	r.mu.Lock()
	r.hosts = make([]string, len(hosts))
	copy(r.hosts, hosts)
	r.mu.Unlock()
	atomic.AddUint64(&r.version, 1)
}
