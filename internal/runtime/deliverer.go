package runtime

import (
	"sync"

	"github.com/rzbill/rocketspeed/internal/controlroom"
	"github.com/rzbill/rocketspeed/internal/rserrors"
	"github.com/rzbill/rocketspeed/internal/wire"
)

// DeliveryFunc receives one DeliverData the control room sends a watched
// host. Acks are not passed to it.
type DeliveryFunc func(namespace, topic string, subID, seqno uint64, msgID wire.MsgID, payload []byte) error

// LocalDeliverer implements controlroom.Deliverer by fanning out to
// in-process callbacks registered via Runtime.Watch, standing in for the
// mux/socket transport a networked rocketeer server dials out over. A host
// with no registered callback is treated as unreachable: DeliverData/Ack
// return NotFound rather than silently succeeding, so the control room's
// NextExpectedSeqno bookkeeping does not advance past data nothing actually
// received.
type LocalDeliverer struct {
	mu    sync.RWMutex
	hosts map[controlroom.HostID]DeliveryFunc
}

// NewLocalDeliverer builds an empty LocalDeliverer.
func NewLocalDeliverer() *LocalDeliverer {
	return &LocalDeliverer{hosts: make(map[controlroom.HostID]DeliveryFunc)}
}

// Register binds fn as host's delivery callback, replacing any prior one.
// Returns a func that unregisters it.
func (d *LocalDeliverer) Register(host controlroom.HostID, fn DeliveryFunc) func() {
	d.mu.Lock()
	d.hosts[host] = fn
	d.mu.Unlock()
	return func() {
		d.mu.Lock()
		delete(d.hosts, host)
		d.mu.Unlock()
	}
}

func (d *LocalDeliverer) DeliverData(host controlroom.HostID, namespace, topic string, subID uint64, seqno uint64, msgID wire.MsgID, payload []byte) error {
	d.mu.RLock()
	fn, ok := d.hosts[host]
	d.mu.RUnlock()
	if !ok {
		return rserrors.New(rserrors.NotFound, "runtime: no watcher registered for host")
	}
	return fn(namespace, topic, subID, seqno, msgID, payload)
}

func (d *LocalDeliverer) Ack(host controlroom.HostID, namespace, topic string, subID uint64, cursor uint64) error {
	d.mu.RLock()
	_, ok := d.hosts[host]
	d.mu.RUnlock()
	if !ok {
		return rserrors.New(rserrors.NotFound, "runtime: no watcher registered for host")
	}
	return nil
}
