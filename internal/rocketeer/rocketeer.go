package rocketeer

import (
	"github.com/rzbill/rocketspeed/internal/mux"
	"github.com/rzbill/rocketspeed/internal/wire"
	"github.com/rzbill/rocketspeed/pkg/id"
)

// TerminationSource identifies who ended an InboundSubscription, passed to
// HandleTermination so the application can tell a self-inflicted Terminate
// apart from a subscriber-initiated Unsubscribe or Goodbye.
type TerminationSource int

const (
	TerminationRocketeer TerminationSource = iota
	TerminationSubscriber
)

// InboundSubscription is the communication layer's bookkeeping for one
// (stream, sub_id) pair and the tenant it belongs to. The last seqno
// delivered or advanced past is kept by the Server, not in this struct.
type InboundSubscription struct {
	ID        InboundID
	Stream    mux.StreamID
	SubID     uint64
	TenantID  uint16
	Namespace string
	Topic     string
	// OpenedAt is minted when the Subscribe arrives; sorting stamps
	// reproduces arrival order across workers.
	OpenedAt id.ID
}

// Rocketeer is the application-defined producer of deliveries that the
// Server wraps. Implementations receive callbacks on the worker goroutine
// that owns the subscription; they must not block.
type Rocketeer interface {
	// HandleNewSubscription is called once per incoming Subscribe, after
	// the InboundSubscription has been allocated.
	HandleNewSubscription(sub InboundSubscription, startSeqno uint64)
	// HandleTermination is called once the InboundSubscription is torn
	// down, whether the application called Terminate or the subscriber
	// sent Unsubscribe/Goodbye.
	HandleTermination(sub InboundSubscription, source TerminationSource, reason wire.UnsubscribeReason)
}

// Sender is the narrow send surface the Server needs to reach a stream.
// It is satisfied by the socket/mux layer in production.
type Sender interface {
	SendDeliverData(stream mux.StreamID, msg *wire.DeliverData) error
	SendDeliverGap(stream mux.StreamID, msg *wire.DeliverGap) error
	SendUnsubscribe(stream mux.StreamID, msg *wire.Unsubscribe) error
}

// Metrics is the optional observability hook for reordered drops.
type Metrics interface {
	ReorderedDrop(namespace, topic string)
}
