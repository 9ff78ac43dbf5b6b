package wire

import "github.com/rzbill/rocketspeed/internal/rserrors"

// Message is implemented by every message body. Type identifies the wire
// tag used to dispatch Encode/Decode; TenantID travels in the common
// envelope header, not the body.
type Message interface {
	Type() MessageType
}

// Envelope is a fully decoded wire message: the common header plus body.
type Envelope struct {
	TenantID uint16
	Body     Message
}

// Ping carries a liveness probe or its response.
type Ping struct {
	PingType PingType
	Cookie   []byte
}

func (*Ping) Type() MessageType { return TypePing }

// Publish is a record appended by a producer: carries the previous and new
// seqno (spec invariant: seqno >= prev_seqno), destination topic, the
// message's 16-byte identity, and its payload.
type Publish struct {
	PrevSeqno uint64
	Seqno     uint64
	Namespace string
	Topic     string
	MsgID     MsgID
	Payload   []byte
}

func (*Publish) Type() MessageType { return TypePublish }

// DeliverLegacy is the pre-Deliver wire shape: identical body to Publish,
// sent downstream to a subscriber instead of upstream from a producer.
type DeliverLegacy struct {
	PrevSeqno uint64
	Seqno     uint64
	Namespace string
	Topic     string
	MsgID     MsgID
	Payload   []byte
}

func (*DeliverLegacy) Type() MessageType { return TypeDeliverLegacy }

// AckEntry is one (status, MsgID, seqno) triple inside a DataAck.
type AckEntry struct {
	Status AckStatus
	MsgID  MsgID
	Seqno  uint64
}

// DataAck batches acknowledgements of previously published records.
type DataAck struct {
	Acks []AckEntry
}

func (*DataAck) Type() MessageType { return TypeDataAck }

// GapLegacy is the pre-DeliverGap wire shape for a gap notification.
type GapLegacy struct {
	Namespace string
	Topic     string
	GapType   GapType
	From      uint64
	To        uint64
}

func (*GapLegacy) Type() MessageType { return TypeGapLegacy }

// Goodbye tears down every stream multiplexed on the socket that sent it.
type Goodbye struct {
	Code   GoodbyeCode
	Origin OriginType
}

func (*Goodbye) Type() MessageType { return TypeGoodbye }

// Subscribe requests delivery of a topic starting at a seqno (or, per
// source, multiple cursors for a batched resubscribe).
type Subscribe struct {
	Namespace    string
	Topic        string
	LegacySeqno  uint64
	SubID        uint64
	Sources      []string
	Seqnos       []uint64
}

func (*Subscribe) Type() MessageType { return TypeSubscribe }

// Unsubscribe ends a subscription, client- or server-initiated.
type Unsubscribe struct {
	SubID     uint64
	Reason    UnsubscribeReason
	Namespace string
	Topic     string
}

func (*Unsubscribe) Type() MessageType { return TypeUnsubscribe }

// deliverHeader is embedded at the front of Deliver, DeliverGap, and
// DeliverData: a subscription id plus a delta-encoded seqno advance.
type deliverHeader struct {
	SubID       uint64
	PrevSeqno   uint64
	SeqnoDelta  uint64 // seqno - prev_seqno
}

func (h deliverHeader) seqno() uint64 { return h.PrevSeqno + h.SeqnoDelta }

func deliverHeaderFor(subID, prevSeqno, seqno uint64) deliverHeader {
	if !rserrors.Assert(seqno >= prevSeqno, "wire: deliver seqno regressed below prev_seqno") {
		// Recover by clamping to a zero advance instead of wrapping the
		// delta around.
		seqno = prevSeqno
	}
	return deliverHeader{SubID: subID, PrevSeqno: prevSeqno, SeqnoDelta: seqno - prevSeqno}
}

// Deliver is the modern, delta-encoded data-advance notification: the
// payload itself travels separately in a DeliverData.
type Deliver struct {
	SubID     uint64
	PrevSeqno uint64
	Seqno     uint64
}

func (*Deliver) Type() MessageType { return TypeDeliver }

// DeliverGap reports a gap for an existing subscription.
type DeliverGap struct {
	SubID     uint64
	PrevSeqno uint64
	Seqno     uint64
	GapType   GapType
	Namespace string
	Topic     string
	Source    string
}

func (*DeliverGap) Type() MessageType { return TypeDeliverGap }

// DeliverData is the modern data-carrying delivery.
type DeliverData struct {
	SubID     uint64
	PrevSeqno uint64
	Seqno     uint64
	MsgID     MsgID
	Payload   []byte
	Namespace string
	Topic     string
	Source    string
}

func (*DeliverData) Type() MessageType { return TypeDeliverData }

// DeliverBatch packs several DeliverData bodies into one frame.
type DeliverBatch struct {
	Items []DeliverData
}

func (*DeliverBatch) Type() MessageType { return TypeDeliverBatch }

// Heartbeat lists every shard alive at the sender as of SourceTimeMs.
type Heartbeat struct {
	SourceTimeMs uint64
	ShardIDs     []uint64 // strictly ascending
}

func (*Heartbeat) Type() MessageType { return TypeHeartbeat }

// HeartbeatDelta is a Heartbeat expressed relative to the previously sent
// shard set: added and removed shard ids since then.
type HeartbeatDelta struct {
	SourceTimeMs uint64
	Added        []uint64
	Removed      []uint64
}

func (*HeartbeatDelta) Type() MessageType { return TypeHeartbeatDelta }

// FindTailSeqno asks the tower for the current tail seqno of a topic.
type FindTailSeqno struct {
	Namespace string
	Topic     string
}

func (*FindTailSeqno) Type() MessageType { return TypeFindTailSeqno }

// TailSeqno answers a FindTailSeqno.
type TailSeqno struct {
	Namespace string
	Topic     string
	Seqno     uint64
}

func (*TailSeqno) Type() MessageType { return TypeTailSeqno }

// BacklogQuery asks whether data exists for a subscription's topic in the
// range (PrevSeqno, NextSeqno].
type BacklogQuery struct {
	HasSubID  bool
	SubID     uint64
	Namespace string
	Topic     string
	Source    string
	PrevSeqno uint64
	NextSeqno uint64
}

func (*BacklogQuery) Type() MessageType { return TypeBacklogQuery }

// BacklogFill answers a BacklogQuery.
type BacklogFill struct {
	HasSubID  bool
	SubID     uint64
	Namespace string
	Topic     string
	Source    string
	PrevSeqno uint64
	NextSeqno uint64
	Result    BacklogResult
	Info      string
}

func (*BacklogFill) Type() MessageType { return TypeBacklogFill }

// KV is one key/value pair in an Introduction property bag.
type KV struct {
	Key   string
	Value string
}

// Introduction is exchanged immediately after a socket opens: stream-level
// properties (protocol negotiation) and client-level properties (identity).
type Introduction struct {
	StreamProperties []KV
	ClientProperties []KV
}

func (*Introduction) Type() MessageType { return TypeIntroduction }

// SubAck confirms a Subscribe and carries the resulting per-source cursors.
type SubAck struct {
	Namespace string
	Topic     string
	SubID     uint64
	Sources   []string
	Cursors   []uint64
}

func (*SubAck) Type() MessageType { return TypeSubAck }
