// Package wire implements RocketSpeed's message codec: a 1-byte type tag
// plus 2-byte tenant ID header, followed by fixed-endian integers,
// varint-length-prefixed byte strings, and LEB128 varints.
//
// Encode/Decode round-trip every message defined in the wire format table:
// Ping, Publish, DeliverLegacy, DataAck, GapLegacy, Goodbye, Subscribe,
// Unsubscribe, Deliver, DeliverGap, DeliverData, DeliverBatch, Heartbeat,
// HeartbeatDelta, FindTailSeqno, TailSeqno, BacklogQuery, BacklogFill,
// Introduction, SubAck.
//
// Forward/backward compatibility: trailing bytes a decoder doesn't
// recognize are ignored. Some trailing fields (such as Source, Goodbye's
// Origin, or Ping's Cookie) decode to their zero value when absent; a
// truncated required field is an error.
package wire
