package wire

import (
	"fmt"

	"github.com/rzbill/rocketspeed/internal/rserrors"
)

// Serialize encodes a full envelope: type tag, tenant id, then body.
func Serialize(env Envelope) ([]byte, error) {
	if env.Body == nil {
		return nil, rserrors.New(rserrors.InvalidArgument, "wire: nil message body")
	}
	w := newWriter()
	w.byte(byte(env.Body.Type()))
	w.u16(env.TenantID)
	if err := encodeBody(w, env.Body); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Deserialize decodes a full envelope previously produced by Serialize.
// Unrecognized trailing bytes and absent optional trailing fields are
// tolerated; a truncated required field is an InvalidArgument error.
func Deserialize(b []byte) (Envelope, error) {
	r := newReader(b)
	tb, ok := r.byteField()
	if !ok {
		return Envelope{}, rserrors.New(rserrors.InvalidArgument, "wire: missing type tag")
	}
	tenantID, ok := r.u16()
	if !ok {
		return Envelope{}, rserrors.New(rserrors.InvalidArgument, "wire: missing tenant id")
	}
	body, err := decodeBody(MessageType(tb), r)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{TenantID: tenantID, Body: body}, nil
}

func encodeBody(w *writer, m Message) error {
	switch v := m.(type) {
	case *Ping:
		w.byte(byte(v.PingType))
		w.bytesField(v.Cookie)
	case *Publish:
		w.varint(v.PrevSeqno)
		w.varint(v.Seqno)
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.raw(v.MsgID[:])
		w.raw(v.Payload)
	case *DeliverLegacy:
		w.varint(v.PrevSeqno)
		w.varint(v.Seqno)
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.raw(v.MsgID[:])
		w.raw(v.Payload)
	case *DataAck:
		w.varint(uint64(len(v.Acks)))
		for _, a := range v.Acks {
			w.byte(byte(a.Status))
			w.raw(a.MsgID[:])
			w.varint(a.Seqno)
		}
	case *GapLegacy:
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.byte(byte(v.GapType))
		w.varint(v.From)
		w.varint(v.To)
	case *Goodbye:
		w.byte(byte(v.Code))
		w.byte(byte(v.Origin))
	case *Subscribe:
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.varint(v.LegacySeqno)
		w.varint(v.SubID)
		w.varint(uint64(len(v.Sources)))
		for i, s := range v.Sources {
			w.stringField(s)
			w.varint(v.Seqnos[i])
		}
	case *Unsubscribe:
		w.varint(v.SubID)
		w.byte(byte(v.Reason))
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
	case *Deliver:
		encodeDeliverHeader(w, deliverHeaderFor(v.SubID, v.PrevSeqno, v.Seqno))
	case *DeliverGap:
		encodeDeliverHeader(w, deliverHeaderFor(v.SubID, v.PrevSeqno, v.Seqno))
		w.byte(byte(v.GapType))
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.stringField(v.Source)
	case *DeliverData:
		encodeDeliverHeader(w, deliverHeaderFor(v.SubID, v.PrevSeqno, v.Seqno))
		w.raw(v.MsgID[:])
		w.bytesField(v.Payload)
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.stringField(v.Source)
	case *DeliverBatch:
		w.varint(uint64(len(v.Items)))
		for i := range v.Items {
			item := v.Items[i]
			iw := newWriter()
			if err := encodeBody(iw, &item); err != nil {
				return err
			}
			w.bytesField(iw.Bytes())
		}
	case *Heartbeat:
		w.u64(v.SourceTimeMs)
		for _, id := range v.ShardIDs {
			w.varint(id)
		}
	case *HeartbeatDelta:
		w.u64(v.SourceTimeMs)
		w.varint(uint64(len(v.Added)))
		for _, id := range v.Added {
			w.varint(id)
		}
		w.varint(uint64(len(v.Removed)))
		for _, id := range v.Removed {
			w.varint(id)
		}
	case *FindTailSeqno:
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
	case *TailSeqno:
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.varint(v.Seqno)
	case *BacklogQuery:
		encodeOptionalSubID(w, v.HasSubID, v.SubID)
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.stringField(v.Source)
		w.varint(v.PrevSeqno)
		w.varint(v.NextSeqno)
	case *BacklogFill:
		encodeOptionalSubID(w, v.HasSubID, v.SubID)
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.stringField(v.Source)
		w.varint(v.PrevSeqno)
		w.varint(v.NextSeqno)
		w.byte(byte(v.Result))
		w.stringField(v.Info)
	case *Introduction:
		w.varint(uint64(len(v.StreamProperties)))
		for _, kv := range v.StreamProperties {
			w.stringField(kv.Key)
			w.stringField(kv.Value)
		}
		w.varint(uint64(len(v.ClientProperties)))
		for _, kv := range v.ClientProperties {
			w.stringField(kv.Key)
			w.stringField(kv.Value)
		}
	case *SubAck:
		w.stringField(v.Namespace)
		w.stringField(v.Topic)
		w.varint(v.SubID)
		w.varint(uint64(len(v.Sources)))
		for i, s := range v.Sources {
			w.stringField(s)
			w.varint(v.Cursors[i])
		}
	default:
		return rserrors.New(rserrors.InvalidArgument, fmt.Sprintf("wire: unknown message body %T", m))
	}
	return nil
}

func encodeDeliverHeader(w *writer, h deliverHeader) {
	w.varint(h.SubID)
	w.varint(h.PrevSeqno)
	w.varint(h.SeqnoDelta)
}

func decodeDeliverHeader(r *reader) (deliverHeader, bool) {
	subID, ok := r.varint()
	if !ok {
		return deliverHeader{}, false
	}
	prev, ok := r.varint()
	if !ok {
		return deliverHeader{}, false
	}
	delta, ok := r.varint()
	if !ok {
		return deliverHeader{}, false
	}
	return deliverHeader{SubID: subID, PrevSeqno: prev, SeqnoDelta: delta}, true
}

func encodeOptionalSubID(w *writer, has bool, subID uint64) {
	if has {
		w.byte(1)
		w.varint(subID)
	} else {
		w.byte(0)
	}
}

func decodeOptionalSubID(r *reader) (bool, uint64, bool) {
	present, ok := r.byteField()
	if !ok {
		return false, 0, false
	}
	if present == 0 {
		return false, 0, true
	}
	subID, ok := r.varint()
	if !ok {
		return false, 0, false
	}
	return true, subID, true
}

func decodeBody(t MessageType, r *reader) (Message, error) {
	fail := func(field string) error {
		return rserrors.New(rserrors.InvalidArgument, fmt.Sprintf("wire: %s: truncated %s", t, field))
	}
	switch t {
	case TypePing:
		pt, ok := r.byteField()
		if !ok {
			return nil, fail("ping_type")
		}
		cookie, ok := r.bytesField()
		if !ok {
			cookie = nil
		}
		return &Ping{PingType: PingType(pt), Cookie: cookie}, nil
	case TypePublish, TypeDeliverLegacy:
		prev, ok := r.varint()
		if !ok {
			return nil, fail("prev_seqno")
		}
		seqno, ok := r.varint()
		if !ok {
			return nil, fail("seqno")
		}
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		idb, ok := r.fixed(16)
		if !ok {
			return nil, fail("msg_id")
		}
		var id MsgID
		copy(id[:], idb)
		payload := r.rest()
		if t == TypePublish {
			return &Publish{PrevSeqno: prev, Seqno: seqno, Namespace: ns, Topic: topic, MsgID: id, Payload: payload}, nil
		}
		return &DeliverLegacy{PrevSeqno: prev, Seqno: seqno, Namespace: ns, Topic: topic, MsgID: id, Payload: payload}, nil
	case TypeDataAck:
		n, ok := r.varint()
		if !ok {
			return nil, fail("count")
		}
		acks := make([]AckEntry, 0, n)
		for i := uint64(0); i < n; i++ {
			st, ok := r.byteField()
			if !ok {
				return nil, fail("ack_status")
			}
			idb, ok := r.fixed(16)
			if !ok {
				return nil, fail("msg_id")
			}
			var id MsgID
			copy(id[:], idb)
			seqno, ok := r.varint()
			if !ok {
				return nil, fail("ack_seqno")
			}
			acks = append(acks, AckEntry{Status: AckStatus(st), MsgID: id, Seqno: seqno})
		}
		return &DataAck{Acks: acks}, nil
	case TypeGapLegacy:
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		gt, ok := r.byteField()
		if !ok {
			return nil, fail("gap_type")
		}
		from, ok := r.varint()
		if !ok {
			return nil, fail("from")
		}
		to, ok := r.varint()
		if !ok {
			return nil, fail("to")
		}
		return &GapLegacy{Namespace: ns, Topic: topic, GapType: GapType(gt), From: from, To: to}, nil
	case TypeGoodbye:
		code, ok := r.byteField()
		if !ok {
			return nil, fail("code")
		}
		origin, ok := r.byteField()
		if !ok {
			origin = byte(OriginClient)
		}
		return &Goodbye{Code: GoodbyeCode(code), Origin: OriginType(origin)}, nil
	case TypeSubscribe:
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		legacy, ok := r.varint()
		if !ok {
			return nil, fail("legacy_seqno")
		}
		subID, ok := r.varint()
		if !ok {
			return nil, fail("sub_id")
		}
		n, ok := r.varint()
		if !ok {
			n = 0
		}
		sources := make([]string, 0, n)
		seqnos := make([]uint64, 0, n)
		for i := uint64(0); i < n; i++ {
			s, ok := r.stringField()
			if !ok {
				return nil, fail("source")
			}
			sq, ok := r.varint()
			if !ok {
				return nil, fail("source_seqno")
			}
			sources = append(sources, s)
			seqnos = append(seqnos, sq)
		}
		return &Subscribe{Namespace: ns, Topic: topic, LegacySeqno: legacy, SubID: subID, Sources: sources, Seqnos: seqnos}, nil
	case TypeUnsubscribe:
		subID, ok := r.varint()
		if !ok {
			return nil, fail("sub_id")
		}
		reason, ok := r.byteField()
		if !ok {
			return nil, fail("reason")
		}
		ns, ok := r.stringField()
		if !ok {
			ns = ""
		}
		topic, ok := r.stringField()
		if !ok {
			topic = ""
		}
		return &Unsubscribe{SubID: subID, Reason: UnsubscribeReason(reason), Namespace: ns, Topic: topic}, nil
	case TypeDeliver:
		h, ok := decodeDeliverHeader(r)
		if !ok {
			return nil, fail("deliver_header")
		}
		return &Deliver{SubID: h.SubID, PrevSeqno: h.PrevSeqno, Seqno: h.seqno()}, nil
	case TypeDeliverGap:
		h, ok := decodeDeliverHeader(r)
		if !ok {
			return nil, fail("deliver_header")
		}
		gt, ok := r.byteField()
		if !ok {
			return nil, fail("gap_type")
		}
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		source, ok := r.stringField()
		if !ok {
			source = ""
		}
		return &DeliverGap{SubID: h.SubID, PrevSeqno: h.PrevSeqno, Seqno: h.seqno(), GapType: GapType(gt), Namespace: ns, Topic: topic, Source: source}, nil
	case TypeDeliverData:
		h, ok := decodeDeliverHeader(r)
		if !ok {
			return nil, fail("deliver_header")
		}
		idb, ok := r.fixed(16)
		if !ok {
			return nil, fail("msg_id")
		}
		var id MsgID
		copy(id[:], idb)
		payload, ok := r.bytesField()
		if !ok {
			return nil, fail("payload")
		}
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		source, ok := r.stringField()
		if !ok {
			source = ""
		}
		return &DeliverData{SubID: h.SubID, PrevSeqno: h.PrevSeqno, Seqno: h.seqno(), MsgID: id, Payload: payload, Namespace: ns, Topic: topic, Source: source}, nil
	case TypeDeliverBatch:
		n, ok := r.varint()
		if !ok {
			n = 0
		}
		items := make([]DeliverData, 0, n)
		for i := uint64(0); i < n; i++ {
			ib, ok := r.bytesField()
			if !ok {
				return nil, fail("batch_item")
			}
			body, err := decodeBody(TypeDeliverData, newReader(ib))
			if err != nil {
				return nil, err
			}
			items = append(items, *body.(*DeliverData))
		}
		return &DeliverBatch{Items: items}, nil
	case TypeHeartbeat:
		ts, ok := r.u64()
		if !ok {
			return nil, fail("source_time_ms")
		}
		var shards []uint64
		for r.Remaining() > 0 {
			id, ok := r.varint()
			if !ok {
				break
			}
			shards = append(shards, id)
		}
		return &Heartbeat{SourceTimeMs: ts, ShardIDs: shards}, nil
	case TypeHeartbeatDelta:
		ts, ok := r.u64()
		if !ok {
			return nil, fail("source_time_ms")
		}
		na, ok := r.varint()
		if !ok {
			na = 0
		}
		added := make([]uint64, 0, na)
		for i := uint64(0); i < na; i++ {
			id, ok := r.varint()
			if !ok {
				return nil, fail("added")
			}
			added = append(added, id)
		}
		nr, ok := r.varint()
		if !ok {
			nr = 0
		}
		removed := make([]uint64, 0, nr)
		for i := uint64(0); i < nr; i++ {
			id, ok := r.varint()
			if !ok {
				return nil, fail("removed")
			}
			removed = append(removed, id)
		}
		return &HeartbeatDelta{SourceTimeMs: ts, Added: added, Removed: removed}, nil
	case TypeFindTailSeqno:
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		return &FindTailSeqno{Namespace: ns, Topic: topic}, nil
	case TypeTailSeqno:
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		seqno, ok := r.varint()
		if !ok {
			seqno = 0
		}
		return &TailSeqno{Namespace: ns, Topic: topic, Seqno: seqno}, nil
	case TypeBacklogQuery:
		has, subID, ok := decodeOptionalSubID(r)
		if !ok {
			return nil, fail("sub_id")
		}
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		source, ok := r.stringField()
		if !ok {
			source = ""
		}
		prev, ok := r.varint()
		if !ok {
			return nil, fail("prev_seqno")
		}
		next, ok := r.varint()
		if !ok {
			return nil, fail("next_seqno")
		}
		return &BacklogQuery{HasSubID: has, SubID: subID, Namespace: ns, Topic: topic, Source: source, PrevSeqno: prev, NextSeqno: next}, nil
	case TypeBacklogFill:
		has, subID, ok := decodeOptionalSubID(r)
		if !ok {
			return nil, fail("sub_id")
		}
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		source, ok := r.stringField()
		if !ok {
			source = ""
		}
		prev, ok := r.varint()
		if !ok {
			return nil, fail("prev_seqno")
		}
		next, ok := r.varint()
		if !ok {
			return nil, fail("next_seqno")
		}
		result, ok := r.byteField()
		if !ok {
			return nil, fail("result")
		}
		info, ok := r.stringField()
		if !ok {
			info = ""
		}
		return &BacklogFill{HasSubID: has, SubID: subID, Namespace: ns, Topic: topic, Source: source, PrevSeqno: prev, NextSeqno: next, Result: BacklogResult(result), Info: info}, nil
	case TypeIntroduction:
		n1, ok := r.varint()
		if !ok {
			n1 = 0
		}
		streamProps := make([]KV, 0, n1)
		for i := uint64(0); i < n1; i++ {
			k, ok := r.stringField()
			if !ok {
				return nil, fail("stream_property_key")
			}
			v, ok := r.stringField()
			if !ok {
				return nil, fail("stream_property_value")
			}
			streamProps = append(streamProps, KV{Key: k, Value: v})
		}
		n2, ok := r.varint()
		if !ok {
			n2 = 0
		}
		clientProps := make([]KV, 0, n2)
		for i := uint64(0); i < n2; i++ {
			k, ok := r.stringField()
			if !ok {
				return nil, fail("client_property_key")
			}
			v, ok := r.stringField()
			if !ok {
				return nil, fail("client_property_value")
			}
			clientProps = append(clientProps, KV{Key: k, Value: v})
		}
		return &Introduction{StreamProperties: streamProps, ClientProperties: clientProps}, nil
	case TypeSubAck:
		ns, ok := r.stringField()
		if !ok {
			return nil, fail("namespace")
		}
		topic, ok := r.stringField()
		if !ok {
			return nil, fail("topic")
		}
		subID, ok := r.varint()
		if !ok {
			return nil, fail("sub_id")
		}
		n, ok := r.varint()
		if !ok {
			n = 0
		}
		sources := make([]string, 0, n)
		cursors := make([]uint64, 0, n)
		for i := uint64(0); i < n; i++ {
			s, ok := r.stringField()
			if !ok {
				return nil, fail("source")
			}
			c, ok := r.varint()
			if !ok {
				return nil, fail("cursor")
			}
			sources = append(sources, s)
			cursors = append(cursors, c)
		}
		return &SubAck{Namespace: ns, Topic: topic, SubID: subID, Sources: sources, Cursors: cursors}, nil
	default:
		return nil, rserrors.New(rserrors.InvalidArgument, fmt.Sprintf("wire: unknown message type %d", t))
	}
}
