package wire

import (
	"reflect"
	"testing"
)

func roundtrip(t *testing.T, tenantID uint16, m Message) Message {
	t.Helper()
	enc, err := Serialize(Envelope{TenantID: tenantID, Body: m})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	env, err := Deserialize(enc)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if env.TenantID != tenantID {
		t.Fatalf("tenant id mismatch: got %d want %d", env.TenantID, tenantID)
	}
	if env.Body.Type() != m.Type() {
		t.Fatalf("type mismatch: got %s want %s", env.Body.Type(), m.Type())
	}
	return env.Body
}

func TestPingRoundtrip(t *testing.T) {
	want := &Ping{PingType: PingRequest, Cookie: []byte("abc")}
	got := roundtrip(t, 7, want).(*Ping)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestPublishRoundtrip(t *testing.T) {
	want := &Publish{
		PrevSeqno: 10,
		Seqno:     11,
		Namespace: "ns",
		Topic:     "topic.a",
		MsgID:     MsgID{1, 2, 3},
		Payload:   []byte("hello world"),
	}
	got := roundtrip(t, 1, want).(*Publish)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeliverLegacyRoundtrip(t *testing.T) {
	want := &DeliverLegacy{PrevSeqno: 1, Seqno: 2, Namespace: "ns", Topic: "t", MsgID: MsgID{9}, Payload: []byte("x")}
	got := roundtrip(t, 0, want).(*DeliverLegacy)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDataAckRoundtrip(t *testing.T) {
	want := &DataAck{Acks: []AckEntry{
		{Status: AckOK, MsgID: MsgID{1}, Seqno: 5},
		{Status: AckFailed, MsgID: MsgID{2}, Seqno: 6},
	}}
	got := roundtrip(t, 0, want).(*DataAck)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestGapLegacyRoundtrip(t *testing.T) {
	want := &GapLegacy{Namespace: "ns", Topic: "t", GapType: GapRetention, From: 3, To: 9}
	got := roundtrip(t, 0, want).(*GapLegacy)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestGoodbyeRoundtrip(t *testing.T) {
	want := &Goodbye{Code: GoodbyeError, Origin: OriginServer}
	got := roundtrip(t, 0, want).(*Goodbye)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestSubscribeRoundtrip(t *testing.T) {
	want := &Subscribe{
		Namespace:   "ns",
		Topic:       "t",
		LegacySeqno: 4,
		SubID:       42,
		Sources:     []string{"a", "b"},
		Seqnos:      []uint64{1, 2},
	}
	got := roundtrip(t, 0, want).(*Subscribe)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestSubscribeRoundtripEmptySources(t *testing.T) {
	want := &Subscribe{Namespace: "ns", Topic: "t", SubID: 1, Sources: []string{}, Seqnos: []uint64{}}
	got := roundtrip(t, 0, want).(*Subscribe)
	if got.Namespace != want.Namespace || got.Topic != want.Topic || got.SubID != want.SubID {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestUnsubscribeRoundtrip(t *testing.T) {
	want := &Unsubscribe{SubID: 9, Reason: UnsubscribeBackPressure, Namespace: "ns", Topic: "t"}
	got := roundtrip(t, 0, want).(*Unsubscribe)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeliverRoundtrip(t *testing.T) {
	want := &Deliver{SubID: 3, PrevSeqno: 100, Seqno: 105}
	got := roundtrip(t, 0, want).(*Deliver)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeliverGapRoundtrip(t *testing.T) {
	want := &DeliverGap{SubID: 3, PrevSeqno: 5, Seqno: 8, GapType: GapDataLoss, Namespace: "ns", Topic: "t", Source: "log-1"}
	got := roundtrip(t, 0, want).(*DeliverGap)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeliverDataRoundtrip(t *testing.T) {
	want := &DeliverData{SubID: 3, PrevSeqno: 5, Seqno: 6, MsgID: MsgID{7, 7}, Payload: []byte("payload"), Namespace: "ns", Topic: "t", Source: "log-1"}
	got := roundtrip(t, 0, want).(*DeliverData)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeliverBatchRoundtrip(t *testing.T) {
	want := &DeliverBatch{Items: []DeliverData{
		{SubID: 1, PrevSeqno: 0, Seqno: 1, MsgID: MsgID{1}, Payload: []byte("a"), Namespace: "ns", Topic: "t", Source: "s"},
		{SubID: 1, PrevSeqno: 1, Seqno: 2, MsgID: MsgID{2}, Payload: []byte("b"), Namespace: "ns", Topic: "t", Source: "s"},
	}}
	got := roundtrip(t, 0, want).(*DeliverBatch)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestHeartbeatRoundtrip(t *testing.T) {
	want := &Heartbeat{SourceTimeMs: 123456, ShardIDs: []uint64{1, 2, 3}}
	got := roundtrip(t, 0, want).(*Heartbeat)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestHeartbeatEmptyShardsRoundtrip(t *testing.T) {
	want := &Heartbeat{SourceTimeMs: 1, ShardIDs: nil}
	got := roundtrip(t, 0, want).(*Heartbeat)
	if got.SourceTimeMs != want.SourceTimeMs || len(got.ShardIDs) != 0 {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestHeartbeatDeltaRoundtrip(t *testing.T) {
	want := &HeartbeatDelta{SourceTimeMs: 9, Added: []uint64{4, 5}, Removed: []uint64{1}}
	got := roundtrip(t, 0, want).(*HeartbeatDelta)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestFindTailSeqnoRoundtrip(t *testing.T) {
	want := &FindTailSeqno{Namespace: "ns", Topic: "t"}
	got := roundtrip(t, 0, want).(*FindTailSeqno)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestTailSeqnoRoundtrip(t *testing.T) {
	want := &TailSeqno{Namespace: "ns", Topic: "t", Seqno: 77}
	got := roundtrip(t, 0, want).(*TailSeqno)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestBacklogQueryRoundtripWithSubID(t *testing.T) {
	want := &BacklogQuery{HasSubID: true, SubID: 8, Namespace: "ns", Topic: "t", Source: "log-1", PrevSeqno: 1, NextSeqno: 5}
	got := roundtrip(t, 0, want).(*BacklogQuery)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestBacklogQueryRoundtripWithoutSubID(t *testing.T) {
	want := &BacklogQuery{HasSubID: false, Namespace: "ns", Topic: "t", Source: "log-1", PrevSeqno: 1, NextSeqno: 5}
	got := roundtrip(t, 0, want).(*BacklogQuery)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestBacklogFillRoundtrip(t *testing.T) {
	want := &BacklogFill{HasSubID: true, SubID: 8, Namespace: "ns", Topic: "t", Source: "log-1", PrevSeqno: 1, NextSeqno: 5, Result: BacklogFound, Info: "ok"}
	got := roundtrip(t, 0, want).(*BacklogFill)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestIntroductionRoundtrip(t *testing.T) {
	want := &Introduction{
		StreamProperties: []KV{{Key: "proto", Value: "3"}},
		ClientProperties: []KV{{Key: "client_id", Value: "abc"}, {Key: "tenant", Value: "1"}},
	}
	got := roundtrip(t, 0, want).(*Introduction)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestSubAckRoundtrip(t *testing.T) {
	want := &SubAck{Namespace: "ns", Topic: "t", SubID: 5, Sources: []string{"log-1", "log-2"}, Cursors: []uint64{10, 20}}
	got := roundtrip(t, 0, want).(*SubAck)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v want %+v", got, want)
	}
}

func TestDeserializeTruncatedBody(t *testing.T) {
	enc, err := Serialize(Envelope{TenantID: 1, Body: &FindTailSeqno{Namespace: "ns", Topic: "t"}})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	if _, err := Deserialize(enc[:len(enc)-1]); err == nil {
		t.Fatalf("expected error decoding truncated body")
	}
}

func TestDeserializeUnknownType(t *testing.T) {
	if _, err := Deserialize([]byte{0xFF, 0, 0}); err == nil {
		t.Fatalf("expected error for unknown type tag")
	}
}

func TestTrailingBytesTolerated(t *testing.T) {
	enc, err := Serialize(Envelope{TenantID: 1, Body: &FindTailSeqno{Namespace: "ns", Topic: "t"}})
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	enc = append(enc, 0xDE, 0xAD, 0xBE, 0xEF)
	env, err := Deserialize(enc)
	if err != nil {
		t.Fatalf("deserialize with trailing bytes: %v", err)
	}
	got := env.Body.(*FindTailSeqno)
	if got.Namespace != "ns" || got.Topic != "t" {
		t.Fatalf("got %+v", got)
	}
}
