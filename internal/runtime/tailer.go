package runtime

import (
	"sync"

	"github.com/rzbill/rocketspeed/internal/controlroom"
	"github.com/rzbill/rocketspeed/internal/eventloop"
	"github.com/rzbill/rocketspeed/internal/logtailer"
	"github.com/rzbill/rocketspeed/internal/wire"
)

type topicRef struct {
	namespace string
	topic     string
}

// logTailerAdapter implements controlroom.TailerControl over an
// AsyncLogReader, routing each tailed record back into the control room's
// fan-out path (ControlRoom.SubmitData). AsyncLogReader's callbacks carry
// only a logID, so this adapter keeps the (namespace, topic) each open
// logID belongs to; StartTailing/StopTailing are only ever called in
// matched pairs by the control room (on a topic's subscriber set becoming
// non-empty, then empty again), so a plain map needs no refcounting.
type logTailerAdapter struct {
	reader *logtailer.AsyncLogReader
	room   *controlroom.ControlRoom

	mu   sync.Mutex
	refs map[uint64]topicRef
}

func newLogTailerAdapter(storage logtailer.Storage, loop *eventloop.Loop, metrics logtailer.Metrics) *logTailerAdapter {
	a := &logTailerAdapter{refs: make(map[uint64]topicRef)}
	a.reader = logtailer.New(storage, loop, a.onRecord, a.onGap, metrics)
	return a
}

func (a *logTailerAdapter) StartTailing(namespace, topic string, logID, fromSeqno uint64) error {
	a.mu.Lock()
	a.refs[logID] = topicRef{namespace: namespace, topic: topic}
	a.mu.Unlock()
	return a.reader.Open(logID, fromSeqno)
}

func (a *logTailerAdapter) StopTailing(namespace, topic string, logID uint64) {
	a.mu.Lock()
	delete(a.refs, logID)
	a.mu.Unlock()
	a.reader.Close(logID)
}

func (a *logTailerAdapter) lookup(logID uint64) (topicRef, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	ref, ok := a.refs[logID]
	return ref, ok
}

// onRecord runs on the control room's own loop (AsyncLogReader was built
// over the same loop as the ControlRoom), and forwards the tailed record
// to SubmitData, which re-enters that same loop via Dispatch.
func (a *logTailerAdapter) onRecord(logID, seqno uint64, header, payload []byte) {
	ref, ok := a.lookup(logID)
	if !ok {
		return
	}
	var msgID wire.MsgID
	copy(msgID[:], header)
	a.room.SubmitData(controlroom.MessageData{
		LogID: logID, Namespace: ref.namespace, Topic: ref.topic,
		Seqno: seqno, MsgID: msgID, Payload: payload,
	})
}

// onGap runs on the same loop for a hole the storage layer itself
// detected. Gaps are not re-fanned-out as their own MessageData: a
// reconnecting subscriber recovers via BacklogQuery/BacklogFill instead, so
// there is nothing further to do here beyond what AsyncLogReader's own
// metrics hook already recorded.
func (a *logTailerAdapter) onGap(logID, from, to uint64, gapType wire.GapType) {}
