package rocketeer

import "github.com/rzbill/rocketspeed/internal/wire"

// Pool routes Deliver/Advance/Terminate calls to the Server that owns an
// InboundID by decoding its worker bits, mirroring multishard.Pool.
type Pool struct {
	servers []*Server
}

// NewPool builds a Pool over servers, which must be indexed 0..N-1 in the
// same order their corresponding Server was constructed with workerIndex.
func NewPool(servers []*Server) *Pool {
	return &Pool{servers: servers}
}

func (p *Pool) serverFor(id InboundID) (*Server, bool) {
	w := WorkerOf(id)
	if int(w) >= len(p.servers) {
		return nil, false
	}
	return p.servers[w], true
}

// Deliver routes to the owning worker's Server.Deliver.
func (p *Pool) Deliver(id InboundID, msgID wire.MsgID, seqno uint64, payload []byte) (retry bool) {
	s, ok := p.serverFor(id)
	if !ok {
		return false
	}
	return s.Deliver(id, msgID, seqno, payload)
}

// Advance routes to the owning worker's Server.Advance.
func (p *Pool) Advance(id InboundID, seqno uint64) (retry bool) {
	s, ok := p.serverFor(id)
	if !ok {
		return false
	}
	return s.Advance(id, seqno)
}

// Terminate routes to the owning worker's Server.Terminate.
func (p *Pool) Terminate(id InboundID, reason wire.UnsubscribeReason) (retry bool) {
	s, ok := p.serverFor(id)
	if !ok {
		return false
	}
	return s.Terminate(id, reason)
}
