package substore

// Record is one persisted subscription: enough to resubscribe after a
// restart without replaying from the very beginning of a topic's log.
type Record struct {
	TenantID  uint16 `msgpack:"tenant_id"`
	Namespace string `msgpack:"namespace"`
	Topic     string `msgpack:"topic"`
	// Seqno is the seqno to resubscribe from: the last acknowledged seqno
	// plus one, so the resubscribe does not re-deliver it.
	Seqno uint64 `msgpack:"seqno"`
}
