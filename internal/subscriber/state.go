package subscriber

// State is the lifecycle stage of a single subscription on one shard.
type State int

const (
	// None is the zero value: the subscription doesn't exist yet.
	None State = iota
	// PendingSend means Subscribe was accepted locally but has not yet
	// been sent (or re-sent) to the shard — waiting on the rate limiter
	// or a live connection.
	PendingSend
	// Active means the Subscribe has been sent and the subscription is
	// receiving deliveries.
	Active
	// Terminating means Unsubscribe has been requested locally but its
	// wire message may not have reached the shard yet.
	Terminating
	// Terminated is final: the subscription is gone and its id is only
	// kept around for the dedup window.
	Terminated
)

func (s State) String() string {
	switch s {
	case None:
		return "none"
	case PendingSend:
		return "pending_send"
	case Active:
		return "active"
	case Terminating:
		return "terminating"
	case Terminated:
		return "terminated"
	default:
		return "unknown"
	}
}
