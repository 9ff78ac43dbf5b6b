package mux

import "sync"

// EventTrigger reports a level change in queue congestion so a socket can
// pause reading from upstream producers while its send queue drains,
// instead of growing the queue without bound.
type EventTrigger struct {
	mu        sync.Mutex
	congested bool
	onChange  func(congested bool)
}

// NewEventTrigger builds a trigger that calls onChange every time the
// congestion level flips.
func NewEventTrigger(onChange func(congested bool)) *EventTrigger {
	return &EventTrigger{onChange: onChange}
}

// Set updates the congestion level, firing onChange only on a transition.
func (t *EventTrigger) Set(congested bool) {
	t.mu.Lock()
	changed := t.congested != congested
	t.congested = congested
	t.mu.Unlock()
	if changed && t.onChange != nil {
		t.onChange(congested)
	}
}

// Congested reports the current level.
func (t *EventTrigger) Congested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.congested
}
