// Package status tracks the lifecycle of one conversation subscription.
package status

import (
	"fmt"
	"slices"
	"sync"

	"github.com/dmartinez-dev/hilo/internal/bus"
)

// State represents a subscription lifecycle state.
type State string

const (
	Unsubscribed State = "UNSUBSCRIBED"
	Subscribing  State = "SUBSCRIBING"
	Live         State = "LIVE"
	Error        State = "ERROR"
)

// validTransitions defines allowed state transitions. Error is recoverable:
// a re-subscribe moves back through Subscribing rather than getting stuck.
var validTransitions = map[State][]State{
	Unsubscribed: {Subscribing},
	Subscribing:  {Live, Error, Unsubscribed},
	Live:         {Unsubscribed, Error},
	Error:        {Subscribing, Unsubscribed},
}

// Machine enforces the subscription state transitions for one conversation.
type Machine struct {
	mu             sync.RWMutex
	conversationID string
	current        State
	bus            *bus.Bus
}

// NewMachine creates a state machine starting in Unsubscribed.
func NewMachine(conversationID string, b *bus.Bus) *Machine {
	return &Machine{
		conversationID: conversationID,
		current:        Unsubscribed,
		bus:            b,
	}
}

// Current returns the current state.
func (m *Machine) Current() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// Transition attempts to move to a new state. Returns an error if the
// transition is not allowed.
func (m *Machine) Transition(to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !slices.Contains(validTransitions[m.current], to) {
		return fmt.Errorf("invalid transition from %s to %s", m.current, to)
	}
	from := m.current
	m.current = to
	if m.bus != nil {
		m.bus.Publish(bus.Now(bus.KindSubscriptionState, StatusChange{
			ConversationID: m.conversationID,
			From:           from,
			To:             to,
		}))
	}
	return nil
}

// StatusChange is the payload for subscription state change events.
type StatusChange struct {
	ConversationID string
	From           State
	To             State
}
