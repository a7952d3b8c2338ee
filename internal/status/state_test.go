package status

import (
	"testing"
	"time"

	"github.com/dmartinez-dev/hilo/internal/bus"
)

func TestInitialState(t *testing.T) {
	m := NewMachine("c1", nil)
	if m.Current() != Unsubscribed {
		t.Errorf("initial state = %s, want UNSUBSCRIBED", m.Current())
	}
}

func TestValidTransitions(t *testing.T) {
	tests := []struct {
		walk []State
	}{
		{[]State{Subscribing, Live, Unsubscribed}},
		{[]State{Subscribing, Error, Subscribing, Live}},
		{[]State{Subscribing, Live, Error, Subscribing}},
		{[]State{Subscribing, Unsubscribed}},
		{[]State{Subscribing, Error, Unsubscribed}},
	}
	for _, tt := range tests {
		m := NewMachine("c1", nil)
		for _, to := range tt.walk {
			if err := m.Transition(to); err != nil {
				t.Errorf("walk %v: transition to %s failed: %v", tt.walk, to, err)
				break
			}
		}
	}
}

func TestInvalidTransitions(t *testing.T) {
	m := NewMachine("c1", nil)
	if err := m.Transition(Live); err == nil {
		t.Error("UNSUBSCRIBED -> LIVE should fail")
	}
	if err := m.Transition(Error); err == nil {
		t.Error("UNSUBSCRIBED -> ERROR should fail")
	}
}

func TestErrorIsRecoverable(t *testing.T) {
	m := NewMachine("c1", nil)
	mustTransition(t, m, Subscribing, Error)
	if err := m.Transition(Subscribing); err != nil {
		t.Errorf("re-subscribe from ERROR failed: %v", err)
	}
}

func TestTransitionEmitsEvent(t *testing.T) {
	b := bus.New()
	ch, unsub := b.Subscribe("subscription.", 10)
	defer unsub()

	m := NewMachine("c1", b)
	if err := m.Transition(Subscribing); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		change, ok := evt.Payload.(StatusChange)
		if !ok {
			t.Fatalf("payload type %T", evt.Payload)
		}
		if change.ConversationID != "c1" || change.From != Unsubscribed || change.To != Subscribing {
			t.Errorf("change = %+v", change)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for state change event")
	}
}

func mustTransition(t *testing.T, m *Machine, states ...State) {
	t.Helper()
	for _, s := range states {
		if err := m.Transition(s); err != nil {
			t.Fatal(err)
		}
	}
}
