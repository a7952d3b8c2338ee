package bus

import "time"

// Event kinds published by the engine. Namespace prefixes group related
// events for subscribers ("message.", "conversation.", "presence.",
// "subscription.").
const (
	KindTimelineReset       = "message.timeline_reset"
	KindMessageAppended     = "message.appended"
	KindMessageUpdated      = "message.updated"
	KindConversationUpdated = "conversation.updated"
	KindConversationList    = "conversation.list_changed"
	KindPresenceChanged     = "presence.changed"
	KindSubscriptionState   = "subscription.state_changed"
)

// Event represents a domain event published on the bus.
type Event struct {
	Kind      string
	Timestamp time.Time
	Payload   any
}

// Now builds an event stamped with the current time.
func Now(kind string, payload any) Event {
	return Event{Kind: kind, Timestamp: time.Now(), Payload: payload}
}
