package billing

import "strings"

// EventKind enumerates the provider event types the router dispatches on.
// Anything else parses as EventUnknown and is acknowledged without mutation.
type EventKind string

const (
	EventSubscriptionCreated    EventKind = "subscription.created"
	EventSubscriptionUpdated    EventKind = "subscription.updated"
	EventSubscriptionActive     EventKind = "subscription.active"
	EventSubscriptionCanceled   EventKind = "subscription.canceled"
	EventSubscriptionUncanceled EventKind = "subscription.uncanceled"
	EventSubscriptionRevoked    EventKind = "subscription.revoked"
	EventOrderCreated           EventKind = "order.created"
	EventOrderPaid              EventKind = "order.paid"
	EventUnknown                EventKind = ""
)

// ParseEventKind maps a wire type string to a known kind. The second return
// is false for event types this service does not handle.
func ParseEventKind(eventType string) (EventKind, bool) {
	switch EventKind(strings.ToLower(strings.TrimSpace(eventType))) {
	case EventSubscriptionCreated:
		return EventSubscriptionCreated, true
	case EventSubscriptionUpdated:
		return EventSubscriptionUpdated, true
	case EventSubscriptionActive:
		return EventSubscriptionActive, true
	case EventSubscriptionCanceled:
		return EventSubscriptionCanceled, true
	case EventSubscriptionUncanceled:
		return EventSubscriptionUncanceled, true
	case EventSubscriptionRevoked:
		return EventSubscriptionRevoked, true
	case EventOrderCreated:
		return EventOrderCreated, true
	case EventOrderPaid:
		return EventOrderPaid, true
	default:
		return EventUnknown, false
	}
}
