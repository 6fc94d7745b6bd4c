// Package channels defines the closed set of push channels and the events
// each one carries. Subscriptions are validated against this registry so a
// mistyped event name fails immediately instead of becoming a silent no-op.
package channels

import "fmt"

type Channel string

const (
	Orders        Channel = "orders"
	Notifications Channel = "notifications"
	Analytics     Channel = "analytics"
)

type Event string

const (
	EventOrderStatusUpdate Event = "order_status_update"
	EventNewOrder          Event = "new_order"
	EventNotification      Event = "notification"
	EventAnalyticsUpdate   Event = "analytics_update"
	EventAuditLogUpdate    Event = "audit_log_update"
)

var registry = map[Channel][]Event{
	Orders:        {EventOrderStatusUpdate, EventNewOrder},
	Notifications: {EventNotification},
	Analytics:     {EventAnalyticsUpdate, EventAuditLogUpdate},
}

// All returns every known channel.
func All() []Channel {
	return []Channel{Orders, Notifications, Analytics}
}

// Events returns the events a caller may subscribe to on ch.
func Events(ch Channel) ([]Event, bool) {
	evs, ok := registry[ch]
	return evs, ok
}

// Validate rejects handler registration for unknown (channel, event) pairs.
func Validate(ch Channel, ev Event) error {
	evs, ok := registry[ch]
	if !ok {
		return fmt.Errorf("unknown channel %q", ch)
	}
	for _, e := range evs {
		if e == ev {
			return nil
		}
	}
	return fmt.Errorf("event %q is not defined on channel %q", ev, ch)
}
