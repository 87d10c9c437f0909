package events

// EventType defines the type of event in the system
type EventType string

const (
	// Lead events
	SubscriberCreated   EventType = "subscriber.created"
	SubscriberConfirmed EventType = "subscriber.confirmed"
	ContactReceived     EventType = "contact.received"

	// Order events
	OrderPlaced EventType = "order.placed"
	OrderPaid   EventType = "order.paid"
)

// String returns the string representation of the event type
func (e EventType) String() string {
	return string(e)
}

// Payload is the JSON body stored in the outbox for every event.
// Only the fields relevant to the event type are set.
type Payload struct {
	SubscriberID string `json:"subscriber_id,omitempty"`
	ContactID    string `json:"contact_id,omitempty"`
	OrderID      string `json:"order_id,omitempty"`
	VisitorID    string `json:"visitor_id,omitempty"`
}
