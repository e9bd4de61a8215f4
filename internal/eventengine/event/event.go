package event

type SubscriberName string
type EventName string

type Event struct {
	Name    EventName
	Payload Payload
}

// Payload is anything that can be published; it knows its own event name so
// listeners that receive a bare payload can still route it.
type Payload interface {
	EventName() EventName
}

type Subscriber struct {
	Name      SubscriberName // Name of subscriber
	AddressCh chan<- Payload // Where a subscriber is listening for events at.
}
