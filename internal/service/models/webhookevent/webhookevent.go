package webhookevent

import (
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
)

// EventType classifies the business event a webhook notifies about.
type EventType string

const (
	EventTypeOrderCreated    EventType = "order.created"
	EventTypePaymentCaptured EventType = "payment.captured"
)

func (t EventType) String() string {
	return string(t)
}

// Key uniquely identifies one real-world business event across redeliveries.
// Senders retry and duplicate webhooks; two deliveries carrying the same key
// must materialize at most one order.
type Key struct {
	Aggregator      aggregator.Aggregator
	ExternalOrderID string
	EventType       EventType
}

func NewKey(agg aggregator.Aggregator, externalOrderID string, eventType EventType) Key {
	return Key{
		Aggregator:      agg,
		ExternalOrderID: externalOrderID,
		EventType:       eventType,
	}
}

func (k Key) String() string {
	return k.Aggregator.String() + ":" + k.ExternalOrderID + ":" + k.EventType.String()
}
