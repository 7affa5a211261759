// Package adapters defines the contract every per-aggregator payload adapter
// implements. An adapter is a pure function from the raw webhook bytes of one
// sender to the canonical order model; it rejects malformed payloads instead
// of guessing.
package adapters

import (
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/order"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

// Event is one parsed webhook delivery: the canonical order plus the
// business event type used for idempotency keying.
type Event struct {
	Order     *order.CanonicalOrder
	EventType webhookevent.EventType
}

// Key returns the idempotency key of the delivery.
func (e *Event) Key() webhookevent.Key {
	return webhookevent.NewKey(e.Order.Source, e.Order.ExternalOrderID, e.EventType)
}

// Adapter parses one sender's payloads into canonical events.
type Adapter interface {
	Aggregator() aggregator.Aggregator
	Parse(rawBody []byte) (*Event, error)
}
