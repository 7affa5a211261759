package dispatch

import (
	"errors"
	"fmt"
)

// Sentinel errors for the permanent failure classes of webhook handling.
// A duplicate delivery is not an error: it is a successful no-op result.
var (
	// ErrUnknownSender marks a source token that resolves to no registered
	// aggregator.
	ErrUnknownSender = errors.New("unknown webhook sender")

	// ErrSignature marks a failed authenticity check. The secret itself must
	// never travel with this error.
	ErrSignature = errors.New("signature verification failed")
)

// ParseError wraps an adapter failure: the payload was authentic but did not
// match the sender's expected shape.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse webhook payload: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// MaterializationError wraps a downstream order-creation failure. It is
// transient: the sender's own retry re-enters the pipeline with the same
// idempotency key.
type MaterializationError struct {
	Err error
}

func (e *MaterializationError) Error() string {
	return fmt.Sprintf("failed to materialize order: %v", e.Err)
}

func (e *MaterializationError) Unwrap() error {
	return e.Err
}

// Status is the outcome class of a successfully handled webhook.
type Status string

const (
	// StatusAccepted means a new order was materialized.
	StatusAccepted Status = "accepted"

	// StatusDuplicate means the event key was already processed and the
	// delivery was acknowledged without side effects.
	StatusDuplicate Status = "duplicate"
)

// Result is the outcome of dispatching one webhook delivery.
type Result struct {
	Status          Status
	OrderID         int64
	ExternalOrderID string
}

// Accepted builds the result for a freshly materialized order.
func Accepted(orderID int64, externalOrderID string) Result {
	return Result{
		Status:          StatusAccepted,
		OrderID:         orderID,
		ExternalOrderID: externalOrderID,
	}
}

// DuplicateIgnored builds the result for an already-processed event key.
func DuplicateIgnored(externalOrderID string) Result {
	return Result{
		Status:          StatusDuplicate,
		ExternalOrderID: externalOrderID,
	}
}
