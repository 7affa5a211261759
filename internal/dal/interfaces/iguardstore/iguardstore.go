package iguardstore

import (
	"context"
	"time"

	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

// IGuardStore is the keyed store behind the idempotency guard. It is
// injectable so the dispatcher can run against an in-memory map in tests and
// a durable store in production.
type IGuardStore interface {
	// TryReserve atomically records the event key if it has not been seen.
	// It returns true for exactly one caller per key, even under concurrent
	// delivery of the same key.
	TryReserve(ctx context.Context, key webhookevent.Key) (bool, error)

	// Confirm marks a reserved key as processed once the materializer
	// created the order.
	Confirm(ctx context.Context, key webhookevent.Key, orderID int64) error

	// Release drops an unconfirmed reservation so a legitimate sender retry
	// is not permanently blackholed after a materialization failure.
	Release(ctx context.Context, key webhookevent.Key) error

	// DeleteExpired evicts entries older than the cutoff and returns how
	// many were removed. Redelivery of a key evicted after the retention
	// window may create a duplicate order; that risk is accepted.
	DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error)
}
