package postgres

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/tably/ingest-svc/internal/dal/postgres"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

const (
	statusPending   = "pending"
	statusProcessed = "processed"
)

// GuardStore implements the idempotency guard store for PostgreSQL. The
// webhook_events table carries a unique index over (aggregator,
// external_order_id, event_type), so the reserve step is a single atomic
// insert rather than a read followed by a write.
type GuardStore struct {
	client *postgres.Client
}

// NewGuardStore creates a new Postgres-backed guard store.
func NewGuardStore(client *postgres.Client) *GuardStore {
	return &GuardStore{
		client: client,
	}
}

// TryReserve records the event key if unseen. ON CONFLICT DO NOTHING makes
// concurrent deliveries of the same key race on the unique index; exactly
// one insert wins.
func (r *GuardStore) TryReserve(ctx context.Context, key webhookevent.Key) (bool, error) {
	now := time.Now()

	query, args, err := sq.Insert("webhook_events").
		Columns(
			"aggregator",
			"external_order_id",
			"event_type",
			"status",
			"created_at",
			"updated_at",
		).
		Values(
			key.Aggregator.String(),
			key.ExternalOrderID,
			key.EventType.String(),
			statusPending,
			now,
			now,
		).
		Suffix("ON CONFLICT (aggregator, external_order_id, event_type) DO NOTHING").
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build reserve query: %w", err)
	}

	result, err := r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to reserve webhook event: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read reserve result: %w", err)
	}

	return affected == 1, nil
}

// Confirm marks a reservation as processed and records the created order id.
func (r *GuardStore) Confirm(ctx context.Context, key webhookevent.Key, orderID int64) error {
	query, args, err := sq.Update("webhook_events").
		Set("status", statusProcessed).
		Set("order_id", orderID).
		Set("updated_at", time.Now()).
		Where(sq.Eq{
			"aggregator":        key.Aggregator.String(),
			"external_order_id": key.ExternalOrderID,
			"event_type":        key.EventType.String(),
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build confirm query: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to confirm webhook event: %w", err)
	}

	return nil
}

// Release drops an unconfirmed reservation after a materialization failure.
func (r *GuardStore) Release(ctx context.Context, key webhookevent.Key) error {
	query, args, err := sq.Delete("webhook_events").
		Where(sq.Eq{
			"aggregator":        key.Aggregator.String(),
			"external_order_id": key.ExternalOrderID,
			"event_type":        key.EventType.String(),
			"status":            statusPending,
		}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build release query: %w", err)
	}

	if _, err := r.client.DB().ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to release webhook event: %w", err)
	}

	return nil
}

// DeleteExpired evicts entries created before the cutoff.
func (r *GuardStore) DeleteExpired(ctx context.Context, olderThan time.Time) (int64, error) {
	query, args, err := sq.Delete("webhook_events").
		Where(sq.Lt{"created_at": olderThan}).
		PlaceholderFormat(sq.Dollar).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build delete query: %w", err)
	}

	result, err := r.client.DB().ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired webhook events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read delete result: %w", err)
	}

	return deleted, nil
}
