package retention

import (
	"context"
	"log/slog"
	"time"

	"github.com/spf13/viper"
	"github.com/tably/ingest-svc/internal/dal/interfaces/iguardstore"
)

// Worker evicts idempotency entries older than the retention window. The
// window must outlast realistic sender retry storms; redelivery of a key
// evicted afterwards is an accepted risk.
type Worker struct {
	store        iguardstore.IGuardStore
	pollInterval time.Duration
	retention    time.Duration
	stopCh       chan struct{}
}

// NewWorker creates a new retention worker.
func NewWorker(store iguardstore.IGuardStore) *Worker {
	pollIntervalMinutes := viper.GetInt("ingest.idempotency.sweep_interval_minutes")
	if pollIntervalMinutes == 0 {
		pollIntervalMinutes = 60
	}

	retentionHours := viper.GetInt("ingest.idempotency.retention_hours")
	if retentionHours == 0 {
		retentionHours = 24 * 7
	}

	return &Worker{
		store:        store,
		pollInterval: time.Duration(pollIntervalMinutes) * time.Minute,
		retention:    time.Duration(retentionHours) * time.Hour,
		stopCh:       make(chan struct{}),
	}
}

// Start begins sweeping expired entries.
func (w *Worker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	slog.Info("Retention worker started", "poll_interval", w.pollInterval, "retention", w.retention)

	for {
		select {
		case <-ctx.Done():
			slog.Info("Retention worker shutting down")

			return
		case <-w.stopCh:
			slog.Info("Retention worker stopped")

			return
		case <-ticker.C:
			w.sweep(ctx)
		}
	}
}

// Stop stops the worker.
func (w *Worker) Stop() {
	close(w.stopCh)
}

func (w *Worker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-w.retention)

	deleted, err := w.store.DeleteExpired(ctx, cutoff)
	if err != nil {
		slog.Error("Failed to sweep expired webhook events", "error", err)

		return
	}

	if deleted > 0 {
		slog.Info("Swept expired webhook events", "count", deleted, "cutoff", cutoff)
	}
}
