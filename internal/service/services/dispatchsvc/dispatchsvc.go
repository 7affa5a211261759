package dispatchsvc

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"github.com/tably/ingest-svc/internal/adapters"
	"github.com/tably/ingest-svc/internal/dal/interfaces/iguardstore"
	"github.com/tably/ingest-svc/internal/materializer"
	"github.com/tably/ingest-svc/internal/metrics"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/dispatch"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
	"github.com/tably/ingest-svc/internal/verify"
)

// senderEntry pairs one sender's verifier with its adapter. The registry is
// static: dispatch is keyed by the resolved sender tag, never by payload
// content.
type senderEntry struct {
	verifier verify.Verifier
	adapter  adapters.Adapter
}

// publisher announces accepted orders to downstream consumers.
type publisher interface {
	Publish(exchange, routingKey, contentType string, body []byte) error
}

// DispatchService is the single entry point for webhook deliveries. For each
// delivery it resolves the sender, verifies authenticity, parses the payload
// into the canonical order, reserves the idempotency key and hands the order
// to the materializer, short-circuiting on the first failure.
type DispatchService struct {
	registry           map[aggregator.Aggregator]senderEntry
	guard              iguardstore.IGuardStore
	materializer       materializer.Materializer
	publisher          publisher
	metrics            *metrics.Registry
	guardTimeout       time.Duration
	materializeTimeout time.Duration
}

// option is a function that configures the DispatchService.
type option func(*DispatchService)

// MustNewDispatchService creates a new DispatchService.
func MustNewDispatchService(opts ...option) *DispatchService {
	guardTimeoutSeconds := viper.GetInt("ingest.guard_timeout_seconds")
	if guardTimeoutSeconds == 0 {
		guardTimeoutSeconds = 5
	}
	materializeTimeoutSeconds := viper.GetInt("materializer.timeout_seconds")
	if materializeTimeoutSeconds == 0 {
		materializeTimeoutSeconds = 10
	}

	s := &DispatchService{
		registry:           make(map[aggregator.Aggregator]senderEntry),
		guardTimeout:       time.Duration(guardTimeoutSeconds) * time.Second,
		materializeTimeout: time.Duration(materializeTimeoutSeconds) * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.guard == nil {
		panic("dispatch service requires an idempotency guard store")
	}
	if s.materializer == nil {
		panic("dispatch service requires a materializer")
	}

	return s
}

// WithGuard sets the idempotency guard store.
func WithGuard(guard iguardstore.IGuardStore) option {
	return func(s *DispatchService) {
		s.guard = guard
	}
}

// WithMaterializer sets the downstream order creator.
func WithMaterializer(m materializer.Materializer) option {
	return func(s *DispatchService) {
		s.materializer = m
	}
}

// WithPublisher sets the optional event publisher for accepted orders.
func WithPublisher(p publisher) option {
	return func(s *DispatchService) {
		s.publisher = p
	}
}

// WithMetrics sets the optional metrics registry.
func WithMetrics(m *metrics.Registry) option {
	return func(s *DispatchService) {
		s.metrics = m
	}
}

// WithSender registers a verifier/adapter pair for one aggregator. Source
// token aliases are resolved before lookup, so one registration covers every
// accepted spelling.
func WithSender(v verify.Verifier, a adapters.Adapter) option {
	return func(s *DispatchService) {
		s.registry[a.Aggregator()] = senderEntry{
			verifier: v,
			adapter:  a,
		}
	}
}

// Handle processes one webhook delivery. Duplicate deliveries return a
// duplicate result with a nil error; failures are classified through the
// dispatch error taxonomy.
func (s *DispatchService) Handle(
	ctx context.Context,
	sourceToken string,
	rawBody []byte,
	headers http.Header,
) (dispatch.Result, error) {
	agg, err := aggregator.Parse(sourceToken)
	if err != nil {
		return dispatch.Result{}, dispatch.ErrUnknownSender
	}

	entry, ok := s.registry[agg]
	if !ok {
		return dispatch.Result{}, dispatch.ErrUnknownSender
	}

	s.countReceived(agg)

	if !entry.verifier.Verify(rawBody, headers) {
		s.countRejected(agg, "signature")
		slog.Warn("Webhook signature rejected", "aggregator", agg)

		return dispatch.Result{}, dispatch.ErrSignature
	}

	// The delivery is authentic from here on; it runs to completion even if
	// the sender hangs up, otherwise an abandoned request could leave the
	// reservation state inconsistent.
	ctx = context.WithoutCancel(ctx)

	event, err := entry.adapter.Parse(rawBody)
	if err != nil {
		s.countRejected(agg, "parse")
		slog.Error("Webhook payload rejected", "aggregator", agg, "error", err)

		return dispatch.Result{}, &dispatch.ParseError{Err: err}
	}

	key := event.Key()

	guardCtx, cancel := context.WithTimeout(ctx, s.guardTimeout)
	defer cancel()

	reserved, err := s.guard.TryReserve(guardCtx, key)
	if err != nil {
		s.countRejected(agg, "guard")
		slog.Error("Idempotency guard failure", "aggregator", agg, "key", key.String(), "error", err)

		return dispatch.Result{}, &dispatch.MaterializationError{Err: err}
	}
	if !reserved {
		s.countDuplicate(agg)
		slog.Info("Duplicate webhook ignored", "aggregator", agg, "key", key.String())

		return dispatch.DuplicateIgnored(event.Order.ExternalOrderID), nil
	}

	matCtx, cancelMat := context.WithTimeout(ctx, s.materializeTimeout)
	defer cancelMat()

	start := time.Now()
	orderID, err := s.materializer.CreateOrder(matCtx, event.Order)
	s.observeMaterializeLatency(time.Since(start))

	if errors.Is(err, materializer.ErrDuplicateOrder) {
		// The guard is the authority on uniqueness, but if the downstream
		// still reports a duplicate the event is acknowledged as one so the
		// sender stops retrying.
		s.confirm(ctx, key, 0, agg)
		s.countDuplicate(agg)

		return dispatch.DuplicateIgnored(event.Order.ExternalOrderID), nil
	}
	if err != nil {
		s.release(ctx, key, agg)
		s.countRejected(agg, "materialize")
		slog.Error("Order materialization failed", "aggregator", agg, "key", key.String(), "error", err)

		return dispatch.Result{}, &dispatch.MaterializationError{Err: err}
	}

	s.confirm(ctx, key, orderID, agg)
	s.countAccepted(agg)

	if !event.Order.TotalsReconciled {
		s.countUnreconciled(agg)
		slog.Warn("Order totals do not reconcile",
			"aggregator", agg,
			"external_order_id", event.Order.ExternalOrderID,
			"order_id", orderID,
		)
	}

	slog.Info("Order ingested",
		"aggregator", agg,
		"external_order_id", event.Order.ExternalOrderID,
		"order_id", orderID,
		"event_type", event.EventType,
	)

	s.publishIngested(event, orderID)

	return dispatch.Accepted(orderID, event.Order.ExternalOrderID), nil
}

func (s *DispatchService) confirm(
	ctx context.Context,
	key webhookevent.Key,
	orderID int64,
	agg aggregator.Aggregator,
) {
	guardCtx, cancel := context.WithTimeout(ctx, s.guardTimeout)
	defer cancel()

	// A failed confirm leaves a pending entry behind; the retention sweeper
	// eventually evicts it. The order itself was created, so the delivery is
	// still acknowledged.
	if err := s.guard.Confirm(guardCtx, key, orderID); err != nil {
		slog.Error("Failed to confirm idempotency reservation",
			"aggregator", agg,
			"key", key.String(),
			"error", err,
		)
	}
}

func (s *DispatchService) release(ctx context.Context, key webhookevent.Key, agg aggregator.Aggregator) {
	guardCtx, cancel := context.WithTimeout(ctx, s.guardTimeout)
	defer cancel()

	if err := s.guard.Release(guardCtx, key); err != nil {
		slog.Error("Failed to release idempotency reservation",
			"aggregator", agg,
			"key", key.String(),
			"error", err,
		)
	}
}

// publishIngested announces the accepted order over AMQP. Publishing is best
// effort: the order is already materialized, so a broker outage must not
// turn an accepted webhook into a retry.
func (s *DispatchService) publishIngested(event *adapters.Event, orderID int64) {
	if s.publisher == nil {
		return
	}

	payload := struct {
		OrderID   int64                  `json:"orderId"`
		EventType webhookevent.EventType `json:"eventType"`
		Order     any                    `json:"order"`
	}{
		OrderID:   orderID,
		EventType: event.EventType,
		Order:     event.Order,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to encode ingested order event", "error", err)

		return
	}

	exchange := viper.GetString("rabbitmq.ingest.exchange")
	routingKey := "order.ingested." + event.Order.Source.String()

	if err := s.publisher.Publish(exchange, routingKey, "application/json", body); err != nil {
		slog.Error("Failed to publish ingested order event",
			"exchange", exchange,
			"routing_key", routingKey,
			"error", err,
		)
	}
}

func (s *DispatchService) countReceived(agg aggregator.Aggregator) {
	if s.metrics != nil {
		s.metrics.Received.WithLabelValues(agg.String()).Inc()
	}
}

func (s *DispatchService) countAccepted(agg aggregator.Aggregator) {
	if s.metrics != nil {
		s.metrics.Accepted.WithLabelValues(agg.String()).Inc()
	}
}

func (s *DispatchService) countDuplicate(agg aggregator.Aggregator) {
	if s.metrics != nil {
		s.metrics.Duplicates.WithLabelValues(agg.String()).Inc()
	}
}

func (s *DispatchService) countRejected(agg aggregator.Aggregator, reason string) {
	if s.metrics != nil {
		s.metrics.Rejected.WithLabelValues(agg.String(), reason).Inc()
	}
}

func (s *DispatchService) countUnreconciled(agg aggregator.Aggregator) {
	if s.metrics != nil {
		s.metrics.Unreconciled.WithLabelValues(agg.String()).Inc()
	}
}

func (s *DispatchService) observeMaterializeLatency(d time.Duration) {
	if s.metrics != nil {
		s.metrics.MaterializeSec.Observe(d.Seconds())
	}
}
