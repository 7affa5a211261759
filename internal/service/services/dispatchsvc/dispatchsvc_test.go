package dispatchsvc

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/ingest-svc/internal/adapters/glovo"
	"github.com/tably/ingest-svc/internal/adapters/wolt"
	"github.com/tably/ingest-svc/internal/idempotency/memory"
	"github.com/tably/ingest-svc/internal/materializer"
	"github.com/tably/ingest-svc/internal/service/models/dispatch"
	"github.com/tably/ingest-svc/internal/service/models/order"
	"github.com/tably/ingest-svc/internal/verify"
)

const testSecret = "wolt-test-secret"

const woltPayload = `{
	"id": "wolt-e2e-1",
	"created_at": "2026-06-26T14:30:00Z",
	"consumer": {"name": "Ville Virtanen", "phone_number": "+358401234567"},
	"items": [
		{"name": "Ramen", "count": 2, "price": {"unit_price": "9.00", "total_price": "18.00"}},
		{"name": "Gyoza", "count": 1, "price": {"unit_price": "2.50", "total_price": "2.50"}}
	],
	"price": {"subtotal": "20.50", "delivery": "2.50", "service_fee": "0.50", "discount": "0.00", "tax": "0.00", "total": "23.50", "currency": "EUR"},
	"payment": {"method": "card", "prepaid": true}
}`

// fakeMaterializer counts CreateOrder calls and returns a canned outcome.
type fakeMaterializer struct {
	calls  atomic.Int64
	err    error
	lastMu sync.Mutex
	last   *order.CanonicalOrder
}

func (m *fakeMaterializer) CreateOrder(_ context.Context, o *order.CanonicalOrder) (int64, error) {
	m.calls.Add(1)
	m.lastMu.Lock()
	m.last = o
	m.lastMu.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	return 1001, nil
}

func signedHeaders(body string) http.Header {
	headers := http.Header{}
	headers.Set(wolt.SignatureHeader, verify.Sign([]byte(body), []byte(testSecret)))

	return headers
}

func newTestService(mat *fakeMaterializer) *DispatchService {
	return MustNewDispatchService(
		WithGuard(memory.NewGuardStore()),
		WithMaterializer(mat),
		WithSender(verify.NewHMACSHA256(wolt.SignatureHeader, []byte(testSecret)), wolt.New()),
	)
}

func TestHandleAcceptsValidDelivery(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)

	result, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), signedHeaders(woltPayload))
	require.NoError(t, err)

	assert.Equal(t, dispatch.StatusAccepted, result.Status)
	assert.Equal(t, int64(1001), result.OrderID)
	assert.Equal(t, "wolt-e2e-1", result.ExternalOrderID)
	assert.Equal(t, int64(1), mat.calls.Load())

	assert.Equal(t, int64(2050), mat.last.Totals.Subtotal.AmountMinorUnits)
	assert.Equal(t, int64(2350), mat.last.Totals.GrandTotal.AmountMinorUnits)
	assert.True(t, mat.last.TotalsReconciled)
}

func TestHandleRedeliveryIsDuplicate(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)
	headers := signedHeaders(woltPayload)

	result, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	require.NoError(t, err)
	require.Equal(t, dispatch.StatusAccepted, result.Status)

	result, err = svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDuplicate, result.Status)
	assert.Equal(t, "wolt-e2e-1", result.ExternalOrderID)

	assert.Equal(t, int64(1), mat.calls.Load())
}

func TestHandleConcurrentRedeliveries(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)
	headers := signedHeaders(woltPayload)

	const n = 16

	var accepted, duplicates atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			result, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
			assert.NoError(t, err)
			switch result.Status {
			case dispatch.StatusAccepted:
				accepted.Add(1)
			case dispatch.StatusDuplicate:
				duplicates.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), accepted.Load())
	assert.Equal(t, int64(n-1), duplicates.Load())
	assert.Equal(t, int64(1), mat.calls.Load())
}

func TestHandleUnknownSender(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)

	_, err := svc.Handle(context.Background(), "deliveroo", []byte(woltPayload), signedHeaders(woltPayload))
	assert.ErrorIs(t, err, dispatch.ErrUnknownSender)
	assert.Equal(t, int64(0), mat.calls.Load())
}

func TestHandleUnregisteredSender(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)

	// Glovo resolves as a known aggregator but has no registered entry here.
	_, err := svc.Handle(context.Background(), "glovo", []byte(woltPayload), http.Header{})
	assert.ErrorIs(t, err, dispatch.ErrUnknownSender)
	assert.Equal(t, int64(0), mat.calls.Load())
}

func TestHandleRejectsBadSignature(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)

	headers := http.Header{}
	headers.Set(wolt.SignatureHeader, verify.Sign([]byte(woltPayload), []byte("wrong-secret")))

	_, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	assert.ErrorIs(t, err, dispatch.ErrSignature)
	assert.Equal(t, int64(0), mat.calls.Load())
}

func TestHandleRejectsUnparsablePayload(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := newTestService(mat)
	body := `{"id": ""}`

	_, err := svc.Handle(context.Background(), "wolt", []byte(body), signedHeaders(body))

	var parseErr *dispatch.ParseError
	assert.ErrorAs(t, err, &parseErr)
	assert.Equal(t, int64(0), mat.calls.Load())
}

func TestHandleReleasesReservationOnMaterializerFailure(t *testing.T) {
	mat := &fakeMaterializer{err: errors.New("connection refused")}
	svc := newTestService(mat)
	headers := signedHeaders(woltPayload)

	_, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)

	var matErr *dispatch.MaterializationError
	require.ErrorAs(t, err, &matErr)

	// The reservation was released, so the sender's retry goes through.
	mat.err = nil
	result, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAccepted, result.Status)
	assert.Equal(t, int64(2), mat.calls.Load())
}

func TestHandleDownstreamDuplicateAcknowledged(t *testing.T) {
	mat := &fakeMaterializer{err: materializer.ErrDuplicateOrder}
	svc := newTestService(mat)
	headers := signedHeaders(woltPayload)

	result, err := svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDuplicate, result.Status)

	// Acknowledged as a duplicate: a redelivery must not reach the
	// materializer again.
	result, err = svc.Handle(context.Background(), "wolt", []byte(woltPayload), headers)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusDuplicate, result.Status)
	assert.Equal(t, int64(1), mat.calls.Load())
}

func TestHandleSenderAliases(t *testing.T) {
	mat := &fakeMaterializer{}
	svc := MustNewDispatchService(
		WithGuard(memory.NewGuardStore()),
		WithMaterializer(mat),
		WithSender(verify.NewSharedToken(glovo.AuthHeader, "glovo-token"), glovo.New()),
	)

	body := `{
		"order_id": "glv-alias-1",
		"order_time": "2026-03-14T12:05:00Z",
		"currency": "EUR",
		"customer": {"name": "Laura", "phone_number": "+34600"},
		"products": [{"name": "Paella", "quantity": 1, "price": 14.00}],
		"prices": {"subtotal": 14.00, "delivery_fee": 0, "service_fee": 0, "discount": 0, "tax": 0, "total": 14.00},
		"payment_method": "card"
	}`
	headers := http.Header{}
	headers.Set(glovo.AuthHeader, "glovo-token")

	result, err := svc.Handle(context.Background(), " Glovo ", []byte(body), headers)
	require.NoError(t, err)
	assert.Equal(t, dispatch.StatusAccepted, result.Status)
}
