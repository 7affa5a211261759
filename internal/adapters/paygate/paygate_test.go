package paygate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/order"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

const samplePayload = `{
	"type": "payment.captured",
	"payment_id": "pay_8f2d",
	"order_reference": "web-555",
	"created": 1767225600,
	"amount": 2100,
	"currency": "EUR",
	"payer": {"name": "Jonas Kairys", "phone": "+37060011222", "email": "jonas@example.com"},
	"cart": {
		"items": [{"title": "Poke Bowl", "quantity": 2, "unit_amount": 1050}],
		"subtotal": 2100, "delivery_fee": 0, "service_fee": 0, "discount": 0, "tax": 0
	},
	"description": "web order 555"
}`

func TestParse(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	o := event.Order
	assert.Equal(t, "web-555", o.ExternalOrderID)
	assert.Equal(t, aggregator.AggregatorPaygate, o.Source)
	assert.Equal(t, webhookevent.EventTypePaymentCaptured, event.EventType)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), o.PlacedAt)
	assert.Equal(t, order.PaymentMethodOnline, o.PaymentMethod)
	assert.True(t, o.IsPrepaid)
	assert.True(t, o.TotalsReconciled)
}

func TestParseGrandTotalIsCapturedAmount(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	assert.Equal(t, int64(2100), event.Order.Totals.GrandTotal.AmountMinorUnits)
	assert.Equal(t, int64(1050), event.Order.Items[0].UnitPrice.AmountMinorUnits)
	assert.Equal(t, int64(2100), event.Order.Items[0].Subtotal.AmountMinorUnits)
}

func TestParseRejectsUnsupportedType(t *testing.T) {
	payload := `{
		"type": "payment.refunded",
		"order_reference": "web-556",
		"created": 1767225600,
		"amount": 100,
		"currency": "EUR",
		"cart": {"items": [{"title": "x", "quantity": 1, "unit_amount": 100}]}
	}`

	_, err := New().Parse([]byte(payload))
	assert.Error(t, err)
}

func TestParseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing order reference", payload: `{"type": "payment.captured", "created": 1, "amount": 1, "currency": "EUR", "cart": {"items": [{"title": "x", "quantity": 1, "unit_amount": 1}]}}`},
		{name: "missing created", payload: `{"type": "payment.captured", "order_reference": "a", "amount": 1, "currency": "EUR", "cart": {"items": [{"title": "x", "quantity": 1, "unit_amount": 1}]}}`},
		{name: "empty cart", payload: `{"type": "payment.captured", "order_reference": "a", "created": 1, "amount": 1, "currency": "EUR", "cart": {"items": []}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}
