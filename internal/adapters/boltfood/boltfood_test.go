package boltfood

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/currency"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

const samplePayload = `{
	"order_id": "bolt-42",
	"created": 1767225600,
	"currency": "EUR",
	"customer": {"name": "Mari Maasikas", "phone": "+37255512345", "email": "mari@example.com"},
	"delivery": {
		"address": "Telliskivi 60a",
		"address2": "3rd floor",
		"city": "Tallinn",
		"postal_code": "10412",
		"location": [2.1734, 41.3851]
	},
	"items": [
		{"name": "Smash Burger", "quantity": 2, "price": 900,
		 "modifiers": [{"name": "Extra cheese", "price": 100}]},
		{"name": "Fries", "quantity": 1, "price": 250}
	],
	"price": {"subtotal": 2250, "delivery_fee": 250, "service_fee": 50, "discount": 0, "tax": 0, "total": 2550},
	"payment_method": "card",
	"comment": "ring the bell"
}`

func TestParse(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	o := event.Order
	assert.Equal(t, "bolt-42", o.ExternalOrderID)
	assert.Equal(t, aggregator.AggregatorBoltFood, o.Source)
	assert.Equal(t, webhookevent.EventTypeOrderCreated, event.EventType)
	assert.Equal(t, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC), o.PlacedAt)
	assert.Equal(t, "Mari Maasikas", o.Customer.Name)
	assert.Equal(t, "ring the bell", o.Notes)
	assert.True(t, o.IsPrepaid)
	assert.True(t, o.TotalsReconciled)
	assert.NotEmpty(t, o.RawPayloadDigest)
}

func TestParseKeepsMinorUnitsUnchanged(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	burger := event.Order.Items[0]
	assert.Equal(t, int64(900), burger.UnitPrice.AmountMinorUnits)
	assert.Equal(t, currency.CurrencyEUR, burger.UnitPrice.Currency)
	// No sender subtotal, so unit price times quantity.
	assert.Equal(t, int64(1800), burger.Subtotal.AmountMinorUnits)
	assert.Equal(t, int64(100), burger.Modifiers[0].ExtraPrice.AmountMinorUnits)
	assert.Equal(t, int64(2550), event.Order.Totals.GrandTotal.AmountMinorUnits)
}

func TestParseDoesNotSwapGeoJSONCoordinates(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	coords := event.Order.DeliveryAddress.Coordinates
	require.NotNil(t, coords)
	assert.InDelta(t, 41.3851, coords.Lat, 1e-9)
	assert.InDelta(t, 2.1734, coords.Lon, 1e-9)
}

func TestParseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"order_id":`},
		{name: "missing order id", payload: `{"created": 1, "currency": "EUR", "items": [{"name": "x", "quantity": 1, "price": 1}]}`},
		{name: "missing created", payload: `{"order_id": "a", "currency": "EUR", "items": [{"name": "x", "quantity": 1, "price": 1}]}`},
		{name: "no items", payload: `{"order_id": "a", "created": 1, "currency": "EUR", "items": []}`},
		{name: "bad currency", payload: `{"order_id": "a", "created": 1, "currency": "XXX", "items": [{"name": "x", "quantity": 1, "price": 1}]}`},
		{name: "zero quantity", payload: `{"order_id": "a", "created": 1, "currency": "EUR", "items": [{"name": "x", "quantity": 0, "price": 1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Parse([]byte(tt.payload))
			assert.Error(t, err)
		})
	}
}

func TestParseFlagsUnreconciledTotals(t *testing.T) {
	payload := `{
		"order_id": "bolt-43",
		"created": 1767225600,
		"currency": "EUR",
		"customer": {"name": "Mari", "phone": "+372555"},
		"items": [{"name": "Burger", "quantity": 1, "price": 900}],
		"price": {"subtotal": 900, "delivery_fee": 250, "service_fee": 0, "discount": 0, "tax": 0, "total": 5000},
		"payment_method": "cash"
	}`

	event, err := New().Parse([]byte(payload))
	require.NoError(t, err)
	assert.False(t, event.Order.TotalsReconciled)
}
