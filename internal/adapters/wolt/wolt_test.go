package wolt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/currency"
)

const samplePayload = `{
	"id": "wolt-abc-1",
	"created_at": "2026-06-26T14:30:00+03:00",
	"consumer": {"name": "Ville Virtanen", "phone_number": "+358401234567", "email": "ville@example.com"},
	"delivery": {
		"street": "Mannerheimintie 1",
		"apartment": "A 12",
		"city": "Helsinki",
		"post_code": "00100",
		"location": {"latitude": 60.1699, "longitude": 24.9384},
		"comment": "leave at the door"
	},
	"items": [
		{"name": "Ramen", "count": 2,
		 "price": {"unit_price": "9.00", "total_price": "18.00"},
		 "options": [{"name": "Extra egg", "price": "0.50"}]},
		{"name": "Gyoza", "count": 1,
		 "price": {"unit_price": "2.50", "total_price": "2.50"}}
	],
	"price": {"subtotal": "20.50", "delivery": "2.50", "service_fee": "0.50", "discount": "0.00", "tax": "0.00", "total": "23.50", "currency": "EUR"},
	"payment": {"method": "card", "prepaid": true}
}`

func TestParse(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	o := event.Order
	assert.Equal(t, "wolt-abc-1", o.ExternalOrderID)
	assert.Equal(t, aggregator.AggregatorWolt, o.Source)
	assert.Equal(t, time.Date(2026, 6, 26, 11, 30, 0, 0, time.UTC), o.PlacedAt)
	assert.Equal(t, "leave at the door", o.Notes)
	assert.True(t, o.IsPrepaid)
	assert.True(t, o.TotalsReconciled)
}

func TestParseNormalizesDecimalMoney(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	ramen := event.Order.Items[0]
	assert.Equal(t, int64(900), ramen.UnitPrice.AmountMinorUnits)
	assert.Equal(t, currency.CurrencyEUR, ramen.UnitPrice.Currency)
	assert.Equal(t, int64(1800), ramen.Subtotal.AmountMinorUnits)
	assert.Equal(t, int64(50), ramen.Modifiers[0].ExtraPrice.AmountMinorUnits)

	totals := event.Order.Totals
	assert.Equal(t, int64(2050), totals.Subtotal.AmountMinorUnits)
	assert.Equal(t, int64(250), totals.DeliveryFee.AmountMinorUnits)
	assert.Equal(t, int64(50), totals.ServiceFee.AmountMinorUnits)
	assert.Equal(t, int64(2350), totals.GrandTotal.AmountMinorUnits)
}

func TestParseUsesNamedCoordinates(t *testing.T) {
	event, err := New().Parse([]byte(samplePayload))
	require.NoError(t, err)

	coords := event.Order.DeliveryAddress.Coordinates
	require.NotNil(t, coords)
	assert.InDelta(t, 60.1699, coords.Lat, 1e-9)
	assert.InDelta(t, 24.9384, coords.Lon, 1e-9)
}

func TestParseTrustsSenderLineSubtotal(t *testing.T) {
	// A Wolt-side promotion makes total_price smaller than unit_price times
	// count; the sender value wins.
	payload := `{
		"id": "wolt-promo-1",
		"created_at": "2026-06-26T14:30:00Z",
		"consumer": {"name": "Ville", "phone_number": "+358400"},
		"items": [
			{"name": "Ramen", "count": 2, "price": {"unit_price": "9.00", "total_price": "13.50"}}
		],
		"price": {"subtotal": "13.50", "delivery": "0.00", "service_fee": "0.00", "discount": "0.00", "tax": "0.00", "total": "13.50", "currency": "EUR"},
		"payment": {"method": "card", "prepaid": true}
	}`

	event, err := New().Parse([]byte(payload))
	require.NoError(t, err)

	assert.Equal(t, int64(1350), event.Order.Items[0].Subtotal.AmountMinorUnits)
	assert.True(t, event.Order.TotalsReconciled)
}

func TestParseWithoutDeliveryHasNoAddressOrNotes(t *testing.T) {
	payload := `{
		"id": "wolt-pickup-1",
		"created_at": "2026-06-26T14:30:00Z",
		"consumer": {"name": "Ville", "phone_number": "+358400"},
		"items": [{"name": "Ramen", "count": 1, "price": {"unit_price": "9.00", "total_price": "9.00"}}],
		"price": {"subtotal": "9.00", "delivery": "0.00", "service_fee": "0.00", "discount": "0.00", "tax": "0.00", "total": "9.00", "currency": "EUR"},
		"payment": {"method": "cash", "prepaid": false}
	}`

	event, err := New().Parse([]byte(payload))
	require.NoError(t, err)
	assert.Nil(t, event.Order.DeliveryAddress)
	assert.Empty(t, event.Order.Notes)
}

func TestParseRejectsMissingFields(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "missing id", payload: `{"created_at": "2026-06-26T14:30:00Z", "items": [{"name": "x", "count": 1}]}`},
		{name: "bad timestamp", payload: `{"id": "a", "created_at": "yesterday", "items": [{"name": "x", "count": 1}], "price": {"currency": "EUR"}}`},
		{name: "no items", payload: `{"id": "a", "created_at": "2026-06-26T14:30:00Z", "items": [], "price": {"currency": "EUR"}}`},
		{name: "missing currency", payload: `{"id": "a", "created_at": "2026-06-26T14:30:00Z", "items": [{"name": "x", "count": 1}], "price": {}}`},
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
		"id": "wolt-drift-1",
		"created_at": "2026-06-26T14:30:00Z",
		"consumer": {"name": "Ville", "phone_number": "+358400"},
		"items": [{"name": "Ramen", "count": 1, "price": {"unit_price": "9.00", "total_price": "9.00"}}],
		"price": {"subtotal": "9.00", "delivery": "2.00", "service_fee": "0.00", "discount": "0.00", "tax": "0.00", "total": "20.00", "currency": "EUR"},
		"payment": {"method": "card", "prepaid": true}
	}`

	event, err := New().Parse([]byte(payload))
	require.NoError(t, err)
	assert.False(t, event.Order.TotalsReconciled)
}
