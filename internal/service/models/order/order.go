package order

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/money"
)

// TotalsEpsilonMinorUnits is the tolerance for totals reconciliation.
// Decimal senders round each monetary component independently, so a balanced
// order can still drift by a single minor unit after conversion.
const TotalsEpsilonMinorUnits = 1

// PaymentMethod is how the customer pays for the order.
type PaymentMethod string

const (
	PaymentMethodCard    PaymentMethod = "card"
	PaymentMethodCash    PaymentMethod = "cash"
	PaymentMethodOnline  PaymentMethod = "online"
	PaymentMethodUnknown PaymentMethod = "unknown"
)

// GeoPoint is a named latitude/longitude pair. Adapters normalize both named
// fields and GeoJSON ordered pairs into this shape.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Customer holds the ordering customer's contact details.
type Customer struct {
	Name  string `json:"name"  validate:"required"`
	Phone string `json:"phone" validate:"required"`
	Email string `json:"email,omitempty"`
}

// Address is the delivery destination. Absent for pickup orders.
type Address struct {
	Line1       string    `json:"line1" validate:"required"`
	Line2       string    `json:"line2,omitempty"`
	City        string    `json:"city"`
	PostalCode  string    `json:"postalCode"`
	Coordinates *GeoPoint `json:"coordinates,omitempty"`
}

// Modifier is an add-on attached to a line item.
type Modifier struct {
	Name       string      `json:"name" validate:"required"`
	ExtraPrice money.Money `json:"extraPrice"`
}

// LineItem is one cart position of the order.
type LineItem struct {
	Name      string      `json:"name"     validate:"required"`
	Quantity  int         `json:"quantity" validate:"gt=0"`
	UnitPrice money.Money `json:"unitPrice"`
	Subtotal  money.Money `json:"subtotal"`
	Modifiers []Modifier  `json:"modifiers,omitempty" validate:"dive"`
}

// Totals is the monetary summary of the order.
type Totals struct {
	Subtotal    money.Money `json:"subtotal"`
	DeliveryFee money.Money `json:"deliveryFee"`
	ServiceFee  money.Money `json:"serviceFee"`
	Discount    money.Money `json:"discount"`
	Tax         money.Money `json:"tax"`
	GrandTotal  money.Money `json:"grandTotal"`
}

// ReconciledWithin reports whether subtotal + fees - discount + tax matches
// the declared grand total within epsilon minor units.
func (t Totals) ReconciledWithin(epsilon int64) bool {
	sum := t.Subtotal.AmountMinorUnits +
		t.DeliveryFee.AmountMinorUnits +
		t.ServiceFee.AmountMinorUnits -
		t.Discount.AmountMinorUnits +
		t.Tax.AmountMinorUnits

	diff := sum - t.GrandTotal.AmountMinorUnits
	if diff < 0 {
		diff = -diff
	}

	return diff <= epsilon
}

// CanonicalOrder is the normalized representation every adapter produces and
// every downstream consumer reads. It is constructed once per adapter
// invocation and is immutable afterwards; ownership transfers to the
// materializer on success.
type CanonicalOrder struct {
	ExternalOrderID  string                `json:"externalOrderId" validate:"required"`
	Source           aggregator.Aggregator `json:"sourceAggregator" validate:"required"`
	PlacedAt         time.Time             `json:"placedAt" validate:"required"`
	Customer         Customer              `json:"customer"`
	DeliveryAddress  *Address              `json:"deliveryAddress,omitempty"`
	Items            []LineItem            `json:"items" validate:"required,min=1,dive"`
	Totals           Totals                `json:"totals"`
	PaymentMethod    PaymentMethod         `json:"paymentMethod" validate:"required"`
	IsPrepaid        bool                  `json:"isPrepaid"`
	Notes            string                `json:"notes,omitempty"`
	RawPayloadDigest string                `json:"rawPayloadDigest" validate:"required"`

	// TotalsReconciled is false when the declared grand total does not match
	// the summed components beyond the epsilon. Such orders are still
	// accepted and flagged for downstream review; financial data is never
	// silently corrected.
	TotalsReconciled bool `json:"totalsReconciled"`
}

var validate = validator.New()

// Validate checks the structural invariants of the canonical order.
func (o *CanonicalOrder) Validate() error {
	return validate.Struct(o)
}

// PayloadDigest hashes the original webhook bytes for audit and replay.
func PayloadDigest(raw []byte) string {
	sum := sha256.Sum256(raw)

	return hex.EncodeToString(sum[:])
}
