// Package paygate parses payment-captured notifications from the payment
// processor. The notification carries the full paid cart of an online order,
// so it produces a prepaid canonical order like the delivery aggregators do.
//
// Wire format notes: monetary fields arrive as integer minor currency units
// and timestamps as Unix epoch seconds. Deliveries are signed with
// HMAC-SHA256 over the raw body, hex-encoded in the X-Paygate-Signature
// header.
package paygate

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tably/ingest-svc/internal/adapters"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/currency"
	"github.com/tably/ingest-svc/internal/service/models/money"
	"github.com/tably/ingest-svc/internal/service/models/order"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw body.
const SignatureHeader = "X-Paygate-Signature"

const eventPaymentCaptured = "payment.captured"

type itemPayload struct {
	Title      string `json:"title"`
	Quantity   int    `json:"quantity"`
	UnitAmount int64  `json:"unit_amount"`
}

type cartPayload struct {
	Items       []itemPayload `json:"items"`
	Subtotal    int64         `json:"subtotal"`
	DeliveryFee int64         `json:"delivery_fee"`
	ServiceFee  int64         `json:"service_fee"`
	Discount    int64         `json:"discount"`
	Tax         int64         `json:"tax"`
}

type payerPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type notificationPayload struct {
	Type           string       `json:"type"`
	PaymentID      string       `json:"payment_id"`
	OrderReference string       `json:"order_reference"`
	Created        int64        `json:"created"`
	Amount         int64        `json:"amount"`
	Currency       string       `json:"currency"`
	Payer          payerPayload `json:"payer"`
	Cart           cartPayload  `json:"cart"`
	Description    string       `json:"description"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Aggregator() aggregator.Aggregator {
	return aggregator.AggregatorPaygate
}

// Parse converts a payment-captured notification into a canonical order
// event keyed by payment.captured.
func (a *Adapter) Parse(rawBody []byte) (*adapters.Event, error) {
	var payload notificationPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode paygate payload: %w", err)
	}

	if payload.Type != eventPaymentCaptured {
		return nil, fmt.Errorf("unsupported notification type %q", payload.Type)
	}
	if payload.OrderReference == "" {
		return nil, errors.New("missing order_reference")
	}
	if payload.Created == 0 {
		return nil, errors.New("missing created timestamp")
	}
	if len(payload.Cart.Items) == 0 {
		return nil, errors.New("cart has no items")
	}

	cur, err := currency.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", payload.Currency, err)
	}

	items := make([]order.LineItem, len(payload.Cart.Items))
	for i, item := range payload.Cart.Items {
		if item.Title == "" {
			return nil, fmt.Errorf("cart item %d is missing a title", i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("cart item %d has non-positive quantity", i)
		}

		unitPrice := money.FromMinorUnits(item.UnitAmount, cur)
		items[i] = order.LineItem{
			Name:      item.Title,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			Subtotal:  unitPrice.MulInt(int64(item.Quantity)),
		}
	}

	totals := order.Totals{
		Subtotal:    money.FromMinorUnits(payload.Cart.Subtotal, cur),
		DeliveryFee: money.FromMinorUnits(payload.Cart.DeliveryFee, cur),
		ServiceFee:  money.FromMinorUnits(payload.Cart.ServiceFee, cur),
		Discount:    money.FromMinorUnits(payload.Cart.Discount, cur),
		Tax:         money.FromMinorUnits(payload.Cart.Tax, cur),
		// The captured amount is what the customer actually paid.
		GrandTotal: money.FromMinorUnits(payload.Amount, cur),
	}

	o := &order.CanonicalOrder{
		ExternalOrderID: payload.OrderReference,
		Source:          aggregator.AggregatorPaygate,
		PlacedAt:        time.Unix(payload.Created, 0).UTC(),
		Customer: order.Customer{
			Name:  payload.Payer.Name,
			Phone: payload.Payer.Phone,
			Email: payload.Payer.Email,
		},
		Items:            items,
		Totals:           totals,
		PaymentMethod:    order.PaymentMethodOnline,
		IsPrepaid:        true,
		Notes:            payload.Description,
		RawPayloadDigest: order.PayloadDigest(rawBody),
		TotalsReconciled: totals.ReconciledWithin(order.TotalsEpsilonMinorUnits),
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid paygate order: %w", err)
	}

	return &adapters.Event{
		Order:     o,
		EventType: webhookevent.EventTypePaymentCaptured,
	}, nil
}
