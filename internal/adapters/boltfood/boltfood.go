// Package boltfood parses Bolt Food order webhooks.
//
// Wire format notes: all monetary fields arrive as integer minor currency
// units, timestamps as Unix epoch seconds, and the drop-off location as a
// GeoJSON-style [longitude, latitude] pair. Deliveries are signed with
// HMAC-SHA256 over the raw body, hex-encoded in the X-Bolt-Signature header.
package boltfood

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
const SignatureHeader = "X-Bolt-Signature"

type modifierPayload struct {
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

type itemPayload struct {
	Name      string            `json:"name"`
	Quantity  int               `json:"quantity"`
	Price     int64             `json:"price"`
	Modifiers []modifierPayload `json:"modifiers"`
}

type customerPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email"`
}

type deliveryPayload struct {
	Address    string    `json:"address"`
	Address2   string    `json:"address2"`
	City       string    `json:"city"`
	PostalCode string    `json:"postal_code"`
	Location   []float64 `json:"location"`
}

type pricePayload struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	ServiceFee  int64 `json:"service_fee"`
	Discount    int64 `json:"discount"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
}

type orderPayload struct {
	OrderID       string           `json:"order_id"`
	Created       int64            `json:"created"`
	Currency      string           `json:"currency"`
	Customer      customerPayload  `json:"customer"`
	Delivery      *deliveryPayload `json:"delivery"`
	Items         []itemPayload    `json:"items"`
	Price         pricePayload     `json:"price"`
	PaymentMethod string           `json:"payment_method"`
	Comment       string           `json:"comment"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Aggregator() aggregator.Aggregator {
	return aggregator.AggregatorBoltFood
}

// Parse converts a Bolt Food order payload into a canonical order event.
func (a *Adapter) Parse(rawBody []byte) (*adapters.Event, error) {
	var payload orderPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode bolt payload: %w", err)
	}

	if payload.OrderID == "" {
		return nil, errors.New("missing order_id")
	}
	if payload.Created == 0 {
		return nil, errors.New("missing created timestamp")
	}
	if len(payload.Items) == 0 {
		return nil, errors.New("order has no items")
	}

	cur, err := currency.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", payload.Currency, err)
	}

	items := make([]order.LineItem, len(payload.Items))
	for i, item := range payload.Items {
		if item.Name == "" {
			return nil, fmt.Errorf("item %d is missing a name", i)
		}
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item %d has non-positive quantity", i)
		}

		modifiers := make([]order.Modifier, len(item.Modifiers))
		for j, mod := range item.Modifiers {
			modifiers[j] = order.Modifier{
				Name:       mod.Name,
				ExtraPrice: money.FromMinorUnits(mod.Price, cur),
			}
		}

		unitPrice := money.FromMinorUnits(item.Price, cur)
		items[i] = order.LineItem{
			Name:      item.Name,
			Quantity:  item.Quantity,
			UnitPrice: unitPrice,
			// Bolt does not supply a per-line subtotal.
			Subtotal:  unitPrice.MulInt(int64(item.Quantity)),
			Modifiers: modifiers,
		}
	}

	var address *order.Address
	if payload.Delivery != nil {
		address = &order.Address{
			Line1:      payload.Delivery.Address,
			Line2:      payload.Delivery.Address2,
			City:       payload.Delivery.City,
			PostalCode: payload.Delivery.PostalCode,
		}
		if len(payload.Delivery.Location) == 2 {
			// GeoJSON ordering: [longitude, latitude].
			address.Coordinates = &order.GeoPoint{
				Lat: payload.Delivery.Location[1],
				Lon: payload.Delivery.Location[0],
			}
		}
	}

	totals := order.Totals{
		Subtotal:    money.FromMinorUnits(payload.Price.Subtotal, cur),
		DeliveryFee: money.FromMinorUnits(payload.Price.DeliveryFee, cur),
		ServiceFee:  money.FromMinorUnits(payload.Price.ServiceFee, cur),
		Discount:    money.FromMinorUnits(payload.Price.Discount, cur),
		Tax:         money.FromMinorUnits(payload.Price.Tax, cur),
		GrandTotal:  money.FromMinorUnits(payload.Price.Total, cur),
	}

	method, prepaid := paymentMethod(payload.PaymentMethod)

	o := &order.CanonicalOrder{
		ExternalOrderID: payload.OrderID,
		Source:          aggregator.AggregatorBoltFood,
		PlacedAt:        time.Unix(payload.Created, 0).UTC(),
		Customer: order.Customer{
			Name:  payload.Customer.Name,
			Phone: payload.Customer.Phone,
			Email: payload.Customer.Email,
		},
		DeliveryAddress:  address,
		Items:            items,
		Totals:           totals,
		PaymentMethod:    method,
		IsPrepaid:        prepaid,
		Notes:            payload.Comment,
		RawPayloadDigest: order.PayloadDigest(rawBody),
		TotalsReconciled: totals.ReconciledWithin(order.TotalsEpsilonMinorUnits),
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid bolt order: %w", err)
	}

	return &adapters.Event{
		Order:     o,
		EventType: webhookevent.EventTypeOrderCreated,
	}, nil
}

func paymentMethod(s string) (order.PaymentMethod, bool) {
	switch s {
	case "card":
		return order.PaymentMethodCard, true
	case "cash":
		return order.PaymentMethodCash, false
	case "online":
		return order.PaymentMethodOnline, true
	default:
		return order.PaymentMethodUnknown, false
	}
}
