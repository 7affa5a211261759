// Package wolt parses Wolt order webhooks.
//
// Wire format notes: monetary fields arrive as decimal major-unit strings,
// timestamps as ISO-8601, and the drop-off location as named latitude and
// longitude fields. Cart items carry a nested price object whose total_price
// is the sender-computed line subtotal; it is trusted verbatim because Wolt
// applies promotions that are not visible in the unit price. Deliveries are
// signed with HMAC-SHA256 over the raw body, hex-encoded in the
// X-Wolt-Signature header.
package wolt

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tably/ingest-svc/internal/adapters"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/service/models/currency"
	"github.com/tably/ingest-svc/internal/service/models/money"
	"github.com/tably/ingest-svc/internal/service/models/order"
	"github.com/tably/ingest-svc/internal/service/models/webhookevent"
)

// SignatureHeader carries the hex HMAC-SHA256 digest of the raw body.
const SignatureHeader = "X-Wolt-Signature"

type optionPayload struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type itemPricePayload struct {
	UnitPrice  decimal.Decimal `json:"unit_price"`
	TotalPrice decimal.Decimal `json:"total_price"`
}

type itemPayload struct {
	Name    string           `json:"name"`
	Count   int              `json:"count"`
	Price   itemPricePayload `json:"price"`
	Options []optionPayload  `json:"options"`
}

type consumerPayload struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type locationPayload struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type deliveryPayload struct {
	Street    string           `json:"street"`
	Apartment string           `json:"apartment"`
	City      string           `json:"city"`
	PostCode  string           `json:"post_code"`
	Location  *locationPayload `json:"location"`
	Comment   string           `json:"comment"`
}

type pricePayload struct {
	Subtotal   decimal.Decimal `json:"subtotal"`
	Delivery   decimal.Decimal `json:"delivery"`
	ServiceFee decimal.Decimal `json:"service_fee"`
	Discount   decimal.Decimal `json:"discount"`
	Tax        decimal.Decimal `json:"tax"`
	Total      decimal.Decimal `json:"total"`
	Currency   string          `json:"currency"`
}

type paymentPayload struct {
	Method  string `json:"method"`
	Prepaid bool   `json:"prepaid"`
}

type orderPayload struct {
	ID        string           `json:"id"`
	CreatedAt string           `json:"created_at"`
	Consumer  consumerPayload  `json:"consumer"`
	Delivery  *deliveryPayload `json:"delivery"`
	Items     []itemPayload    `json:"items"`
	Price     pricePayload     `json:"price"`
	Payment   paymentPayload   `json:"payment"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Aggregator() aggregator.Aggregator {
	return aggregator.AggregatorWolt
}

// Parse converts a Wolt order payload into a canonical order event.
func (a *Adapter) Parse(rawBody []byte) (*adapters.Event, error) {
	var payload orderPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode wolt payload: %w", err)
	}

	if payload.ID == "" {
		return nil, errors.New("missing order id")
	}
	if len(payload.Items) == 0 {
		return nil, errors.New("order has no items")
	}

	placedAt, err := time.Parse(time.RFC3339, payload.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", payload.CreatedAt, err)
	}

	cur, err := currency.ParseCurrency(payload.Price.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", payload.Price.Currency, err)
	}

	items := make([]order.LineItem, len(payload.Items))
	for i, item := range payload.Items {
		if item.Name == "" {
			return nil, fmt.Errorf("item %d is missing a name", i)
		}
		if item.Count <= 0 {
			return nil, fmt.Errorf("item %d has non-positive count", i)
		}

		options := make([]order.Modifier, len(item.Options))
		for j, opt := range item.Options {
			options[j] = order.Modifier{
				Name:       opt.Name,
				ExtraPrice: money.FromDecimal(opt.Price, cur),
			}
		}

		items[i] = order.LineItem{
			Name:      item.Name,
			Quantity:  item.Count,
			UnitPrice: money.FromDecimal(item.Price.UnitPrice, cur),
			// The sender-computed line total is authoritative; promotions
			// applied on Wolt's side are not reflected in the unit price.
			Subtotal:  money.FromDecimal(item.Price.TotalPrice, cur),
			Modifiers: options,
		}
	}

	var address *order.Address
	notes := ""
	if payload.Delivery != nil {
		address = &order.Address{
			Line1:      payload.Delivery.Street,
			Line2:      payload.Delivery.Apartment,
			City:       payload.Delivery.City,
			PostalCode: payload.Delivery.PostCode,
		}
		if payload.Delivery.Location != nil {
			address.Coordinates = &order.GeoPoint{
				Lat: payload.Delivery.Location.Latitude,
				Lon: payload.Delivery.Location.Longitude,
			}
		}
		notes = payload.Delivery.Comment
	}

	totals := order.Totals{
		Subtotal:    money.FromDecimal(payload.Price.Subtotal, cur),
		DeliveryFee: money.FromDecimal(payload.Price.Delivery, cur),
		ServiceFee:  money.FromDecimal(payload.Price.ServiceFee, cur),
		Discount:    money.FromDecimal(payload.Price.Discount, cur),
		Tax:         money.FromDecimal(payload.Price.Tax, cur),
		GrandTotal:  money.FromDecimal(payload.Price.Total, cur),
	}

	o := &order.CanonicalOrder{
		ExternalOrderID: payload.ID,
		Source:          aggregator.AggregatorWolt,
		PlacedAt:        placedAt.UTC(),
		Customer: order.Customer{
			Name:  payload.Consumer.Name,
			Phone: payload.Consumer.PhoneNumber,
			Email: payload.Consumer.Email,
		},
		DeliveryAddress:  address,
		Items:            items,
		Totals:           totals,
		PaymentMethod:    paymentMethod(payload.Payment.Method),
		IsPrepaid:        payload.Payment.Prepaid,
		Notes:            notes,
		RawPayloadDigest: order.PayloadDigest(rawBody),
		TotalsReconciled: totals.ReconciledWithin(order.TotalsEpsilonMinorUnits),
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid wolt order: %w", err)
	}

	return &adapters.Event{
		Order:     o,
		EventType: webhookevent.EventTypeOrderCreated,
	}, nil
}

func paymentMethod(s string) order.PaymentMethod {
	switch s {
	case "card":
		return order.PaymentMethodCard
	case "cash":
		return order.PaymentMethodCash
	case "online":
		return order.PaymentMethodOnline
	default:
		return order.PaymentMethodUnknown
	}
}
