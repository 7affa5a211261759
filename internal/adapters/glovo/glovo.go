// Package glovo parses Glovo order webhooks.
//
// Wire format notes: monetary fields arrive as decimal major-unit values,
// timestamps as ISO-8601, and the delivery address as free text without
// coordinates. Deliveries carry an opaque shared token in the Authorization
// header instead of a body signature.
package glovo

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

// AuthHeader carries the shared secret configured for the integration.
const AuthHeader = "Authorization"

type attributePayload struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

type productPayload struct {
	Name       string             `json:"name"`
	Quantity   int                `json:"quantity"`
	Price      decimal.Decimal    `json:"price"`
	Attributes []attributePayload `json:"attributes"`
}

type customerPayload struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	Email       string `json:"email"`
}

type addressPayload struct {
	Label      string `json:"label"`
	Details    string `json:"details"`
	City       string `json:"city"`
	PostalCode string `json:"postal_code"`
}

type pricesPayload struct {
	Subtotal    decimal.Decimal `json:"subtotal"`
	DeliveryFee decimal.Decimal `json:"delivery_fee"`
	ServiceFee  decimal.Decimal `json:"service_fee"`
	Discount    decimal.Decimal `json:"discount"`
	Tax         decimal.Decimal `json:"tax"`
	Total       decimal.Decimal `json:"total"`
}

type orderPayload struct {
	OrderID             string          `json:"order_id"`
	OrderTime           string          `json:"order_time"`
	Currency            string          `json:"currency"`
	Customer            customerPayload `json:"customer"`
	DeliveryAddress     *addressPayload `json:"delivery_address"`
	Products            []productPayload `json:"products"`
	Prices              pricesPayload   `json:"prices"`
	PaymentMethod       string          `json:"payment_method"`
	SpecialRequirements string          `json:"special_requirements"`
}

type Adapter struct{}

func New() *Adapter {
	return &Adapter{}
}

func (a *Adapter) Aggregator() aggregator.Aggregator {
	return aggregator.AggregatorGlovo
}

// Parse converts a Glovo order payload into a canonical order event.
func (a *Adapter) Parse(rawBody []byte) (*adapters.Event, error) {
	var payload orderPayload
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode glovo payload: %w", err)
	}

	if payload.OrderID == "" {
		return nil, errors.New("missing order_id")
	}
	if len(payload.Products) == 0 {
		return nil, errors.New("order has no products")
	}

	placedAt, err := time.Parse(time.RFC3339, payload.OrderTime)
	if err != nil {
		return nil, fmt.Errorf("invalid order_time %q: %w", payload.OrderTime, err)
	}

	cur, err := currency.ParseCurrency(payload.Currency)
	if err != nil {
		return nil, fmt.Errorf("invalid currency %q: %w", payload.Currency, err)
	}

	items := make([]order.LineItem, len(payload.Products))
	for i, product := range payload.Products {
		if product.Name == "" {
			return nil, fmt.Errorf("product %d is missing a name", i)
		}
		if product.Quantity <= 0 {
			return nil, fmt.Errorf("product %d has non-positive quantity", i)
		}

		attributes := make([]order.Modifier, len(product.Attributes))
		for j, attr := range product.Attributes {
			attributes[j] = order.Modifier{
				Name:       attr.Name,
				ExtraPrice: money.FromDecimal(attr.Price, cur),
			}
		}

		unitPrice := money.FromDecimal(product.Price, cur)
		items[i] = order.LineItem{
			Name:      product.Name,
			Quantity:  product.Quantity,
			UnitPrice: unitPrice,
			// Glovo does not supply a per-line subtotal.
			Subtotal:  unitPrice.MulInt(int64(product.Quantity)),
			Modifiers: attributes,
		}
	}

	var address *order.Address
	if payload.DeliveryAddress != nil {
		address = &order.Address{
			Line1:      payload.DeliveryAddress.Label,
			Line2:      payload.DeliveryAddress.Details,
			City:       payload.DeliveryAddress.City,
			PostalCode: payload.DeliveryAddress.PostalCode,
		}
	}

	totals := order.Totals{
		Subtotal:    money.FromDecimal(payload.Prices.Subtotal, cur),
		DeliveryFee: money.FromDecimal(payload.Prices.DeliveryFee, cur),
		ServiceFee:  money.FromDecimal(payload.Prices.ServiceFee, cur),
		Discount:    money.FromDecimal(payload.Prices.Discount, cur),
		Tax:         money.FromDecimal(payload.Prices.Tax, cur),
		GrandTotal:  money.FromDecimal(payload.Prices.Total, cur),
	}

	method, prepaid := paymentMethod(payload.PaymentMethod)

	o := &order.CanonicalOrder{
		ExternalOrderID: payload.OrderID,
		Source:          aggregator.AggregatorGlovo,
		PlacedAt:        placedAt.UTC(),
		Customer: order.Customer{
			Name:  payload.Customer.Name,
			Phone: payload.Customer.PhoneNumber,
			Email: payload.Customer.Email,
		},
		DeliveryAddress:  address,
		Items:            items,
		Totals:           totals,
		PaymentMethod:    method,
		IsPrepaid:        prepaid,
		Notes:            payload.SpecialRequirements,
		RawPayloadDigest: order.PayloadDigest(rawBody),
		TotalsReconciled: totals.ReconciledWithin(order.TotalsEpsilonMinorUnits),
	}

	if err := o.Validate(); err != nil {
		return nil, fmt.Errorf("invalid glovo order: %w", err)
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
