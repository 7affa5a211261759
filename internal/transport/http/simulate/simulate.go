// Package simulate holds the development-only endpoints that synthesize a
// realistic signed payload per sender and POST it to the real webhook
// endpoint. They are useful for adapter regression testing and are not part
// of the production contract.
package simulate

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/viper"
	"github.com/tably/ingest-svc/internal/adapters/boltfood"
	"github.com/tably/ingest-svc/internal/adapters/glovo"
	"github.com/tably/ingest-svc/internal/adapters/paygate"
	"github.com/tably/ingest-svc/internal/adapters/wolt"
	"github.com/tably/ingest-svc/internal/service/models/aggregator"
	"github.com/tably/ingest-svc/internal/verify"
)

// Handle synthesizes a payload for the requested sender and relays the real
// webhook endpoint's response.
func Handle(w http.ResponseWriter, r *http.Request) {
	sourceToken := chi.URLParam(r, "sourceToken")

	agg, err := aggregator.Parse(sourceToken)
	if err != nil {
		http.Error(w, "unknown webhook sender", http.StatusNotFound)

		return
	}

	body, header, headerValue := samplePayload(agg)

	url := fmt.Sprintf(
		"http://localhost:%s/webhooks/%s",
		viper.GetString("server.http.port"),
		sourceToken,
	)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)

		return
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(header, headerValue)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		slog.Error("Simulation request failed", "source", sourceToken, "error", err)

		return
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		slog.Error("Error relaying simulation response", "source", sourceToken, "error", err)
	}
}

func samplePayload(agg aggregator.Aggregator) (body []byte, header, value string) {
	suffix := time.Now().UnixNano()

	switch agg {
	case aggregator.AggregatorBoltFood:
		body = []byte(fmt.Sprintf(`{
			"order_id": "bolt-sim-%d",
			"created": %d,
			"currency": "EUR",
			"customer": {"name": "Sim Customer", "phone": "+37255000000"},
			"delivery": {
				"address": "Telliskivi 60a",
				"city": "Tallinn",
				"postal_code": "10412",
				"location": [24.7284, 59.4404]
			},
			"items": [{"name": "Smash Burger", "quantity": 2, "price": 900}],
			"price": {"subtotal": 1800, "delivery_fee": 250, "service_fee": 50, "discount": 0, "tax": 0, "total": 2100},
			"payment_method": "card"
		}`, suffix, time.Now().Unix()))

		return body, boltfood.SignatureHeader, verify.Sign(body, []byte(os.Getenv("BOLT_WEBHOOK_SECRET")))
	case aggregator.AggregatorWolt:
		body = []byte(fmt.Sprintf(`{
			"id": "wolt-sim-%d",
			"created_at": %q,
			"consumer": {"name": "Sim Customer", "phone_number": "+358400000000"},
			"delivery": {
				"street": "Mannerheimintie 1",
				"city": "Helsinki",
				"post_code": "00100",
				"location": {"latitude": 60.1699, "longitude": 24.9384}
			},
			"items": [{"name": "Ramen", "count": 1, "price": {"unit_price": "12.50", "total_price": "12.50"}}],
			"price": {"subtotal": "12.50", "delivery": "2.90", "service_fee": "0.60", "discount": "0.00", "tax": "0.00", "total": "16.00", "currency": "EUR"},
			"payment": {"method": "card", "prepaid": true}
		}`, suffix, time.Now().UTC().Format(time.RFC3339)))

		return body, wolt.SignatureHeader, verify.Sign(body, []byte(os.Getenv("WOLT_WEBHOOK_SECRET")))
	case aggregator.AggregatorGlovo:
		body = []byte(fmt.Sprintf(`{
			"order_id": "glovo-sim-%d",
			"order_time": %q,
			"currency": "EUR",
			"customer": {"name": "Sim Customer", "phone_number": "+34600000000"},
			"delivery_address": {"label": "Carrer de Mallorca 401", "city": "Barcelona", "postal_code": "08013"},
			"products": [{"name": "Paella", "quantity": 1, "price": 14.00}],
			"prices": {"subtotal": 14.00, "delivery_fee": 1.90, "service_fee": 0.40, "discount": 0.00, "tax": 0.00, "total": 16.30},
			"payment_method": "cash"
		}`, suffix, time.Now().UTC().Format(time.RFC3339)))

		return body, glovo.AuthHeader, os.Getenv("GLOVO_SHARED_TOKEN")
	case aggregator.AggregatorPaygate:
		body = []byte(fmt.Sprintf(`{
			"type": "payment.captured",
			"payment_id": "pay-sim-%d",
			"order_reference": "web-sim-%d",
			"created": %d,
			"amount": 2100,
			"currency": "EUR",
			"payer": {"name": "Sim Customer", "phone": "+37060000000"},
			"cart": {
				"items": [{"title": "Poke Bowl", "quantity": 2, "unit_amount": 1050}],
				"subtotal": 2100, "delivery_fee": 0, "service_fee": 0, "discount": 0, "tax": 0
			}
		}`, suffix, suffix, time.Now().Unix()))

		return body, paygate.SignatureHeader, verify.Sign(body, []byte(os.Getenv("PAYGATE_WEBHOOK_SECRET")))
	}

	return nil, "", ""
}
