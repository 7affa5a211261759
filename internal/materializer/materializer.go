// Package materializer holds the client for the downstream order service
// that turns a canonical order into a persisted order record. The ingestion
// core never retries it: the sender's own webhook retry, re-entering at the
// idempotency guard, is the retry mechanism.
package materializer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/viper"
	"github.com/tably/ingest-svc/internal/service/models/order"
)

// ErrDuplicateOrder is returned when the order service reports that an order
// for this canonical order already exists.
var ErrDuplicateOrder = errors.New("order already exists downstream")

// Materializer creates the internal order record for a canonical order.
type Materializer interface {
	CreateOrder(ctx context.Context, o *order.CanonicalOrder) (int64, error)
}

// HTTPClient calls the internal order service over its JSON API.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a materializer client against the configured order
// service with a bounded request timeout.
func NewHTTPClient() *HTTPClient {
	timeoutSeconds := viper.GetInt("materializer.timeout_seconds")
	if timeoutSeconds == 0 {
		timeoutSeconds = 10
	}

	return &HTTPClient{
		baseURL: viper.GetString("materializer.base_url"),
		client: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type createOrderResponse struct {
	OrderID int64 `json:"orderId"`
}

// CreateOrder posts the canonical order to the order service and returns the
// created internal order id.
func (c *HTTPClient) CreateOrder(ctx context.Context, o *order.CanonicalOrder) (int64, error) {
	body, err := json.Marshal(o)
	if err != nil {
		return 0, fmt.Errorf("failed to encode canonical order: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/internal/v1/orders",
		bytes.NewReader(body),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to build create order request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to call order service: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusConflict:
		return 0, ErrDuplicateOrder
	case resp.StatusCode >= 300:
		return 0, fmt.Errorf("order service returned status %d", resp.StatusCode)
	}

	var created createOrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return 0, fmt.Errorf("failed to decode order service response: %w", err)
	}

	return created.OrderID, nil
}
