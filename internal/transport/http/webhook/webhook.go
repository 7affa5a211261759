package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/tably/ingest-svc/internal/service/models/dispatch"
)

// maxBodyBytes caps webhook payload size; aggregator orders are a few KB.
const maxBodyBytes = 1 << 20

// service is an interface for the service layer.
type service interface {
	Handle(ctx context.Context, sourceToken string, rawBody []byte, headers http.Header) (dispatch.Result, error)
}

type webhookResponse struct {
	Status          dispatch.Status `json:"status"`
	OrderID         int64           `json:"orderId,omitempty"`
	ExternalOrderID string          `json:"externalOrderId,omitempty"`
}

// Handle processes one inbound webhook delivery and maps the dispatch
// outcome to a transport status: 2xx tells the sender to stop retrying,
// 4xx marks a permanent rejection, 5xx asks the sender to retry.
func Handle(w http.ResponseWriter, r *http.Request, service service) {
	sourceToken := chi.URLParam(r, "sourceToken")

	rawBody, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		slog.Error("Error reading webhook body", "source", sourceToken, "error", err)

		return
	}

	result, err := service.Handle(r.Context(), sourceToken, rawBody, r.Header)
	if err != nil {
		writeDispatchError(w, sourceToken, err)

		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(webhookResponse{
		Status:          result.Status,
		OrderID:         result.OrderID,
		ExternalOrderID: result.ExternalOrderID,
	}); err != nil {
		slog.Error("Error sending webhook response", "source", sourceToken, "error", err)
	}
}

func writeDispatchError(w http.ResponseWriter, sourceToken string, err error) {
	var parseErr *dispatch.ParseError
	var matErr *dispatch.MaterializationError

	switch {
	case errors.Is(err, dispatch.ErrUnknownSender):
		http.Error(w, "unknown webhook sender", http.StatusNotFound)
	case errors.Is(err, dispatch.ErrSignature):
		http.Error(w, "signature verification failed", http.StatusUnauthorized)
	case errors.As(err, &parseErr):
		http.Error(w, "payload rejected", http.StatusBadRequest)
	case errors.As(err, &matErr):
		// 5xx: the sender's retry is the only retry mechanism.
		http.Error(w, "temporary failure, retry later", http.StatusBadGateway)
	default:
		http.Error(w, "internal error", http.StatusInternalServerError)
		slog.Error("Unclassified webhook error", "source", sourceToken, "error", err)
	}
}
