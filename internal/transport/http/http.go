package httptransport

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	"github.com/tably/ingest-svc/internal/service/models/dispatch"
	"github.com/tably/ingest-svc/internal/transport/http/simulate"
	"github.com/tably/ingest-svc/internal/transport/http/webhook"
	"github.com/tably/ingest-svc/pkg/http/middleware/trace"
	"github.com/tably/ingest-svc/pkg/logger"
)

type service interface {
	Handle(ctx context.Context, sourceToken string, rawBody []byte, headers http.Header) (dispatch.Result, error)
}

type HTTPTransport struct {
	server         *http.Server
	router         *chi.Mux
	service        service
	metricsHandler http.Handler
}

func NewHTTPTransport(service service, metricsHandler http.Handler) *HTTPTransport {
	router := newRouter()
	server := newServer(router)
	return &HTTPTransport{
		server:         server,
		router:         router,
		service:        service,
		metricsHandler: metricsHandler,
	}
}

func (h *HTTPTransport) Run() error {
	return h.server.ListenAndServe()
}

func (h *HTTPTransport) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// RegisterRoutes registers the routes for the HTTPTransport.
func (h *HTTPTransport) RegisterRoutes() {
	h.router.Route("/webhooks", func(r chi.Router) {
		r.Post("/{sourceToken}", h.handleWebhook)
	})

	if h.metricsHandler != nil {
		h.router.Handle("/metrics", h.metricsHandler)
	}

	if viper.GetBool("server.http.enable_simulation") {
		h.router.Post("/dev/simulate/{sourceToken}", simulate.Handle)
	}
}

func (h *HTTPTransport) handleWebhook(w http.ResponseWriter, r *http.Request) {
	webhook.Handle(w, r, h.service)
}

func newRouter() *chi.Mux {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(trace.NewTraceMiddleware)
	router.Use(logger.NewLoggerMiddleware(slog.Default()))

	allowedOrigins := viper.GetStringSlice("server.http.cors.allowed_origins")
	allowedMethods := viper.GetStringSlice("server.http.cors.allowed_methods")
	allowedHeaders := viper.GetStringSlice("server.http.cors.allowed_headers")
	exposedHeaders := viper.GetStringSlice("server.http.cors.exposed_headers")
	allowCredentials := viper.GetBool("server.http.cors.allow_credentials")
	maxAge := viper.GetInt("server.http.cors.max_age")

	c := cors.New(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   allowedMethods,
		AllowedHeaders:   allowedHeaders,
		ExposedHeaders:   exposedHeaders,
		AllowCredentials: allowCredentials,
		MaxAge:           maxAge,
	})

	router.Use(c.Handler)

	return router
}

func newServer(router http.Handler) *http.Server {
	return &http.Server{
		Addr:    "0.0.0.0:" + viper.GetString("server.http.port"),
		Handler: router,
	}
}
