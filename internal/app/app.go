package app

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tably/ingest-svc/internal/adapters/boltfood"
	"github.com/tably/ingest-svc/internal/adapters/glovo"
	"github.com/tably/ingest-svc/internal/adapters/paygate"
	"github.com/tably/ingest-svc/internal/adapters/wolt"
	"github.com/tably/ingest-svc/internal/dal/postgres"
	"github.com/tably/ingest-svc/internal/dal/rabbitmq"
	guardrepo "github.com/tably/ingest-svc/internal/dal/repositories/webhookevents/postgres"
	"github.com/tably/ingest-svc/internal/materializer"
	"github.com/tably/ingest-svc/internal/metrics"
	"github.com/tably/ingest-svc/internal/otel"
	"github.com/tably/ingest-svc/internal/service/services/dispatchsvc"
	httptransport "github.com/tably/ingest-svc/internal/transport/http"
	"github.com/tably/ingest-svc/internal/verify"
	"github.com/tably/ingest-svc/internal/worker/retention"
)

// App represents the application.
type App struct {
	dispatchSvc     *dispatchsvc.DispatchService
	transport       *httptransport.HTTPTransport
	postgresClient  *postgres.Client
	rabbitClient    *rabbitmq.Client
	retentionWorker *retention.Worker
	otelController  *otel.OtelController
}

// MustNewApp creates a new application.
func MustNewApp() *App {
	otelController := otel.MustInitOtel()

	postgresClient := postgres.MustNewClient()
	guardStore := guardrepo.NewGuardStore(postgresClient)

	rabbitClient := rabbitmq.MustNewClient()
	rabbitClient.MustDeclareIngestExchange()

	metricsRegistry := metrics.NewRegistry()

	dispatchSvc := dispatchsvc.MustNewDispatchService(
		dispatchsvc.WithGuard(guardStore),
		dispatchsvc.WithMaterializer(materializer.NewHTTPClient()),
		dispatchsvc.WithPublisher(rabbitClient),
		dispatchsvc.WithMetrics(metricsRegistry),
		dispatchsvc.WithSender(
			verify.NewHMACSHA256(boltfood.SignatureHeader, []byte(os.Getenv("BOLT_WEBHOOK_SECRET"))),
			boltfood.New(),
		),
		dispatchsvc.WithSender(
			verify.NewHMACSHA256(wolt.SignatureHeader, []byte(os.Getenv("WOLT_WEBHOOK_SECRET"))),
			wolt.New(),
		),
		dispatchsvc.WithSender(
			verify.NewSharedToken(glovo.AuthHeader, os.Getenv("GLOVO_SHARED_TOKEN")),
			glovo.New(),
		),
		dispatchsvc.WithSender(
			verify.NewHMACSHA256(paygate.SignatureHeader, []byte(os.Getenv("PAYGATE_WEBHOOK_SECRET"))),
			paygate.New(),
		),
	)

	transport := httptransport.NewHTTPTransport(dispatchSvc, metricsRegistry.Handler())
	transport.RegisterRoutes()

	return &App{
		dispatchSvc:     dispatchSvc,
		transport:       transport,
		postgresClient:  postgresClient,
		rabbitClient:    rabbitClient,
		retentionWorker: retention.NewWorker(guardStore),
		otelController:  otelController,
	}
}

// Run starts the application.
// Tracks interrupt signal to gracefully shut down the application.
func (a *App) Run() {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	go a.retentionWorker.Start(workerCtx)

	go func() {
		slog.Info("Starting HTTP server")
		if err := a.transport.Run(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	<-stop
	slog.Info("Shutdown signal received")

	cancelWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.transport.Shutdown(ctx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped gracefully")
	}

	if err := a.rabbitClient.Close(); err != nil {
		slog.Error("RabbitMQ connection close error", "error", err)
	} else {
		slog.Info("RabbitMQ connection closed gracefully")
	}

	a.postgresClient.Close()
	slog.Info("Database connection closed gracefully")

	if err := a.otelController.Shutdown(); err != nil {
		slog.Error("Tracer shutdown error", "error", err)
	}

	slog.Info("Application shutdown complete")
}
