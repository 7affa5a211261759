package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds the ingestion pipeline metrics.
type Registry struct {
	reg *prometheus.Registry

	Received       *prometheus.CounterVec
	Accepted       *prometheus.CounterVec
	Duplicates     *prometheus.CounterVec
	Rejected       *prometheus.CounterVec
	Unreconciled   *prometheus.CounterVec
	MaterializeSec prometheus.Histogram
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()

	received := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_webhooks_received_total"},
		[]string{"aggregator"},
	)
	accepted := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_orders_accepted_total"},
		[]string{"aggregator"},
	)
	duplicates := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_webhooks_duplicate_total"},
		[]string{"aggregator"},
	)
	rejected := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_webhooks_rejected_total"},
		[]string{"aggregator", "reason"},
	)
	unreconciled := prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "ingest_orders_unreconciled_total"},
		[]string{"aggregator"},
	)
	materializeSec := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "ingest_materialize_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})

	r.MustRegister(received, accepted, duplicates, rejected, unreconciled, materializeSec)

	return &Registry{
		reg:            r,
		Received:       received,
		Accepted:       accepted,
		Duplicates:     duplicates,
		Rejected:       rejected,
		Unreconciled:   unreconciled,
		MaterializeSec: materializeSec,
	}
}

func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
