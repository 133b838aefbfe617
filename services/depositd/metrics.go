package depositd

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics aggregates the service's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	DepositsCreated   prometheus.Counter
	IdempotentReplays prometheus.Counter
	TxnConflicts      prometheus.Counter
	QuoteDuration     prometheus.Histogram
}

// NewMetrics registers the depositd collectors on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		DepositsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depositd",
			Name:      "deposits_created_total",
			Help:      "Time deposits opened.",
		}),
		IdempotentReplays: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depositd",
			Name:      "idempotent_replays_total",
			Help:      "Creation requests answered from an existing record.",
		}),
		TxnConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "depositd",
			Name:      "transaction_conflicts_total",
			Help:      "Creation requests that lost a transaction race.",
		}),
		QuoteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "depositd",
			Name:      "quote_duration_seconds",
			Help:      "Latency of quote computation.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	registry.MustRegister(m.DepositsCreated, m.IdempotentReplays, m.TxnConflicts, m.QuoteDuration)
	return m
}

// Handler exposes the registry for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
