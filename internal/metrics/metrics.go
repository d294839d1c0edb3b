package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Engine collects counters and latencies for ledger transactions.
type Engine struct {
	registry *prometheus.Registry

	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
}

// NewEngine builds a collector set on its own registry under the given
// namespace.
func NewEngine(namespace string) *Engine {
	e := &Engine{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transactions_total",
				Help:      "Total ledger transactions by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "transaction_duration_seconds",
				Help:      "Latency of the atomic unit of work per kind",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}

	e.registry.MustRegister(
		e.transactions,
		e.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return e
}

// ObserveTransaction records one finished operation.
func (e *Engine) ObserveTransaction(kind, outcome string, elapsed time.Duration) {
	if e == nil {
		return
	}
	e.transactions.WithLabelValues(kind, outcome).Inc()
	e.duration.WithLabelValues(kind).Observe(elapsed.Seconds())
}

// Handler exposes the registry in the Prometheus text format.
func (e *Engine) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
