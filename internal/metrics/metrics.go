// Package metrics provides Prometheus metrics for the retrieval path.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the retrieval collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RetrievalsTotal      *prometheus.CounterVec
	RetrievalErrorsTotal prometheus.Counter
	RetrievalDuration    prometheus.Histogram
	ReconcileTotal       *prometheus.CounterVec
	InterpretTotal       *prometheus.CounterVec
	DocumentsReturned    prometheus.Histogram
	CorpusDocuments      prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RetrievalsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regolith_retrievals_total",
				Help: "Completed retrievals by terminal strategy",
			},
			[]string{"strategy"},
		),
		RetrievalErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "regolith_retrieval_errors_total",
				Help: "Retrievals that failed because the vector index was unavailable",
			},
		),
		RetrievalDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "regolith_retrieval_duration_seconds",
				Help:    "End-to-end retrieval latency",
				Buckets: prometheus.DefBuckets,
			},
		),
		ReconcileTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regolith_reconcile_total",
				Help: "Confidence reconciliations by outcome",
			},
			[]string{"outcome"},
		),
		InterpretTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "regolith_interpret_total",
				Help: "Query interpretations by outcome",
			},
			[]string{"outcome"},
		),
		DocumentsReturned: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "regolith_documents_returned",
				Help:    "Number of documents per retrieval result",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		CorpusDocuments: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "regolith_corpus_documents",
				Help: "Documents currently held by the vector index",
			},
		),
	}
}

// ObserveRetrieval records a completed retrieval.
func (m *Metrics) ObserveRetrieval(strategy string, docs int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalsTotal.WithLabelValues(strategy).Inc()
	m.DocumentsReturned.Observe(float64(docs))
	m.RetrievalDuration.Observe(elapsed.Seconds())
}

// ObserveRetrievalError records a failed retrieval.
func (m *Metrics) ObserveRetrievalError(elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalErrorsTotal.Inc()
	m.RetrievalDuration.Observe(elapsed.Seconds())
}

// ObserveReconcile records a reconciliation outcome.
func (m *Metrics) ObserveReconcile(outcome string) {
	if m == nil {
		return
	}
	m.ReconcileTotal.WithLabelValues(outcome).Inc()
}

// ObserveInterpret records an interpretation outcome.
func (m *Metrics) ObserveInterpret(outcome string) {
	if m == nil {
		return
	}
	m.InterpretTotal.WithLabelValues(outcome).Inc()
}

// SetCorpusSize updates the corpus gauge.
func (m *Metrics) SetCorpusSize(n int) {
	if m == nil {
		return
	}
	m.CorpusDocuments.Set(float64(n))
}
