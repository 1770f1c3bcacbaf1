// Package metrics registers the Prometheus collectors the engine exposes
// over /metrics: observation throughput, outlier removal, per-algorithm
// aggregation counts, and collector fetch outcomes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this module registers. Construct one with
// NewRegistry and keep it alive for the process lifetime; there is no
// global singleton, unlike the teacher's package-level init pattern, since
// a library embedding this engine may run more than one instance per
// process.
type Registry struct {
	ObservationsProcessed prometheus.Counter
	OutliersDetected      prometheus.Counter
	AggregationsByAlgo    *prometheus.CounterVec
	AggregationErrors     *prometheus.CounterVec
	FetchLatency          *prometheus.HistogramVec
	FetchOutcomes         *prometheus.CounterVec
	ActiveSources         prometheus.Gauge
	BreakerOpenSources    prometheus.Gauge
}

// NewRegistry builds and registers every collector against reg. Pass
// prometheus.NewRegistry() in tests to avoid colliding with the global
// default registry across test runs.
func NewRegistry(reg prometheus.Registerer) *Registry {
	r := &Registry{
		ObservationsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "priceagg",
			Name:      "observations_processed_total",
			Help:      "Total observations inserted into the store.",
		}),
		OutliersDetected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "priceagg",
			Name:      "outliers_detected_total",
			Help:      "Total observations removed by outlier filtering.",
		}),
		AggregationsByAlgo: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priceagg",
			Name:      "aggregations_total",
			Help:      "Total aggregation results produced, by algorithm.",
		}, []string{"algorithm"}),
		AggregationErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priceagg",
			Name:      "aggregation_errors_total",
			Help:      "Total aggregation failures, by error kind.",
		}, []string{"kind"}),
		FetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "priceagg",
			Name:      "fetch_latency_seconds",
			Help:      "Source fetch latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"source"}),
		FetchOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "priceagg",
			Name:      "fetch_outcomes_total",
			Help:      "Source fetch outcomes, by source and result.",
		}, []string{"source", "result"}),
		ActiveSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "priceagg",
			Name:      "active_sources",
			Help:      "Number of sources currently enabled.",
		}),
		BreakerOpenSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "priceagg",
			Name:      "breaker_open_sources",
			Help:      "Number of sources whose circuit breaker is currently open.",
		}),
	}

	reg.MustRegister(
		r.ObservationsProcessed,
		r.OutliersDetected,
		r.AggregationsByAlgo,
		r.AggregationErrors,
		r.FetchLatency,
		r.FetchOutcomes,
		r.ActiveSources,
		r.BreakerOpenSources,
	)
	return r
}

// RecordFetch records one source fetch's latency and outcome, and counts it
// toward ObservationsProcessed when it succeeded.
func (r *Registry) RecordFetch(source string, start time.Time, success bool) {
	r.FetchLatency.WithLabelValues(source).Observe(time.Since(start).Seconds())
	result := "success"
	if !success {
		result = "failure"
	}
	r.FetchOutcomes.WithLabelValues(source, result).Inc()
	if success {
		r.ObservationsProcessed.Inc()
	}
}

// AddOutliersDetected records n observations removed by outlier filtering.
func (r *Registry) AddOutliersDetected(n int) {
	r.OutliersDetected.Add(float64(n))
}

// IncAggregation records one successful aggregation by the named algorithm.
func (r *Registry) IncAggregation(algo string) {
	r.AggregationsByAlgo.WithLabelValues(algo).Inc()
}

// IncAggregationError records one aggregation failure of the named kind.
func (r *Registry) IncAggregationError(kind string) {
	r.AggregationErrors.WithLabelValues(kind).Inc()
}

// Handler returns the Prometheus exposition HTTP handler serving whatever
// gatherer collects (pass the *prometheus.Registry given to NewRegistry).
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
