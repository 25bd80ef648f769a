// Package metrics provides the centralized Prometheus metrics registry for
// the decision engine.
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Global registry instance
var (
	registry *prometheus.Registry
	once     sync.Once
)

// Counter metrics
var (
	EvaluationsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "evaluations_total",
		Help:      "Total number of prop evaluations",
	})
	PositiveEVTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "positive_ev_total",
		Help:      "Total number of evaluations flagged positive EV",
	})
	OutcomesRecordedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "outcomes_recorded_total",
		Help:      "Total number of outcomes recorded from refreshes",
	})
	FetchErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "fetch_errors_total",
		Help:      "Total number of market fetch failures",
	}, []string{"sport"})
	RecordErrorsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "record_errors_total",
		Help:      "Total number of outcome persistence failures",
	})
	EstimatesRecomputedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "oddsly",
		Name:      "estimates_recomputed_total",
		Help:      "Total number of hit-rate estimates recomputed",
	})
)

// Gauge metrics
var (
	RefreshInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oddsly",
		Name:      "refresh_in_flight",
		Help:      "Whether a refresh cycle is currently running (0 or 1)",
	})
	TrackedCombinations = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "oddsly",
		Name:      "tracked_combinations",
		Help:      "Number of player/prop/sport combinations with stored estimates",
	})
)

// Histogram metrics
var (
	RefreshDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "oddsly",
		Name:      "refresh_duration_seconds",
		Help:      "Duration of full refresh cycles in seconds",
		Buckets:   []float64{0.5, 1, 5, 10, 30, 60, 120, 300},
	})
	FetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oddsly",
		Name:      "fetch_duration_seconds",
		Help:      "Duration of per-sport market fetches in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"sport"})
)

// InitRegistry initializes the global Prometheus registry.
func InitRegistry() *prometheus.Registry {
	once.Do(func() {
		registry = prometheus.NewRegistry()

		registry.MustRegister(EvaluationsTotal)
		registry.MustRegister(PositiveEVTotal)
		registry.MustRegister(OutcomesRecordedTotal)
		registry.MustRegister(FetchErrorsTotal)
		registry.MustRegister(RecordErrorsTotal)
		registry.MustRegister(EstimatesRecomputedTotal)

		registry.MustRegister(RefreshInFlight)
		registry.MustRegister(TrackedCombinations)

		registry.MustRegister(RefreshDuration)
		registry.MustRegister(FetchDuration)
	})

	return registry
}

// Handler returns an HTTP handler serving the registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(InitRegistry(), promhttp.HandlerOpts{})
}
