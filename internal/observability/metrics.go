package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	phaseTransitionsTotal  *prometheus.CounterVec
	autoSubmissionsTotal   *prometheus.CounterVec
	inFlightSubmissions    prometheus.Gauge
	requestsTotal          *prometheus.CounterVec
	requestLatencySeconds  *prometheus.HistogramVec
	scoringRunsTotal       *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the orchestrator.
func RegisterMetrics() {
	registerOnce.Do(func() {
		phaseTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_phase_transitions_total",
			Help: "Total number of challenge phase transitions, by transition and outcome.",
		}, []string{"transition", "outcome"})

		autoSubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_auto_submissions_total",
			Help: "Total number of automatic submissions created by the finalization backfill.",
		}, []string{"result"})

		inFlightSubmissions = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "arena_inflight_submissions",
			Help: "Number of submissions currently being judged across all challenges.",
		})

		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		requestLatencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "arena_request_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0},
		}, []string{"method", "route"})

		scoringRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_scoring_runs_total",
			Help: "Total number of scoring computations, by outcome.",
		}, []string{"outcome"})

		prometheus.MustRegister(phaseTransitionsTotal, autoSubmissionsTotal, inFlightSubmissions, requestsTotal, requestLatencySeconds, scoringRunsTotal)
	})
}

// PhaseTransitions exposes the counter for phase transitions.
func PhaseTransitions() *prometheus.CounterVec {
	RegisterMetrics()
	return phaseTransitionsTotal
}

// AutoSubmissions exposes the counter for backfill auto-submissions.
func AutoSubmissions() *prometheus.CounterVec {
	RegisterMetrics()
	return autoSubmissionsTotal
}

// InFlightSubmissions exposes the gauge tracking judged-but-unpersisted submissions.
func InFlightSubmissions() prometheus.Gauge {
	RegisterMetrics()
	return inFlightSubmissions
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// RequestLatency exposes the latency histogram for API requests.
func RequestLatency() *prometheus.HistogramVec {
	RegisterMetrics()
	return requestLatencySeconds
}

// ScoringRuns exposes the counter for scoring computations.
func ScoringRuns() *prometheus.CounterVec {
	RegisterMetrics()
	return scoringRunsTotal
}
