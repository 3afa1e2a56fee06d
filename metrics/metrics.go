// Package metrics exposes Prometheus collectors for the generation pipeline:
// provider calls, orchestrator batches, fallback usage, commits and background
// tasks. Collectors live on a package registry so the worker can expose them
// without dragging in the default registry's process collectors twice.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for provider requests and generation batches.
const (
	OutcomeSuccess  = "success"
	OutcomeError    = "error"
	OutcomeComplete = "complete"
	OutcomePartial  = "partial"
	OutcomeEmpty    = "empty"
)

var (
	registry = prometheus.NewRegistry()
	factory  = promauto.With(registry)

	providerRequests = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseforge_provider_requests_total",
			Help: "Total number of scenario provider requests",
		},
		[]string{"provider", "outcome"},
	)

	providerDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "caseforge_provider_request_seconds",
			Help:    "Duration of scenario provider requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	generationBatches = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseforge_generation_batches_total",
			Help: "Total number of orchestrated generation batches by outcome",
		},
		[]string{"outcome"},
	)

	fallbackScenarios = factory.NewCounter(
		prometheus.CounterOpts{
			Name: "caseforge_fallback_scenarios_total",
			Help: "Total number of scenarios synthesized from fallback templates",
		},
	)

	commits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseforge_commits_total",
			Help: "Total number of test case commits by mode (single, batch)",
		},
		[]string{"mode"},
	)

	tasks = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "caseforge_tasks_total",
			Help: "Total number of background generation tasks by final status",
		},
		[]string{"status"},
	)
)

func init() {
	registry.MustRegister(collectors.NewGoCollector())
}

// Handler returns an HTTP handler serving the caseforge metric registry.
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// ObserveProviderRequest records one provider call with its outcome and duration.
func ObserveProviderRequest(provider, outcome string, elapsed time.Duration) {
	providerRequests.WithLabelValues(provider, outcome).Inc()
	providerDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// RecordBatch counts one orchestrated batch by outcome.
func RecordBatch(outcome string) {
	generationBatches.WithLabelValues(outcome).Inc()
}

// AddFallbackScenarios counts scenarios synthesized by the template engine.
func AddFallbackScenarios(n int) {
	fallbackScenarios.Add(float64(n))
}

// RecordCommit counts one commit by mode.
func RecordCommit(mode string) {
	commits.WithLabelValues(mode).Inc()
}

// RecordTask counts one finished background task by status.
func RecordTask(status string) {
	tasks.WithLabelValues(status).Inc()
}
