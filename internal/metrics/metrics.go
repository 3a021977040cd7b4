package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reliability pipeline.
type Metrics struct {
	// Discovery metrics
	DiscoveryRequests *prometheus.CounterVec
	DiscoveryDuration prometheus.Histogram
	MatchConfidence   prometheus.Histogram

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses prometheus.Counter

	// Feasibility metrics
	FeasibilityChecks   *prometheus.CounterVec
	FeasibilityFailures *prometheus.CounterVec

	// Repair metrics
	RepairsApplied   *prometheus.CounterVec
	RepairOutcomes   *prometheus.CounterVec
	PatternsObserved *prometheus.CounterVec

	// Pipeline metrics
	GenerationsTotal   *prometheus.CounterVec
	GenerationDuration prometheus.Histogram
	FallbacksServed    prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// NewMetrics creates and registers all Prometheus metrics. Registration
// happens once per process; later calls return the shared set.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		sharedMetrics = &Metrics{
			DiscoveryRequests: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_discovery_requests_total",
					Help: "Total number of template discovery requests",
				},
				[]string{"result"}, // cache_hit, cold, fallback
			),
			DiscoveryDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "weaver_discovery_duration_seconds",
					Help:    "Template discovery duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to 4s
				},
			),
			MatchConfidence: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "weaver_match_confidence",
					Help:    "Confidence of finalized template matches",
					Buckets: prometheus.LinearBuckets(0, 0.1, 11),
				},
			),

			CacheHits: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_cache_hits_total",
					Help: "Total number of template cache hits by tier",
				},
				[]string{"tier"},
			),
			CacheMisses: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "weaver_cache_misses_total",
					Help: "Total number of template cache misses",
				},
			),

			FeasibilityChecks: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_feasibility_checks_total",
					Help: "Total number of feasibility checks",
				},
				[]string{"passed"},
			),
			FeasibilityFailures: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_feasibility_failures_total",
					Help: "Feasibility failures by failing stage",
				},
				[]string{"stage"},
			),

			RepairsApplied: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_repairs_applied_total",
					Help: "Auto-fix repairs applied by rule",
				},
				[]string{"rule"},
			),
			RepairOutcomes: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_repair_outcomes_total",
					Help: "Feedback-loop repair outcomes by strategy and result",
				},
				[]string{"strategy", "fixed"},
			),
			PatternsObserved: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_error_patterns_total",
					Help: "Deployment-failure pattern occurrences by category",
				},
				[]string{"category"},
			),

			GenerationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "weaver_generations_total",
					Help: "Workflow generations by outcome",
				},
				[]string{"outcome"}, // clean, repaired, fallback
			),
			GenerationDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "weaver_generation_duration_seconds",
					Help:    "End-to-end workflow generation duration in seconds",
					Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to 20s
				},
			),
			FallbacksServed: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "weaver_fallbacks_served_total",
					Help: "Times the guaranteed fallback was returned",
				},
			),
		}
	})

	return sharedMetrics
}

// RecordCacheHit records a cache hit on the given tier.
func (m *Metrics) RecordCacheHit(tier string) {
	m.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a full cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMisses.Inc()
}

// RecordGeneration records a finished generation with its outcome label.
func (m *Metrics) RecordGeneration(outcome string, seconds float64, confidence float64) {
	m.GenerationsTotal.WithLabelValues(outcome).Inc()
	m.GenerationDuration.Observe(seconds)
	m.MatchConfidence.Observe(confidence)
}

// RecordDiscovery records one discovery call with its result label
// (cache_hit, cold, fallback) and duration.
func (m *Metrics) RecordDiscovery(result string, seconds float64) {
	m.DiscoveryRequests.WithLabelValues(result).Inc()
	m.DiscoveryDuration.Observe(seconds)
}

// RecordRepairOutcome records one feedback-loop repair attempt by the
// deciding strategy and whether the repaired graph passed re-check.
func (m *Metrics) RecordRepairOutcome(strategy string, fixed bool) {
	if strategy == "" {
		strategy = "none"
	}
	label := "false"
	if fixed {
		label = "true"
	}
	m.RepairOutcomes.WithLabelValues(strategy, label).Inc()
}

// RecordPatternObserved records one deployment-failure pattern occurrence.
func (m *Metrics) RecordPatternObserved(category string) {
	m.PatternsObserved.WithLabelValues(category).Inc()
}

// RecordFeasibility records a check result, attributing failures to the
// failing stage.
func (m *Metrics) RecordFeasibility(passed bool, failedStage string) {
	label := "false"
	if passed {
		label = "true"
	}
	m.FeasibilityChecks.WithLabelValues(label).Inc()
	if !passed && failedStage != "" {
		m.FeasibilityFailures.WithLabelValues(failedStage).Inc()
	}
}
