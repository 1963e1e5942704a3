// Package metrics provides Prometheus metrics for the content core.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "frontier"

// Metrics holds the collectors. A nil *Metrics records nothing.
type Metrics struct {
	CacheLookups   *prometheus.CounterVec
	SharedJoins    *prometheus.CounterVec
	FetchTotal     *prometheus.CounterVec
	FetchDuration  *prometheus.HistogramVec
	FallbacksTotal *prometheus.CounterVec
	CacheClears    prometheus.Counter
	AssistantTotal *prometheus.CounterVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		// CacheLookups counts cache reads by operation and result (hit, miss).
		CacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Cache lookups by operation and result",
			},
			[]string{"operation", "result"},
		),
		// SharedJoins counts callers served by a fetch another caller started.
		SharedJoins: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dedup_shared_total",
				Help:      "Callers that joined an in-flight fetch",
			},
			[]string{"operation"},
		),
		FetchTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetch_total",
				Help:      "Provider calls by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		FetchDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "provider_fetch_duration_seconds",
				Help:      "Duration of provider calls in seconds",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
			},
			[]string{"provider"},
		),
		FallbacksTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallbacks_total",
				Help:      "Fallback responses by operation and reason",
			},
			[]string{"operation", "reason"},
		),
		CacheClears: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_clears_total",
				Help:      "Times the cache and in-flight registry were cleared",
			},
		),
		AssistantTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "assistant_requests_total",
				Help:      "Assistant questions by outcome",
			},
			[]string{"outcome"},
		),
	}
}

// RecordLookup records a cache read.
func (m *Metrics) RecordLookup(operation string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(operation, result).Inc()
}

// RecordShared records a caller that joined an in-flight fetch.
func (m *Metrics) RecordShared(operation string) {
	if m == nil {
		return
	}
	m.SharedJoins.WithLabelValues(operation).Inc()
}

// RecordFetch records one provider call.
func (m *Metrics) RecordFetch(provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FetchTotal.WithLabelValues(provider, outcome).Inc()
	m.FetchDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// RecordFallback records a response built from fallback records.
func (m *Metrics) RecordFallback(operation, reason string) {
	if m == nil {
		return
	}
	m.FallbacksTotal.WithLabelValues(operation, reason).Inc()
}

// RecordClear records a cache clear.
func (m *Metrics) RecordClear() {
	if m == nil {
		return
	}
	m.CacheClears.Inc()
}

// RecordAssistant records an assistant question.
func (m *Metrics) RecordAssistant(outcome string) {
	if m == nil {
		return
	}
	m.AssistantTotal.WithLabelValues(outcome).Inc()
}
