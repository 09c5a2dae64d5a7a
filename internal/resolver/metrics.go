package resolver

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/iconidentify/mediagrab/internal/domain"
)

// Metrics holds the engine's Prometheus collectors. They are registered on
// a private registry so several engines (and tests) can coexist.
type Metrics struct {
	ResolveTotal     *prometheus.CounterVec
	AttemptsTotal    *prometheus.CounterVec
	AttemptDuration  *prometheus.HistogramVec
	SkippedTotal     *prometheus.CounterVec
	CacheLookupTotal *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates and registers the engine metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		ResolveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagrab_resolve_total",
				Help: "Total number of resolutions by outcome",
			},
			[]string{"capability", "outcome"},
		),
		AttemptsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagrab_provider_attempts_total",
				Help: "Total number of provider invocations by outcome",
			},
			[]string{"capability", "provider", "outcome"},
		),
		AttemptDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mediagrab_provider_duration_seconds",
				Help:    "Time spent in provider invocations",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
			},
			[]string{"capability", "provider"},
		),
		SkippedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagrab_provider_skipped_total",
				Help: "Total number of times a provider was skipped while in cooldown",
			},
			[]string{"capability", "provider"},
		),
		CacheLookupTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mediagrab_cache_lookups_total",
				Help: "Result cache lookups by outcome",
			},
			[]string{"capability", "outcome"},
		),
		registry: prometheus.NewRegistry(),
	}

	m.registry.MustRegister(
		m.ResolveTotal,
		m.AttemptsTotal,
		m.AttemptDuration,
		m.SkippedTotal,
		m.CacheLookupTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeAttempt(c domain.Capability, provider, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AttemptsTotal.WithLabelValues(string(c), provider, outcome).Inc()
	m.AttemptDuration.WithLabelValues(string(c), provider).Observe(d.Seconds())
}

func (m *Metrics) observeResolve(c domain.Capability, outcome string) {
	if m == nil {
		return
	}
	m.ResolveTotal.WithLabelValues(string(c), outcome).Inc()
}

func (m *Metrics) observeSkip(c domain.Capability, provider string) {
	if m == nil {
		return
	}
	m.SkippedTotal.WithLabelValues(string(c), provider).Inc()
}

func (m *Metrics) observeCache(c domain.Capability, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.CacheLookupTotal.WithLabelValues(string(c), outcome).Inc()
}
