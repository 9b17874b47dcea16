package introspect

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exposes engine counters. A nil *Metrics disables collection, which
// keeps the engine constructible in tests without a registry.
type Metrics struct {
	cacheLookups *prometheus.CounterVec
	decisions    *prometheus.CounterVec
}

// NewMetrics registers the engine counters with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		cacheLookups: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gis",
			Subsystem: "introspect",
			Name:      "cache_lookups_total",
			Help:      "Access-policy cache lookups by cache and outcome.",
		}, []string{"cache", "outcome"}),
		decisions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gis",
			Subsystem: "introspect",
			Name:      "decisions_total",
			Help:      "Introspection outcomes by decision (allowed or failure reason).",
		}, []string{"decision"}),
	}
}

func (m *Metrics) observeCacheLookup(cacheName string, hit bool) {
	if m == nil {
		return
	}
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	m.cacheLookups.WithLabelValues(cacheName, outcome).Inc()
}

func (m *Metrics) observeDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}
