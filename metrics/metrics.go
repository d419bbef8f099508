// Package metrics exposes invocation counters and gas histograms.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "contractvm"

// Metrics is the set of collectors updated by the executor
type Metrics struct {
	invocations *prometheus.CounterVec
	gasUsed     *prometheus.HistogramVec
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
}

// New creates the collectors and registers them with registerer
func New(registerer prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		invocations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invocations_total",
			Help:      "Contract invocations by operation and outcome",
		}, []string{"op", "status"}),
		gasUsed: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gas_used",
			Help:      "Gas consumed per invocation",
			Buckets:   prometheus.ExponentialBuckets(100, 4, 10),
		}, []string{"op"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_cache_hits_total",
			Help:      "Decoded code served from the cache",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "code_cache_misses_total",
			Help:      "Decoded code loaded from state",
		}),
	}
	for _, c := range []prometheus.Collector{m.invocations, m.gasUsed, m.cacheHits, m.cacheMisses} {
		if err := registerer.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Observe records one finished invocation
func (m *Metrics) Observe(op, status string, gas uint64) {
	if m == nil {
		return
	}
	m.invocations.WithLabelValues(op, status).Inc()
	m.gasUsed.WithLabelValues(op).Observe(float64(gas))
}

// CodeCache records a code cache lookup
func (m *Metrics) CodeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}
