package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.Observe("call", "success", 1200)
	m.Observe("call", "success", 300)
	m.Observe("call", "revert", 50)
	m.CodeCache(true)
	m.CodeCache(false)
	m.CodeCache(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.invocations.WithLabelValues("call", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.invocations.WithLabelValues("call", "revert")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheHits))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.cacheMisses))
	assert.Equal(t, 1, testutil.CollectAndCount(m.gasUsed))
}

func TestDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

func TestNilMetrics(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Observe("create", "error", 1)
		m.CodeCache(true)
	})
}
