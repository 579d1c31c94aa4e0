package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.CacheRequests.WithLabelValues("challenge", "hit").Inc()
	m.Mutations.WithLabelValues("contribute", "committed").Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)

	names := make(map[string]bool)
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["stellarsave_cache_requests_total"])
	assert.True(t, names["stellarsave_mutations_total"])
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Mutations.WithLabelValues("contribute", "committed")))
}

func TestNew_NilRegistry(t *testing.T) {
	m := New(nil)
	assert.NotPanics(t, func() {
		m.CacheEntries.Set(3)
		m.GatewayCalls.WithLabelValues("contribute", "ok").Inc()
	})
	assert.Equal(t, float64(3), testutil.ToFloat64(m.CacheEntries))
}

func TestNew_DoubleRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
