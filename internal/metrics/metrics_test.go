package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordStatement("select", "ok")
	m.RecordStatement("select", "ok")
	m.RecordFallback("index_miss", 10, 2)
	m.ObserveRequest("runQuery", 200, 5*time.Millisecond)
	m.ObserveRequest("runQuery", 0, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.StatementsTotal.WithLabelValues("select", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FallbacksTotal.WithLabelValues("index_miss")))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.RowsScannedTotal))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.PredicateErrorsTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RemoteRequestsTotal.WithLabelValues("runQuery", "error")))
}

func TestNew_SeparateRegistries(t *testing.T) {
	// Registering twice on one registry panics; separate registries do not.
	require.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
