package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryRecordsFetchOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.RecordFetch("okx", time.Now().Add(-10*time.Millisecond), true)
	r.RecordFetch("okx", time.Now().Add(-5*time.Millisecond), false)

	metricFamilies, err := reg.Gather()
	require.NoError(t, err)

	var found bool
	for _, mf := range metricFamilies {
		if mf.GetName() == "priceagg_fetch_outcomes_total" {
			found = true
			assert.Len(t, mf.GetMetric(), 2)
		}
	}
	assert.True(t, found)
}

func TestRegistryCountersIncrement(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewRegistry(reg)

	r.ObservationsProcessed.Add(5)
	r.OutliersDetected.Inc()
	r.AggregationsByAlgo.WithLabelValues("vwap").Inc()

	var m dto.Metric
	require.NoError(t, r.ObservationsProcessed.Write(&m))
	assert.Equal(t, 5.0, m.GetCounter().GetValue())
}
