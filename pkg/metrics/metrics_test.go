package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsWithRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetricsWithRegistry(reg, "crm", "api")

	m.SessionsIssued.Inc()
	m.StageTransitions.WithLabelValues("won").Inc()
	m.StageTransitions.WithLabelValues("won").Inc()
	m.HousekeepingRemoved.WithLabelValues("sessions").Add(3)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.SessionsIssued))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StageTransitions.WithLabelValues("won")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.HousekeepingRemoved.WithLabelValues("sessions")))

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["crm_api_sessions_issued_total"])
	assert.True(t, names["crm_api_stage_transitions_total"])
	assert.True(t, names["crm_api_housekeeping_rows_total"])
}

func TestNewMetricsWithRegistryRejectsDuplicates(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetricsWithRegistry(reg, "crm", "api")

	assert.Panics(t, func() { NewMetricsWithRegistry(reg, "crm", "api") })
	assert.NotPanics(t, func() { NewMetricsWithRegistry(reg, "crm", "worker") })
}

func TestNewNopIsIsolated(t *testing.T) {
	a := NewNop()
	b := NewNop()

	a.PurchasesRecorded.Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.PurchasesRecorded))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.PurchasesRecorded))
}
