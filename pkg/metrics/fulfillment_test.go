package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFulfillmentMetricsCountTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewFulfillmentMetrics(reg)

	m.IncTransition("3", "completed")
	m.IncTransition("3", "completed")
	m.IncTransition("4", "failed")
	m.IncLedgerEntry()

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterWithLabels(mfs, "fulfillment_step_transitions_total", map[string]string{"step": "3", "outcome": "completed"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), got)

	got, err = fetchCounterWithLabels(mfs, "fulfillment_step_transitions_total", map[string]string{"step": "4", "outcome": "failed"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)

	got, err = fetchCounterWithLabels(mfs, "fulfillment_payout_ledger_entries_total", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestReconciliationMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewReconciliationMetrics(reg)

	m.AddCreated(3)
	m.AddCreated(0)
	m.IncSkipped("listing_missing")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	got, err := fetchCounterWithLabels(mfs, "reconciliation_records_created_total", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(3), got)

	got, err = fetchCounterValue(mfs, "reconciliation_records_skipped_total", "reason", "listing_missing")
	require.NoError(t, err)
	assert.Equal(t, float64(1), got)
}

func TestNilRegistererMetricsAreNoops(t *testing.T) {
	var fm *FulfillmentMetrics
	fm.IncTransition("2", "completed")
	NewFulfillmentMetrics(nil).IncLedgerEntry()

	var rm *ReconciliationMetrics
	rm.AddCreated(1)
	NewReconciliationMetrics(nil).IncSkipped("x")
}
