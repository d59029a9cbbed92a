package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics counts state machine transitions and payout ledger writes.
type FulfillmentMetrics struct {
	transitions   *prometheus.CounterVec
	ledgerEntries prometheus.Counter
}

func NewFulfillmentMetrics(reg prometheus.Registerer) *FulfillmentMetrics {
	if reg == nil {
		return &FulfillmentMetrics{}
	}
	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "fulfillment_step_transitions_total",
		Help: "Fulfillment step transitions applied, by step and outcome.",
	}, []string{"step", "outcome"})
	ledgerEntries := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fulfillment_payout_ledger_entries_total",
		Help: "Payout ledger entries written by the payment release step.",
	})
	reg.MustRegister(transitions, ledgerEntries)
	return &FulfillmentMetrics{
		transitions:   transitions,
		ledgerEntries: ledgerEntries,
	}
}

func (m *FulfillmentMetrics) IncTransition(step, outcome string) {
	if m == nil || m.transitions == nil {
		return
	}
	m.transitions.WithLabelValues(normalizeLabel(step), normalizeLabel(outcome)).Inc()
}

func (m *FulfillmentMetrics) IncLedgerEntry() {
	if m == nil || m.ledgerEntries == nil {
		return
	}
	m.ledgerEntries.Inc()
}

// ReconciliationMetrics counts records materialized or skipped by sync runs.
type ReconciliationMetrics struct {
	created prometheus.Counter
	skipped *prometheus.CounterVec
}

func NewReconciliationMetrics(reg prometheus.Registerer) *ReconciliationMetrics {
	if reg == nil {
		return &ReconciliationMetrics{}
	}
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reconciliation_records_created_total",
		Help: "Fulfillment records created from verified payment proofs.",
	})
	skipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reconciliation_records_skipped_total",
		Help: "Verified payment proofs skipped during reconciliation, by reason.",
	}, []string{"reason"})
	reg.MustRegister(created, skipped)
	return &ReconciliationMetrics{created: created, skipped: skipped}
}

func (m *ReconciliationMetrics) AddCreated(n int) {
	if m == nil || m.created == nil || n <= 0 {
		return
	}
	m.created.Add(float64(n))
}

func (m *ReconciliationMetrics) IncSkipped(reason string) {
	if m == nil || m.skipped == nil {
		return
	}
	m.skipped.WithLabelValues(normalizeLabel(reason)).Inc()
}
