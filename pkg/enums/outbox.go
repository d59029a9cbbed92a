package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregatePaymentProof      OutboxAggregateType = "payment_proof"
	AggregateFulfillmentRecord OutboxAggregateType = "fulfillment_record"
	AggregatePayoutLedgerEntry OutboxAggregateType = "payout_ledger_entry"
	AggregateNotification      OutboxAggregateType = "notification"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregatePaymentProof,
	AggregateFulfillmentRecord,
	AggregatePayoutLedgerEntry,
	AggregateNotification,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventPaymentProofVerified     OutboxEventType = "payment_proof_verified"
	EventPaymentProofRejected     OutboxEventType = "payment_proof_rejected"
	EventFulfillmentRecordCreated OutboxEventType = "fulfillment_record_created"
	EventFulfillmentStepCompleted OutboxEventType = "fulfillment_step_completed"
	EventFulfillmentFailed        OutboxEventType = "fulfillment_failed"
	EventFulfillmentCompleted     OutboxEventType = "fulfillment_completed"
	EventPayoutRecorded           OutboxEventType = "payout_recorded"
	EventNotificationRequested    OutboxEventType = "notification_requested"
)

var validEventTypes = []OutboxEventType{
	EventPaymentProofVerified,
	EventPaymentProofRejected,
	EventFulfillmentRecordCreated,
	EventFulfillmentStepCompleted,
	EventFulfillmentFailed,
	EventFulfillmentCompleted,
	EventPayoutRecorded,
	EventNotificationRequested,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
