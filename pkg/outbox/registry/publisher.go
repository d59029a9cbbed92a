// Package registry maps outbox event types to their topic and payload
// schema, for the publisher (EventRegistry) and for consumers
// (DecoderRegistry).
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradepost-backend/pkg/config"
	"github.com/angelmondragon/tradepost-backend/pkg/db/models"
	"github.com/angelmondragon/tradepost-backend/pkg/enums"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox"
	"github.com/angelmondragon/tradepost-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

// NonRetryableError marks a row that will fail the same way on every attempt.
type NonRetryableError struct {
	Err error
}

func NewNonRetryableError(err error) NonRetryableError {
	return NonRetryableError{Err: err}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable error"
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }

func nonRetryable(format string, args ...any) error {
	return NonRetryableError{Err: fmt.Errorf(format, args...)}
}

func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:      eventType,
		AggregateType:  aggregate,
		Topic:          topic,
		PayloadFactory: func() any { return new(T) },
	}
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry sends notification requests to the notification topic
// and every other event to the domain topic.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	domain, notify := cfg.DomainTopic, cfg.NotificationTopic
	switch {
	case domain == "":
		return nil, errors.New("domain topic is required")
	case notify == "":
		return nil, errors.New("notification topic is required")
	}

	descriptors := []EventDescriptor{
		describe[payloads.PaymentProofDecidedEvent](enums.EventPaymentProofVerified, enums.AggregatePaymentProof, domain),
		describe[payloads.PaymentProofDecidedEvent](enums.EventPaymentProofRejected, enums.AggregatePaymentProof, domain),
		describe[payloads.FulfillmentRecordCreatedEvent](enums.EventFulfillmentRecordCreated, enums.AggregateFulfillmentRecord, domain),
		describe[payloads.FulfillmentStepCompletedEvent](enums.EventFulfillmentStepCompleted, enums.AggregateFulfillmentRecord, domain),
		describe[payloads.FulfillmentFailedEvent](enums.EventFulfillmentFailed, enums.AggregateFulfillmentRecord, domain),
		describe[payloads.FulfillmentCompletedEvent](enums.EventFulfillmentCompleted, enums.AggregateFulfillmentRecord, domain),
		describe[payloads.PayoutRecordedEvent](enums.EventPayoutRecorded, enums.AggregatePayoutLedgerEntry, domain),
		describe[payloads.NotificationRequestedEvent](enums.EventNotificationRequested, enums.AggregateNotification, notify),
	}
	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor, len(descriptors))}
	for _, d := range descriptors {
		reg.entries[d.EventType] = d
	}
	return reg, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is a NonRetryableError.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, nonRetryable("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, nonRetryable("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, nonRetryable("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, nonRetryable("decode envelope: %w", err)
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nonRetryable("payload missing for %s", event.EventType)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, nonRetryable("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
