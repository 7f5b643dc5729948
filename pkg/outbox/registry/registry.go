// Package registry maps outbox event types to their aggregate, topic and
// payload type, and decodes stored envelopes back into typed payloads.
package registry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

type EventDescriptor struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	Topic         string
	newPayload    func() any
}

// describe builds the descriptor of an event whose data decodes into a *T.
func describe[T any](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) EventDescriptor {
	return EventDescriptor{
		EventType:     eventType,
		AggregateType: aggregate,
		Topic:         topic,
		newPayload:    func() any { return new(T) },
	}
}

// ResolvedEvent is an outbox row with its envelope and typed payload decoded.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	byType map[enums.OutboxEventType]EventDescriptor
}

// NewEventRegistry routes every event to the orders topic. Cart events share
// it so one subscription sees the whole purchase funnel in order.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.OrdersTopic == "" {
		return nil, errors.New("orders topic is required")
	}
	topic := cfg.OrdersTopic
	r := &EventRegistry{byType: map[enums.OutboxEventType]EventDescriptor{}}
	for _, d := range []EventDescriptor{
		describe[payloads.OrderCreatedEvent](enums.EventOrderCreated, enums.AggregateOrder, topic),
		describe[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, topic),
		describe[payloads.CartMergedEvent](enums.EventCartMerged, enums.AggregateCart, topic),
	} {
		r.byType[d.EventType] = d
	}
	return r, nil
}

func (r *EventRegistry) descriptor(eventType enums.OutboxEventType) (EventDescriptor, error) {
	d, ok := r.byType[eventType]
	if !ok {
		return EventDescriptor{}, NewNonRetryableError(fmt.Errorf("unsupported event type %s", eventType))
	}
	return d, nil
}

// Resolve checks the row against its descriptor and decodes the payload.
// Every failure is non-retryable: the row will not change on its own.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	d, err := r.descriptor(event.EventType)
	if err != nil {
		return nil, err
	}
	switch {
	case d.AggregateType != event.AggregateType:
		return nil, NewNonRetryableError(fmt.Errorf("aggregate mismatch: expected %s got %s", d.AggregateType, event.AggregateType))
	case event.AggregateID == uuid.Nil:
		return nil, NewNonRetryableError(errors.New("missing aggregate_id"))
	}
	envelope, payload, err := decodeWith(d, event.Payload)
	if err != nil {
		return nil, err
	}
	return &ResolvedEvent{Descriptor: d, Envelope: envelope, Payload: payload}, nil
}

// Decode parses Pub/Sub message data published for eventType.
func (r *EventRegistry) Decode(eventType enums.OutboxEventType, raw []byte) (outbox.PayloadEnvelope, any, error) {
	d, err := r.descriptor(eventType)
	if err != nil {
		return outbox.PayloadEnvelope{}, nil, err
	}
	return decodeWith(d, raw)
}

func decodeWith(d EventDescriptor, raw []byte) (outbox.PayloadEnvelope, any, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return envelope, nil, NewNonRetryableError(fmt.Errorf("decode envelope: %w", err))
	}
	if data := bytes.TrimSpace(envelope.Data); len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return envelope, nil, NewNonRetryableError(fmt.Errorf("payload missing for %s", d.EventType))
	}
	payload := d.newPayload()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return envelope, nil, NewNonRetryableError(fmt.Errorf("decode %s payload: %w", d.EventType, err))
	}
	return envelope, payload, nil
}
