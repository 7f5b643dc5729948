package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
)

const analyticsConsumerName = "analytics"

// Handler processes a decoded order event.
type Handler interface {
	Handle(ctx context.Context, envelope types.Envelope, payload any) error
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type decoder interface {
	Decode(eventType enums.OutboxEventType, raw []byte) (outbox.PayloadEnvelope, any, error)
}

type idempotencyGuard interface {
	Guard(ctx context.Context, consumer string, eventID uuid.UUID, fn func(context.Context) error) (bool, error)
}

// Service consumes order events from Pub/Sub while honoring Redis idempotency.
type Service struct {
	subscription receiver
	decoder      decoder
	handler      Handler
	guard        idempotencyGuard
	logg         *logger.Logger
}

// NewService creates a new analytics worker service.
func NewService(subscription *gcppubsub.Subscriber, decoder decoder, handler Handler, guard idempotencyGuard, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("analytics subscription is required")
	}
	return newService(subscription, decoder, handler, guard, logg)
}

func newService(subscription receiver, decoder decoder, handler Handler, guard idempotencyGuard, logg *logger.Logger) (*Service, error) {
	if decoder == nil {
		return nil, errors.New("event decoder is required")
	}
	if handler == nil {
		return nil, errors.New("analytics handler is required")
	}
	if guard == nil {
		return nil, errors.New("idempotency manager is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		decoder:      decoder,
		handler:      handler,
		guard:        guard,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run starts consuming analytics messages until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// process acks malformed and unsupported messages so they are not redelivered
// forever; only handler failures are nacked.
func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	logCtx := s.logg.WithField(ctx, "message_id", msg.ID)

	envelope, payload, err := s.decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid analytics message")
		return processResult{}
	}
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"event_id":       envelope.EventID,
		"event_type":     envelope.EventType,
		"aggregate_type": envelope.AggregateType,
		"aggregate_id":   envelope.AggregateID,
		"occurred_at":    envelope.OccurredAt.Format(time.RFC3339Nano),
	})

	eventID, err := uuid.Parse(envelope.EventID)
	if err != nil {
		s.logg.Warn(logCtx, "invalid event id")
		return processResult{}
	}

	handled, err := s.guard.Guard(logCtx, analyticsConsumerName, eventID, func(ctx context.Context) error {
		return s.handler.Handle(ctx, *envelope, payload)
	})
	switch {
	case errors.Is(err, router.ErrUnsupportedEventType):
		s.logg.Info(logCtx, "event not tracked by analytics")
		return processResult{}
	case errors.Is(err, idempotency.ErrInFlight):
		s.logg.Info(logCtx, "event claimed by another delivery")
		return processResult{nack: true}
	case handled && err != nil:
		// the row is written; redelivery would duplicate it
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "analytics event handled but not marked")
		return processResult{}
	case err != nil:
		s.logg.Error(logCtx, "analytics handler error", err)
		return processResult{nack: true}
	case !handled:
		s.logg.Info(logCtx, "event already processed")
		return processResult{}
	}

	s.logg.Info(logCtx, "analytics event handled")
	return processResult{}
}

func (s *Service) decode(msg *gcppubsub.Message) (*types.Envelope, any, error) {
	eventType, err := enums.ParseOutboxEventType(attribute(msg, "event_type"))
	if err != nil {
		return nil, nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(attribute(msg, "aggregate_type"))
	if err != nil {
		return nil, nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID := attribute(msg, "aggregate_id")
	if aggregateID == "" {
		return nil, nil, errors.New("aggregate_id missing")
	}

	stored, payload, err := s.decoder.Decode(eventType, msg.Data)
	if err != nil {
		return nil, nil, err
	}

	occurredAt := stored.OccurredAt
	if occurredAt.IsZero() {
		if created := attribute(msg, "created_at"); created != "" {
			if parsed, err := time.Parse(time.RFC3339Nano, created); err == nil {
				occurredAt = parsed
			}
		}
	}

	eventID := strings.TrimSpace(stored.EventID)
	if eventID == "" {
		eventID = attribute(msg, "event_id")
	}
	if eventID == "" {
		return nil, nil, errors.New("event_id missing")
	}

	return &types.Envelope{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    occurredAt.UTC(),
		MessageID:     msg.ID,
	}, payload, nil
}

func attribute(msg *gcppubsub.Message, key string) string {
	return strings.TrimSpace(msg.Attributes[key])
}
