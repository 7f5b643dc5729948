package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

// outcome is what happened to one outbox row within a batch.
type outcome int

const (
	outcomePublished outcome = iota
	outcomeRetry
	outcomeDeadLettered
)

// processBatch reports whether it found any rows. Once an aggregate's event
// fails, its later events in the batch wait for the next poll so subscribers
// never see them out of order.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	var found, deadLettered bool
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		found = len(events) > 0

		held := make(map[uuid.UUID]bool)
		for _, event := range events {
			if held[event.AggregateID] {
				s.logg.Info(s.logg.WithFields(ctx, s.eventFields(event, nil)), "outbox event held behind failed aggregate")
				continue
			}
			result, err := s.handleEvent(ctx, tx, event)
			if err != nil {
				return err
			}
			held[event.AggregateID] = result == outcomeRetry
			deadLettered = deadLettered || result == outcomeDeadLettered
		}
		return nil
	})
	if err == nil && deadLettered {
		s.refreshDLQDepth(ctx)
	}
	return found, err
}

func (s *Service) handleEvent(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (outcome, error) {
	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, nil, enums.OutboxDLQReasonNonRetryable, err)
	}
	fields := s.eventFields(event, resolved)

	pubErr := s.publishResolved(ctx, event, resolved)
	var nonRetryable registry.NonRetryableError
	switch {
	case pubErr == nil:
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return outcomePublished, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.IncPublished(string(event.EventType))
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return outcomePublished, nil

	case errors.As(pubErr, &nonRetryable):
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, resolved, enums.OutboxDLQReasonNonRetryable, pubErr)

	case event.AttemptCount+1 >= s.maxAttempts:
		return outcomeDeadLettered, s.deadLetter(ctx, tx, event, resolved, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", event.AttemptCount+1, pubErr))
	}

	fields["attempt_count"] = event.AttemptCount + 1
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", pubErr.Error()), "outbox publish failed, will retry")
	s.metrics.IncFailed(string(event.EventType))
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return outcomeRetry, fmt.Errorf("mark failed %s: %w", event.ID, err)
	}
	return outcomeRetry, nil
}

// deadLetter copies the row into outbox_dlq and retires it. Both writes share
// tx, so a row is never retired without its DLQ record.
func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, resolved *registry.ResolvedEvent, reason enums.OutboxDLQErrorReason, cause error) error {
	fields := s.eventFields(event, resolved)
	fields["error_reason"] = reason
	s.logg.Warn(s.logg.WithField(s.logg.WithFields(ctx, fields), "error", cause.Error()), "outbox event dead-lettered")

	msg := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       event.ID,
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       event.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &msg,
		AttemptCount:  event.AttemptCount,
		FailedAt:      time.Now().UTC(),
	}
	err := multierr.Combine(
		wrapIf(s.dlq.InsertTx(tx, entry), "insert dlq %s", event.ID),
		wrapIf(s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts), "mark terminal %s", event.ID),
	)
	if err == nil {
		s.metrics.IncDeadLettered(string(reason))
	}
	return err
}

func wrapIf(err error, format string, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", id, err)
}

// refreshDLQDepth is best effort; a failed count leaves the gauge stale.
func (s *Service) refreshDLQDepth(ctx context.Context) {
	if s.metrics == nil {
		return
	}
	counts, err := s.dlq.CountByReason(ctx)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox dlq count failed")
		return
	}
	byReason := make(map[string]int64, len(counts))
	for reason, n := range counts {
		byReason[string(reason)] = n
	}
	s.metrics.SetDLQDepth(byReason)
}
