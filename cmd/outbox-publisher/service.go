package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
)

const (
	defaultBatchSize      = 50
	defaultPollMs         = 500
	defaultPublishTimeout = 15 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
	CountByReason(ctx context.Context) (map[enums.OutboxDLQErrorReason]int64, error)
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

func (p ServiceParams) check() error {
	missing := func(name string) error { return fmt.Errorf("%s is required", name) }
	switch {
	case p.Config == nil:
		return missing("config")
	case p.Logger == nil:
		return missing("logger")
	case p.DB == nil:
		return missing("database client")
	case p.PubSub == nil:
		return missing("pubsub client")
	case p.Repository == nil:
		return missing("outbox repository")
	case p.Registry == nil:
		return missing("event registry")
	case p.DLQRepository == nil:
		return missing("dlq repository")
	}
	return nil
}

// Service drains outbox_events into Pub/Sub. Each poll locks one batch,
// publishes it with the aggregate id as ordering key and records the outcome
// per row in the same transaction.
type Service struct {
	logg     *logger.Logger
	db       dbClient
	repo     outboxRepository
	pubsub   pubSubClient
	registry registryResolver
	dlq      dlqRepository
	metrics  *metrics.OutboxMetrics

	batchSize    int
	maxAttempts  int
	pollInterval time.Duration

	publisherFactory publisherFactory
	publishers       map[string]publisher
}

func NewService(params ServiceParams) (*Service, error) {
	if err := params.check(); err != nil {
		return nil, err
	}
	factory := params.PublisherFactory
	if factory == nil {
		factory = func(topic string) publisher {
			return wrapPublisher(params.PubSub.Publisher(topic))
		}
	}
	settings := params.Config.Outbox
	return &Service{
		logg:             params.Logger,
		db:               params.DB,
		repo:             params.Repository,
		pubsub:           params.PubSub,
		registry:         params.Registry,
		dlq:              params.DLQRepository,
		metrics:          params.Metrics,
		batchSize:        positiveOr(settings.BatchSize, defaultBatchSize),
		maxAttempts:      positiveOr(settings.MaxAttempts, defaultMaxAttempts),
		pollInterval:     time.Duration(positiveOr(settings.PollIntervalMS, defaultPollMs)) * time.Millisecond,
		publisherFactory: factory,
		publishers:       map[string]publisher{},
	}, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Run polls until ctx is canceled. A full batch is followed immediately by the
// next poll; an empty one waits for the poll interval and a failed one backs
// off exponentially.
func (s *Service) Run(ctx context.Context) error {
	for name, ping := range map[string]func(context.Context) error{"database": s.db.Ping, "pubsub": s.pubsub.Ping} {
		if err := ping(ctx); err != nil {
			s.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}
	defer s.stopPublishers()
	s.refreshDLQDepth(ctx)

	wait := s.pollInterval
	for {
		if ctx.Err() != nil {
			s.logg.Info(ctx, "outbox publisher stopping")
			return ctx.Err()
		}
		busy, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox batch failed", err)
			wait = nextBackoff(wait, s.pollInterval, maxBackoff)
		case busy:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := sleep(ctx, withJitter(wait)); err != nil {
			return err
		}
	}
}

func (s *Service) eventFields(event models.OutboxEvent, resolved *registry.ResolvedEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if resolved != nil {
		fields["topic"] = resolved.Descriptor.Topic
		fields["event_id"] = resolved.Envelope.EventID
		fields["occurred_at"] = resolved.Envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

var errNilResult = errors.New("publish result is nil")
