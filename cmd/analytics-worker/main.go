package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/analytics/router"
	"github.com/angelmondragon/storefront-backend/internal/analytics/types"
	"github.com/angelmondragon/storefront-backend/internal/analytics/worker"
	"github.com/angelmondragon/storefront-backend/internal/analytics/writer"
	"github.com/angelmondragon/storefront-backend/pkg/app"
	"github.com/angelmondragon/storefront-backend/pkg/bigquery"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

const flushTimeout = 10 * time.Second

var errSubscriptionClosed = errors.New("analytics subscription closed")

func main() {
	proc, err := app.Start("analytics-worker")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.Context()
	defer stop()

	proc.Exit(ctx, "analytics worker failed", run(ctx, proc))
	proc.Logger.Info(ctx, "analytics worker stopped")
}

func run(ctx context.Context, proc *app.Process) error {
	cfg := proc.Config

	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RoleSubscriber, proc.Logger)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	proc.OnClose("pubsub", pubsubClient.Close)

	subscription := pubsubClient.AnalyticsSubscription()
	if subscription == nil {
		return errors.New("analytics subscription not configured")
	}

	tables := []bigquery.TableSpec{types.OrderFactsTable(cfg.BigQuery.OrderFactsTable)}
	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, tables, proc.Logger)
	if err != nil {
		return fmt.Errorf("bigquery: %w", err)
	}
	proc.OnClose("bigquery", bqClient.Close)

	claims, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	if err != nil {
		return err
	}
	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}
	facts, err := writer.New(bqClient, writer.ConfigFromSettings(cfg.BigQuery))
	if err != nil {
		return err
	}
	routes, err := router.NewRouter(facts, proc.Logger, nil)
	if err != nil {
		return err
	}
	service, err := worker.NewService(subscription, events, routes, claims, proc.Logger)
	if err != nil {
		return err
	}

	proc.Logger.Info(ctx, "analytics worker ready")
	group := app.NewGroup(ctx)
	group.Go(func(ctx context.Context) error {
		if err := service.Run(ctx); err != nil || ctx.Err() != nil {
			return err
		}
		return errSubscriptionClosed
	})
	group.OnStop(flushTimeout, func(ctx context.Context) error {
		if err := facts.Flush(ctx); err != nil {
			return fmt.Errorf("flush buffered order facts: %w", err)
		}
		return nil
	})
	return group.Wait()
}
