package main

import (
	"context"
	"fmt"
	"os"

	"github.com/angelmondragon/storefront-backend/pkg/app"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/registry"
	"github.com/angelmondragon/storefront-backend/pkg/pubsub"
)

func main() {
	proc, err := app.Start("outbox-publisher")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.Context()
	defer stop()

	proc.Exit(ctx, "outbox publisher stopped unexpectedly", run(ctx, proc))
	proc.Logger.Info(ctx, "outbox publisher drained")
}

func run(ctx context.Context, proc *app.Process) error {
	cfg := proc.Config

	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, pubsub.RolePublisher, proc.Logger)
	if err != nil {
		return fmt.Errorf("pubsub: %w", err)
	}
	proc.OnClose("pubsub", pubsubClient.Close)

	events, err := registry.NewEventRegistry(cfg.PubSub)
	if err != nil {
		return err
	}

	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(proc.Metrics),
	})
	if err != nil {
		return err
	}

	proc.Logger.Info(ctx, "outbox publisher polling")
	group := app.NewGroup(ctx)
	group.Go(service.Run)
	proc.ServeMetrics(group)
	return group.Wait()
}
