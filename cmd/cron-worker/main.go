package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/cron"
	"github.com/angelmondragon/storefront-backend/pkg/app"
	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

func main() {
	once := flag.Bool("once", false, "run a single maintenance cycle and exit")
	flag.Parse()

	proc, err := app.Start("cron-worker")
	if err != nil {
		os.Exit(1)
	}
	ctx, stop := proc.Context()
	defer stop()

	proc.Exit(ctx, "cron worker stopped unexpectedly", run(ctx, proc, *once))
	proc.Logger.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, proc *app.Process, once bool) error {
	dbClient, err := proc.Database(ctx)
	if err != nil {
		return err
	}
	redisClient, err := proc.Redis(ctx)
	if err != nil {
		return err
	}
	service, err := buildService(proc.Config, proc.Logger, dbClient, redisClient, metrics.NewCronJobMetrics(proc.Metrics))
	if err != nil {
		return err
	}

	if once {
		return service.RunOnce(ctx)
	}

	proc.Logger.Info(ctx, "cron worker scheduling maintenance")
	group := app.NewGroup(ctx)
	group.Go(service.Run)
	proc.ServeMetrics(group)
	return group.Wait()
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client, jobMetrics *metrics.CronJobMetrics) (*cron.Service, error) {
	outboxJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:           logg,
		DB:               dbClient,
		Repository:       outbox.NewRepository(dbClient.DB()),
		Retention:        cfg.Maintenance.OutboxRetentionDays,
		TerminalAttempts: cfg.Outbox.MaxAttempts,
	})
	if err != nil {
		return nil, err
	}
	cartJob, err := cron.NewCartExpiryJob(cron.CartExpiryJobParams{
		Logger:     logg,
		Repository: cart.NewRepository(dbClient.DB()),
		Retention:  cfg.Maintenance.CartRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	lock, err := cron.NewRedisLock(redisClient, cron.LockKey(cfg.App.Env), cfg.Maintenance.LockTTL)
	if err != nil {
		return nil, err
	}
	return cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(outboxJob, cartJob),
		Lock:     lock,
		Metrics:  jobMetrics,
		Interval: time.Duration(cfg.Maintenance.IntervalMinutes) * time.Minute,
	})
}
