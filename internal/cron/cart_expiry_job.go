package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const (
	cartRetentionDays = 90
	cartExpiryJobName = "cart-expiry"
)

type CartExpiryJobParams struct {
	Logger     *logger.Logger
	Repository cartExpiryRepo
	// Retention is in days since the line was last touched.
	Retention int
}

type cartExpiryRepo interface {
	DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewCartExpiryJob drops server cart lines nobody has touched within the retention window.
func NewCartExpiryJob(params CartExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = cartRetentionDays
	}
	return &cartExpiryJob{
		logg:      params.Logger,
		repo:      params.Repository,
		retention: retention,
		now:       time.Now,
	}, nil
}

type cartExpiryJob struct {
	logg      *logger.Logger
	repo      cartExpiryRepo
	retention int
	now       func() time.Time
}

func (j *cartExpiryJob) Name() string { return cartExpiryJobName }

func (j *cartExpiryJob) Run(ctx context.Context) (Result, error) {
	cutoff := retentionCutoff(j.now(), j.retention)
	deleted, err := j.repo.DeleteStaleBefore(ctx, cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("cart expiry: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	}), "cart expiry complete")
	return Result{RowsDeleted: deleted}, nil
}
