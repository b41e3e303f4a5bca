package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	defaultOutboxRetention = 30 * 24 * time.Hour
	defaultOutboxBatch     = 500
	// Unpublished rows are only pruned once the publisher stopped retrying them.
	defaultOutboxMinAttempts = 10
)

type outboxPruner interface {
	PruneBatch(ctx context.Context, cutoff time.Time, minAttempts, limit int) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	Repository  outboxPruner
	Retention   time.Duration
	MinAttempts int
	BatchSize   int
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	repo        outboxPruner
	retention   time.Duration
	minAttempts int
	batch       int
	now         func() time.Time
}

// NewOutboxRetentionJob deletes published outbox rows older than the
// retention window, plus abandoned rows past the publisher's attempt limit.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		repo:        params.Repository,
		retention:   orDefault(params.Retention, defaultOutboxRetention),
		minAttempts: orDefault(params.MinAttempts, defaultOutboxMinAttempts),
		batch:       orDefault(params.BatchSize, defaultOutboxBatch),
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// Run deletes in batches until a short batch signals nothing is left, so a
// large backlog never holds one long delete.
func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.repo.PruneBatch(ctx, cutoff, j.minAttempts, j.batch)
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += n
		if n < int64(j.batch) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":       cutoff.Format(time.RFC3339),
				"min_attempts": j.minAttempts,
				"batches":      batches + 1,
				"rows_deleted": total,
			}), "outbox retention cleanup complete")
			return nil
		}
	}
}

func orDefault[T int | time.Duration](v, fallback T) T {
	if v <= 0 {
		return fallback
	}
	return v
}
