package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

const (
	defaultPaymentTimeout = 30 * time.Minute
	defaultSweepBatchSize = 100
)

type staleOrderReader interface {
	FindStaleUnpaid(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
}

type unpaidCanceller interface {
	CancelUnpaid(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error)
}

type intentCanceller interface {
	CancelPaymentIntent(ctx context.Context, id string) error
}

// PaymentTimeoutJobParams configure the abandoned checkout sweep. Gateway is
// optional; without it intents are left to expire on their own.
type PaymentTimeoutJobParams struct {
	Logger    *logger.Logger
	Orders    staleOrderReader
	Lifecycle unpaidCanceller
	Gateway   intentCanceller
	Metrics   *metrics.LifecycleMetrics
	Timeout   time.Duration
	BatchSize int
}

// SweepResult summarises one sweep.
type SweepResult struct {
	CancelledCount int `json:"cancelledCount"`
	Scanned        int `json:"scanned"`
	Failed         int `json:"failed"`
}

// PaymentTimeoutJob cancels orders whose payment never arrived.
type PaymentTimeoutJob struct {
	logg      *logger.Logger
	orders    staleOrderReader
	lifecycle unpaidCanceller
	gateway   intentCanceller
	metrics   *metrics.LifecycleMetrics
	timeout   time.Duration
	batchSize int
	now       func() time.Time
}

func NewPaymentTimeoutJob(params PaymentTimeoutJobParams) (*PaymentTimeoutJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("stale order reader required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	timeout := params.Timeout
	if timeout <= 0 {
		timeout = defaultPaymentTimeout
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultSweepBatchSize
	}
	return &PaymentTimeoutJob{
		logg:      params.Logger,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		gateway:   params.Gateway,
		metrics:   params.Metrics,
		timeout:   timeout,
		batchSize: batch,
		now:       time.Now,
	}, nil
}

func (j *PaymentTimeoutJob) Name() string { return "payment-timeout-sweep" }

func (j *PaymentTimeoutJob) Run(ctx context.Context) error {
	_, err := j.Sweep(ctx)
	return err
}

// Sweep cancels every unpaid order older than the payment timeout. A failing
// order is logged and skipped; the combined failures are returned after the
// rest of the run. Pages advance on (created_at, id), so failed orders never
// hide the ones behind them. Cancelled orders are not selected again, so a
// re-run is a no-op for them.
func (j *PaymentTimeoutJob) Sweep(ctx context.Context) (SweepResult, error) {
	cutoff := j.now().UTC().Add(-j.timeout)
	var (
		result SweepResult
		errs   error
		after  *pagination.Cursor
	)

	for {
		if err := ctx.Err(); err != nil {
			errs = multierr.Append(errs, err)
			break
		}
		batch, err := j.orders.FindStaleUnpaid(ctx, cutoff, after, j.batchSize)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("query stale unpaid orders: %w", err))
			break
		}

		for i := range batch {
			order := &batch[i]
			result.Scanned++
			cancelled, err := j.expire(ctx, order, cutoff)
			if err != nil {
				result.Failed++
				errs = multierr.Append(errs, fmt.Errorf("order %s: %w", order.ID, err))
				continue
			}
			if cancelled {
				result.CancelledCount++
			}
		}
		if len(batch) < j.batchSize {
			break
		}
		last := batch[len(batch)-1]
		after = &pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	j.metrics.OrdersSwept(result.CancelledCount)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":          cutoff.Format(time.RFC3339),
		"scanned":         result.Scanned,
		"cancelled_count": result.CancelledCount,
		"failed":          result.Failed,
	})
	if errs != nil {
		j.logg.Warn(logCtx, fmt.Sprintf("payment timeout sweep finished with %d failure(s)", len(multierr.Errors(errs))))
	} else {
		j.logg.Info(logCtx, "payment timeout sweep complete")
	}
	return result, errs
}

// expire cancels the gateway intent best-effort, then cancels the order and
// releases its stock. The lifecycle re-checks the order under lock.
func (j *PaymentTimeoutJob) expire(ctx context.Context, order *models.Order, cutoff time.Time) (bool, error) {
	logCtx := j.logg.WithOrderID(ctx, order.ID.String())
	if j.gateway != nil && order.StripePaymentIntentID != nil && *order.StripePaymentIntentID != "" {
		if err := j.gateway.CancelPaymentIntent(ctx, *order.StripePaymentIntentID); err != nil {
			j.logg.Warn(j.logg.WithField(logCtx, "payment_intent_id", *order.StripePaymentIntentID),
				fmt.Sprintf("cancel payment intent failed; cancelling order anyway: %v", err))
		}
	}
	cancelled, err := j.lifecycle.CancelUnpaid(ctx, order.ID, cutoff)
	if err != nil {
		j.logg.Error(logCtx, "cancel unpaid order failed", err)
		return false, err
	}
	return cancelled, nil
}
