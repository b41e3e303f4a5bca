package stripewebhook

import (
	"context"
	"errors"
	"fmt"

	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/stripe"
)

const (
	outcomeProcessed    = "processed"
	outcomeDuplicate    = "duplicate"
	outcomeIgnored      = "ignored"
	outcomeOrderMissing = "order_missing"
	outcomeFailed       = "failed"
)

type webhookVerifier interface {
	VerifyAndParseWebhook(payload []byte, signature string) (*stripe.Event, error)
}

type orderPayments interface {
	MarkPaid(ctx context.Context, paymentIntentID string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) (*models.Order, error)
}

type eventGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Complete(ctx context.Context, eventID string) error
	Release(ctx context.Context, eventID string) error
}

// ServiceParams wires the webhook handler. Guard is optional; without it
// duplicates fall through to the payment-status check on the order.
type ServiceParams struct {
	Verifier webhookVerifier
	Orders   orderPayments
	Guard    eventGuard
	Logger   *logger.Logger
	Metrics  *metrics.LifecycleMetrics
}

type Service struct {
	verifier webhookVerifier
	orders   orderPayments
	guard    eventGuard
	logg     *logger.Logger
	metrics  *metrics.LifecycleMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifier == nil {
		return nil, fmt.Errorf("webhook verifier required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order payments required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &Service{
		verifier: params.Verifier,
		orders:   params.Orders,
		guard:    params.Guard,
		logg:     params.Logger,
		metrics:  params.Metrics,
	}, nil
}

// HandleWebhook verifies payload and applies payment_intent outcomes to the
// owning order. Unknown event types and unknown intents are acknowledged.
// A returned error asks the gateway to retry.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.verifier.VerifyAndParseWebhook(payload, signature)
	if err != nil {
		s.metrics.WebhookEvent("unverified", outcomeFailed)
		return err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"event_id":          event.ID,
		"event_type":        event.Type,
		"payment_intent_id": event.PaymentIntentID,
	})

	if !handled(event.Type) {
		s.metrics.WebhookEvent(event.Type, outcomeIgnored)
		s.logg.Info(logCtx, "webhook event type ignored")
		return nil
	}

	if event.PaymentIntentID == "" {
		s.metrics.WebhookEvent(event.Type, outcomeIgnored)
		s.logg.Warn(logCtx, "payment intent event without intent id ignored")
		return nil
	}

	claimed := false
	if s.guard != nil && event.ID != "" {
		ok, err := s.guard.Claim(ctx, event.ID)
		switch {
		case err != nil:
			s.logg.Warn(logCtx, fmt.Sprintf("webhook idempotency check unavailable: %v", err))
		case !ok:
			s.metrics.WebhookEvent(event.Type, outcomeDuplicate)
			s.logg.Info(logCtx, "duplicate webhook event acknowledged")
			return nil
		default:
			claimed = true
		}
	}

	outcome, err := s.apply(ctx, event)
	if err != nil {
		s.metrics.WebhookEvent(event.Type, outcomeFailed)
		s.logg.Error(logCtx, "webhook processing failed", err)
		if claimed {
			if relErr := s.guard.Release(ctx, event.ID); relErr != nil {
				s.logg.Error(logCtx, "release webhook idempotency claim failed", relErr)
			}
		}
		return err
	}
	if claimed {
		if err := s.guard.Complete(ctx, event.ID); err != nil {
			s.logg.Error(logCtx, "complete webhook idempotency claim failed", err)
		}
	}

	s.metrics.WebhookEvent(event.Type, outcome)
	if outcome == outcomeOrderMissing {
		s.logg.Warn(logCtx, "no order matches payment intent; event acknowledged")
		return nil
	}
	s.logg.Info(logCtx, "webhook event processed")
	return nil
}

func (s *Service) apply(ctx context.Context, event *stripe.Event) (string, error) {
	var err error
	switch event.Type {
	case stripe.EventPaymentIntentSucceeded:
		_, err = s.orders.MarkPaid(ctx, event.PaymentIntentID)
	case stripe.EventPaymentIntentFailed:
		_, err = s.orders.MarkPaymentFailed(ctx, event.PaymentIntentID)
	}
	if errors.Is(err, orders.ErrOrderNotFound) {
		return outcomeOrderMissing, nil
	}
	if err != nil {
		return "", err
	}
	return outcomeProcessed, nil
}

func handled(eventType string) bool {
	return eventType == stripe.EventPaymentIntentSucceeded || eventType == stripe.EventPaymentIntentFailed
}
