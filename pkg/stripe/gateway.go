package stripe

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

const (
	// MetadataOrderID tags every payment intent with the owning order.
	MetadataOrderID = "order_id"

	EventPaymentIntentSucceeded = string(stripe.EventTypePaymentIntentSucceeded)
	EventPaymentIntentFailed    = string(stripe.EventTypePaymentIntentPaymentFailed)
)

// ErrInvalidSignature is returned when a webhook payload fails verification.
var ErrInvalidSignature = pkgerrors.Sentinel(pkgerrors.CodeValidation, "invalid_signature", "webhook signature verification failed")

// PaymentIntent is the subset of the gateway intent the checkout needs.
type PaymentIntent struct {
	ID           string
	ClientSecret string
}

// Event is a verified webhook event. PaymentIntentID is set for payment_intent.* events.
type Event struct {
	ID              string
	Type            string
	PaymentIntentID string
	OrderID         string
	Created         time.Time
}

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error)
}

type globalIntentAPI struct{}

func (globalIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	return paymentintent.New(params)
}

func (globalIntentAPI) Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	return paymentintent.Cancel(id, params)
}

// Gateway creates and cancels payment intents and verifies webhooks.
type Gateway struct {
	intents       intentAPI
	signingSecret string
	breaker       *gobreaker.CircuitBreaker[*stripe.PaymentIntent]
	logg          *logger.Logger
}

// NewGateway wires the payment intent API behind a circuit breaker.
func NewGateway(client *Client, cfg config.BreakerConfig, logg *logger.Logger) (*Gateway, error) {
	if client == nil {
		return nil, errors.New("stripe client required")
	}
	return newGateway(globalIntentAPI{}, client.SigningSecret(), cfg, logg), nil
}

func newGateway(api intentAPI, signingSecret string, cfg config.BreakerConfig, logg *logger.Logger) *Gateway {
	g := &Gateway{
		intents:       api,
		signingSecret: signingSecret,
		logg:          logg,
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}
	g.breaker = gobreaker.NewCircuitBreaker[*stripe.PaymentIntent](gobreaker.Settings{
		Name:        "stripe-payment-intents",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isRequestError(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if g.logg != nil {
				g.logg.Warn(context.Background(), fmt.Sprintf("circuit breaker %s moved from %s to %s", name, from, to))
			}
		},
	})
	return g
}

// CreatePaymentIntent requests an intent for amount in currency. The amount is
// sent in minor units.
func (g *Gateway) CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency enums.Currency, metadata map[string]string) (*PaymentIntent, error) {
	minor, err := MinorUnits(amount)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment amount")
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported currency %q", currency))
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(minor),
		Currency: stripe.String(currency.String()),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	if orderID := metadata[MetadataOrderID]; orderID != "" {
		params.SetIdempotencyKey("checkout-" + orderID)
	}

	intent, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.New(params)
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}
	if intent == nil || intent.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment gateway returned an empty intent")
	}
	return &PaymentIntent{ID: intent.ID, ClientSecret: intent.ClientSecret}, nil
}

// CancelPaymentIntent cancels id. An intent that is already canceled is not an error.
func (g *Gateway) CancelPaymentIntent(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	params := &stripe.PaymentIntentCancelParams{
		CancellationReason: stripe.String(string(stripe.PaymentIntentCancellationReasonAbandoned)),
	}
	params.Context = ctx

	_, err := g.breaker.Execute(func() (*stripe.PaymentIntent, error) {
		return g.intents.Cancel(id, params)
	})
	if err == nil || isAlreadyCanceled(err) {
		return nil
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel payment intent")
}

// VerifyAndParseWebhook checks the signature header against the signing
// secret and decodes the event.
func (g *Gateway) VerifyAndParseWebhook(payload []byte, signature string) (*Event, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrInvalidSignature.Derive("webhook signature missing")
	}
	if g.signingSecret == "" {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, errSecretRequired, "webhook verification not configured")
	}
	raw, err := webhook.ConstructEventWithOptions(payload, signature, g.signingSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, ErrInvalidSignature.Message()).WithReason(ErrInvalidSignature.Reason())
	}

	event := &Event{
		ID:      raw.ID,
		Type:    string(raw.Type),
		Created: time.Unix(raw.Created, 0).UTC(),
	}
	if strings.HasPrefix(event.Type, "payment_intent.") && raw.Data != nil {
		var intent stripe.PaymentIntent
		if err := json.Unmarshal(raw.Data.Raw, &intent); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
		}
		event.PaymentIntentID = intent.ID
		event.OrderID = intent.Metadata[MetadataOrderID]
	}
	return event, nil
}

// MinorUnits converts a two-decimal amount into the smallest currency unit.
func MinorUnits(amount decimal.Decimal) (int64, error) {
	if !amount.IsPositive() {
		return 0, fmt.Errorf("amount must be positive, got %s", amount.String())
	}
	return amount.Shift(2).Round(0).IntPart(), nil
}

func isRequestError(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Type == stripe.ErrorTypeCard || stripeErr.Type == stripe.ErrorTypeInvalidRequest
}

func isAlreadyCanceled(err error) bool {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return false
	}
	return stripeErr.Code == stripe.ErrorCodePaymentIntentUnexpectedState &&
		stripeErr.PaymentIntent != nil &&
		stripeErr.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled
}
