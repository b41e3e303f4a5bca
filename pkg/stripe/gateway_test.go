package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

const testSecret = "whsec_test"

type fakeIntentAPI struct {
	created  []*stripe.PaymentIntentParams
	canceled []string
	newErr   error
	cancelFn func(id string) error
}

func (f *fakeIntentAPI) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = append(f.created, params)
	if f.newErr != nil {
		return nil, f.newErr
	}
	return &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}, nil
}

func (f *fakeIntentAPI) Cancel(id string, params *stripe.PaymentIntentCancelParams) (*stripe.PaymentIntent, error) {
	f.canceled = append(f.canceled, id)
	if f.cancelFn != nil {
		if err := f.cancelFn(id); err != nil {
			return nil, err
		}
	}
	return &stripe.PaymentIntent{ID: id, Status: stripe.PaymentIntentStatusCanceled}, nil
}

func TestCreatePaymentIntentUsesMinorUnitsAndMetadata(t *testing.T) {
	api := &fakeIntentAPI{}
	gw := newGateway(api, testSecret, config.BreakerConfig{}, nil)

	intent, err := gw.CreatePaymentIntent(context.Background(), decimal.RequireFromString("20.00"), enums.CurrencyUSD, map[string]string{MetadataOrderID: "order-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if intent.ID != "pi_123" || intent.ClientSecret != "pi_123_secret" {
		t.Fatalf("unexpected intent %+v", intent)
	}
	if len(api.created) != 1 {
		t.Fatalf("expected one create call, got %d", len(api.created))
	}
	params := api.created[0]
	if *params.Amount != 2000 {
		t.Fatalf("expected 2000 minor units, got %d", *params.Amount)
	}
	if *params.Currency != "usd" {
		t.Fatalf("expected usd, got %s", *params.Currency)
	}
	if params.Metadata[MetadataOrderID] != "order-1" {
		t.Fatalf("expected order metadata, got %v", params.Metadata)
	}
	if params.IdempotencyKey == nil || *params.IdempotencyKey != "checkout-order-1" {
		t.Fatalf("expected idempotency key derived from order id")
	}
}

func TestCreatePaymentIntentRejectsNonPositiveAmount(t *testing.T) {
	api := &fakeIntentAPI{}
	gw := newGateway(api, testSecret, config.BreakerConfig{}, nil)

	_, err := gw.CreatePaymentIntent(context.Background(), decimal.Zero, enums.CurrencyUSD, nil)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
	if len(api.created) != 0 {
		t.Fatalf("gateway should not be called for invalid amount")
	}
}

func TestCreatePaymentIntentTripsBreaker(t *testing.T) {
	api := &fakeIntentAPI{newErr: errors.New("connection reset")}
	gw := newGateway(api, testSecret, config.BreakerConfig{FailureThreshold: 2, Timeout: time.Minute}, nil)

	for i := 0; i < 2; i++ {
		if _, err := gw.CreatePaymentIntent(context.Background(), decimal.NewFromInt(5), enums.CurrencyUSD, nil); err == nil {
			t.Fatalf("expected failure %d", i)
		}
	}
	_, err := gw.CreatePaymentIntent(context.Background(), decimal.NewFromInt(5), enums.CurrencyUSD, nil)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if len(api.created) != 2 {
		t.Fatalf("open breaker should short-circuit, calls=%d", len(api.created))
	}
}

func TestCardErrorsDoNotTripBreaker(t *testing.T) {
	api := &fakeIntentAPI{newErr: &stripe.Error{Type: stripe.ErrorTypeInvalidRequest, Msg: "bad amount"}}
	gw := newGateway(api, testSecret, config.BreakerConfig{FailureThreshold: 1}, nil)

	for i := 0; i < 3; i++ {
		_, err := gw.CreatePaymentIntent(context.Background(), decimal.NewFromInt(5), enums.CurrencyUSD, nil)
		if errors.Is(err, gobreaker.ErrOpenState) {
			t.Fatalf("request errors must not open the breaker")
		}
	}
	if len(api.created) != 3 {
		t.Fatalf("expected every call to reach the api, got %d", len(api.created))
	}
}

func TestCancelPaymentIntentTreatsAlreadyCanceledAsSuccess(t *testing.T) {
	api := &fakeIntentAPI{cancelFn: func(string) error {
		return &stripe.Error{
			Code:          stripe.ErrorCodePaymentIntentUnexpectedState,
			PaymentIntent: &stripe.PaymentIntent{Status: stripe.PaymentIntentStatusCanceled},
		}
	}}
	gw := newGateway(api, testSecret, config.BreakerConfig{}, nil)

	if err := gw.CancelPaymentIntent(context.Background(), "pi_1"); err != nil {
		t.Fatalf("expected already canceled to be ignored, got %v", err)
	}
	if err := gw.CancelPaymentIntent(context.Background(), " "); err == nil {
		t.Fatalf("expected empty id to fail")
	}
}

func TestVerifyAndParseWebhook(t *testing.T) {
	gw := newGateway(&fakeIntentAPI{}, testSecret, config.BreakerConfig{}, nil)
	payload := buildIntentEventPayload(t, "evt_1", stripe.EventTypePaymentIntentSucceeded, "pi_42", "order-42")

	event, err := gw.VerifyAndParseWebhook(payload, signHeader(payload, testSecret, time.Now().Unix()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.ID != "evt_1" || event.Type != EventPaymentIntentSucceeded {
		t.Fatalf("unexpected event %+v", event)
	}
	if event.PaymentIntentID != "pi_42" || event.OrderID != "order-42" {
		t.Fatalf("expected intent and order ids, got %+v", event)
	}
}

func TestVerifyAndParseWebhookRejectsBadSignature(t *testing.T) {
	gw := newGateway(&fakeIntentAPI{}, testSecret, config.BreakerConfig{}, nil)
	payload := buildIntentEventPayload(t, "evt_1", stripe.EventTypePaymentIntentSucceeded, "pi_42", "order-42")

	cases := map[string]string{
		"empty":        "",
		"garbage":      "t=1,v1=invalid",
		"wrong secret": signHeader(payload, "whsec_other", time.Now().Unix()),
	}
	for name, header := range cases {
		_, err := gw.VerifyAndParseWebhook(payload, header)
		if !errors.Is(err, ErrInvalidSignature) {
			t.Fatalf("%s: expected ErrInvalidSignature, got %v", name, err)
		}
	}
}

func TestMinorUnits(t *testing.T) {
	cases := map[string]int64{"10.00": 1000, "0.01": 1, "19.999": 2000, "1234.5": 123450}
	for in, want := range cases {
		got, err := MinorUnits(decimal.RequireFromString(in))
		if err != nil || got != want {
			t.Fatalf("MinorUnits(%s) = %d, %v; want %d", in, got, err, want)
		}
	}
	if _, err := MinorUnits(decimal.NewFromInt(-1)); err == nil {
		t.Fatalf("expected negative amount to fail")
	}
}

func buildIntentEventPayload(t *testing.T, eventID string, eventType stripe.EventType, intentID, orderID string) []byte {
	t.Helper()
	rawIntent, err := json.Marshal(map[string]any{
		"id":       intentID,
		"object":   "payment_intent",
		"metadata": map[string]string{MetadataOrderID: orderID},
	})
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	event := &stripe.Event{
		ID:         eventID,
		Type:       eventType,
		Object:     "event",
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: rawIntent},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return payload
}

func signHeader(payload []byte, secret string, ts int64) string {
	signedPayload := fmt.Sprintf("%d.%s", ts, payload)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(signedPayload))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
