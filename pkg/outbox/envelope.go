package outbox

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Source names the flow that produced an event.
type Source string

const (
	SourceCheckout Source = "checkout"
	SourceWebhook  Source = "payment_webhook"
	SourceStaff    Source = "staff"
	SourceSweeper  Source = "payment_timeout_sweeper"
	SourceDelivery Source = "delivery"
)

// ActorRef identifies who produced the event. UserID is nil for system flows.
type ActorRef struct {
	UserID *uuid.UUID `json:"userId,omitempty"`
	Source Source     `json:"source"`
}

// PayloadEnvelope is the JSON document stored in outbox_events.payload and
// relayed verbatim as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// DecodeEnvelope parses a stored payload. An envelope without an event id is
// rejected.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("outbox: decode envelope: %w", err)
	}
	if env.EventID == "" {
		return PayloadEnvelope{}, fmt.Errorf("outbox: envelope missing eventId")
	}
	return env, nil
}
