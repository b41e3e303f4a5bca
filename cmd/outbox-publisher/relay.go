package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

var errNoPublishResult = errors.New("publisher returned no result")

// batchStats counts the rows of one batch by outcome.
type batchStats struct {
	Fetched   int
	Published int
	Failed    int
}

type pending struct {
	event  models.OutboxEvent
	fields map[string]any
	result publishResult
}

// processBatch publishes one locked batch and records the outcome of every
// row. All messages are handed to the publisher before any acknowledgement is
// awaited so the client can bundle them. A failed row bumps its attempt count;
// rows at maxAttempts are no longer fetched and are left for the retention job.
func (s *Service) processBatch(ctx context.Context) (batchStats, error) {
	var stats batchStats
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo(tx)
		events, err := repo.FetchUnpublished(ctx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		stats = batchStats{Fetched: len(events)}
		if len(events) == 0 {
			return nil
		}

		publishCtx, cancel := context.WithTimeout(ctx, s.publishTimeout)
		defer cancel()

		inflight := make([]pending, 0, len(events))
		for _, event := range events {
			msg, fields := messageFor(event)
			fields["batch_size"] = s.batchSize
			inflight = append(inflight, pending{
				event:  event,
				fields: fields,
				result: s.publisher.Publish(publishCtx, msg),
			})
		}

		for _, p := range inflight {
			published, err := s.settle(ctx, publishCtx, repo, p)
			if err != nil {
				return err
			}
			if published {
				stats.Published++
			} else {
				stats.Failed++
			}
		}
		return nil
	})
	return stats, err
}

// settle waits for one acknowledgement and marks the row. Only bookkeeping
// errors are returned; they abort the batch.
func (s *Service) settle(ctx, publishCtx context.Context, repo outboxRepository, p pending) (bool, error) {
	logCtx := s.logg.WithFields(ctx, p.fields)

	err := errNoPublishResult
	if p.result != nil {
		_, err = p.result.Get(publishCtx)
	}
	if err == nil {
		if markErr := repo.MarkPublished(ctx, p.event.ID); markErr != nil {
			return false, fmt.Errorf("mark published %s: %w", p.event.ID, markErr)
		}
		s.logg.Info(logCtx, "outbox event published")
		return true, nil
	}

	failed := p.event
	failed.AttemptCount++
	logCtx = s.logg.WithFields(logCtx, map[string]any{"attempt_count": failed.AttemptCount, "error": err.Error()})
	if failed.Exhausted(s.maxAttempts) {
		s.logg.Warn(logCtx, "outbox event will not be retried")
	} else {
		s.logg.Warn(logCtx, "outbox publish failed")
	}
	if markErr := repo.MarkFailed(ctx, p.event.ID, err); markErr != nil {
		return false, fmt.Errorf("mark failure %s: %w", p.event.ID, markErr)
	}
	return false, nil
}

// messageFor relays the stored payload unchanged and copies the routing
// metadata into attributes. Rows whose payload is not an envelope fall back to
// the row id as event id.
func messageFor(event models.OutboxEvent) (*gcppubsub.Message, map[string]any) {
	envelope, err := outbox.DecodeEnvelope(event.Payload)
	eventID := envelope.EventID
	if err != nil {
		eventID = event.ID.String()
	}

	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_id":       eventID,
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}
	if !envelope.OccurredAt.IsZero() {
		fields["occurred_at"] = envelope.OccurredAt.Format(time.RFC3339Nano)
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}

	return &gcppubsub.Message{
		Data: event.Payload,
		Attributes: map[string]string{
			"event_id":       eventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
		},
	}, fields
}
