package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/config"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

func TestServiceProcessBatchContinuesAfterFailure(t *testing.T) {
	repo := &fakeRepo{
		events: []models.OutboxEvent{
			newEvent(t, "event-one", 0),
			newEvent(t, "event-two", 0),
		},
	}
	pub := &fakePublisher{
		results: []publishResult{
			fakePublishResult{err: errors.New("transient")},
			fakePublishResult{},
		},
	}
	service := newTestService(t, repo, pub, nil)

	stats, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats != (batchStats{Fetched: 2, Published: 1, Failed: 1}) {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if got := len(repo.failed); got != 1 {
		t.Fatalf("unexpected number of failed rows: %d", got)
	}
	if got := len(repo.published); got != 1 {
		t.Fatalf("unexpected number of published rows: %d", got)
	}
	if repo.failed[0] != repo.events[0].ID {
		t.Fatalf("failed row recorded wrong ID")
	}
	if repo.published[0] != repo.events[1].ID {
		t.Fatalf("published row recorded wrong ID")
	}
}

func TestServiceProcessBatchSetsMessageAttributes(t *testing.T) {
	event := newEvent(t, "evt-attrs", 0)
	event.EventType = enums.EventDeliveryStatusChanged
	event.AggregateType = enums.AggregateDelivery
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one message, got %d", len(pub.messages))
	}
	attrs := pub.messages[0].Attributes
	if attrs["event_id"] != "evt-attrs" {
		t.Fatalf("unexpected event_id %q", attrs["event_id"])
	}
	if attrs["event_type"] != string(enums.EventDeliveryStatusChanged) {
		t.Fatalf("unexpected event_type %q", attrs["event_type"])
	}
	if attrs["aggregate_id"] != event.AggregateID.String() {
		t.Fatalf("unexpected aggregate_id %q", attrs["aggregate_id"])
	}
	if string(pub.messages[0].Data) != string(event.Payload) {
		t.Fatalf("payload should be relayed unchanged")
	}
}

func TestServiceProcessBatchFallsBackToRowID(t *testing.T) {
	event := newEvent(t, "", 0)
	event.Payload = json.RawMessage(`not-json`)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if got := pub.messages[0].Attributes["event_id"]; got != event.ID.String() {
		t.Fatalf("expected row id as event id, got %q", got)
	}
}

func TestServiceProcessBatchMarksLastAttemptFailed(t *testing.T) {
	event := newEvent(t, "max-attempts", 1)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("transient")}}}
	service := newTestService(t, repo, pub, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("expected the exhausted row to be marked failed, got %v", repo.failed)
	}
	if repo.maxAttempts != 2 {
		t.Fatalf("expected fetch bounded by max attempts, got %d", repo.maxAttempts)
	}
}

func TestServiceProcessBatchEmpty(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, nil)
	stats, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats != (batchStats{}) {
		t.Fatalf("empty batch should report nothing, got %+v", stats)
	}
}

func TestServiceProcessBatchPublishesBeforeAwaiting(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(t, "a", 0), newEvent(t, "b", 0), newEvent(t, "c", 0)}}
	pub := &fakePublisher{}
	pub.results = []publishResult{
		enqueueCounter{pub: pub, want: 3},
		enqueueCounter{pub: pub, want: 3},
		enqueueCounter{pub: pub, want: 3},
	}
	service := newTestService(t, repo, pub, &config.OutboxConfig{BatchSize: 3, MaxAttempts: 5})

	stats, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats.Published != 3 {
		t.Fatalf("expected every message enqueued before the first Get, got %+v", stats)
	}
}

func TestServiceProcessBatchTreatsMissingResultAsFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(t, "nil-result", 0)}}
	service := newTestService(t, repo, &fakePublisher{}, nil)

	stats, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch returned error: %v", err)
	}
	if stats.Failed != 1 || len(repo.failed) != 1 {
		t.Fatalf("expected the row to be marked failed, stats=%+v", stats)
	}
}

func TestProcessBatchAbortsOnBookkeepingError(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{newEvent(t, "x", 0)}, markErr: errors.New("db gone")}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, nil)

	if _, err := service.processBatch(context.Background()); err == nil {
		t.Fatal("expected mark failure to abort the batch")
	}
}

func TestNewServiceRequiresPublisher(t *testing.T) {
	_, err := NewService(ServiceParams{
		Config:     &config.Config{},
		Logger:     logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: func(*gorm.DB) outboxRepository { return &fakeRepo{} },
	})
	if err == nil {
		t.Fatal("expected error without a lifecycle publisher")
	}
}

func TestNextBackoffCaps(t *testing.T) {
	if got := nextBackoff(0, time.Second, 10*time.Second); got != 2*time.Second {
		t.Fatalf("expected 2s, got %v", got)
	}
	if got := nextBackoff(8*time.Second, time.Second, 10*time.Second); got != 10*time.Second {
		t.Fatalf("expected cap at 10s, got %v", got)
	}
}

func newTestService(t *testing.T, repo *fakeRepo, pub publisher, outboxCfgOverride *config.OutboxConfig) *Service {
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if outboxCfgOverride != nil {
		outboxCfg = *outboxCfgOverride
	}
	cfg := &config.Config{
		Outbox: outboxCfg,
	}
	logg := logger.New(logger.Options{
		ServiceName: "outbox-publisher-test",
		Output:      io.Discard,
	})
	service, err := NewService(ServiceParams{
		Config:     cfg,
		Logger:     logg,
		DB:         &fakeDB{},
		PubSub:     &fakePubSubClient{},
		Repository: func(*gorm.DB) outboxRepository { return repo },
		Publisher:  pub,
	})
	if err != nil {
		t.Fatalf("failed to construct service: %v", err)
	}
	return service
}

func newEvent(tb testing.TB, eventID string, attempts int) models.OutboxEvent {
	tb.Helper()
	env := outbox.PayloadEnvelope{
		Version:    1,
		EventID:    eventID,
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	}
	payload, err := json.Marshal(env)
	if err != nil {
		tb.Fatalf("marshal envelope: %v", err)
	}
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

type fakeRepo struct {
	events      []models.OutboxEvent
	published   []uuid.UUID
	failed      []uuid.UUID
	maxAttempts int
	markErr     error
}

func (f *fakeRepo) FetchUnpublished(_ context.Context, _ int, maxAttempts int) ([]models.OutboxEvent, error) {
	f.maxAttempts = maxAttempts
	return f.events, nil
}

func (f *fakeRepo) MarkPublished(_ context.Context, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(_ context.Context, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

type fakeDB struct{}

func (f *fakeDB) Ping(context.Context) error {
	return nil
}

func (f *fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error {
	return fn(nil)
}

type fakePubSubClient struct{}

func (f *fakePubSubClient) Ping(context.Context) error {
	return nil
}

func (f *fakePubSubClient) LifecyclePublisher() *gcppubsub.Publisher {
	return nil
}

type fakePublisher struct {
	results  []publishResult
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "", f.err
}

// enqueueCounter fails unless want messages were enqueued before Get is called.
type enqueueCounter struct {
	pub  *fakePublisher
	want int
}

func (o enqueueCounter) Get(context.Context) (string, error) {
	if len(o.pub.messages) < o.want {
		return "", errors.New("awaited before the batch was enqueued")
	}
	return "id", nil
}
