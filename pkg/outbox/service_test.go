package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

func openOutboxDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:outbox_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}))
	return conn
}

func TestEmitWritesEnvelope(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &ActorRef{Source: SourceCheckout},
			Data:          map[string]any{"orderId": orderID.String()},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderCreated, rows[0].EventType)
	assert.Equal(t, orderID, rows[0].AggregateID)

	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &env))
	assert.Equal(t, 1, env.Version)
	assert.NotEmpty(t, env.EventID)
	assert.Equal(t, SourceCheckout, env.Actor.Source)
	assert.JSONEq(t, `{"orderId":"`+orderID.String()+`"}`, string(env.Data))
}

func TestEmitRejectsUnknownEventType(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     "order_teleported",
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
	})
	require.Error(t, err)
}

func TestEmitRejectsMissingAggregateID(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)

	err := svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
	})
	require.Error(t, err)

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitStampsOccurredAtFromClock(t *testing.T) {
	conn := openOutboxDB(t)
	svc := NewService(NewRepository(conn), nil)
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.EventOrderCanceled,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Version:       -1,
	}))

	var row models.OutboxEvent
	require.NoError(t, conn.First(&row).Error)
	var env PayloadEnvelope
	require.NoError(t, json.Unmarshal(row.Payload, &env))
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, 1, env.Version)
	assert.Equal(t, "null", string(env.Data))
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := NewService(NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)
}

func TestRepositoryFetchAndMark(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()

	first := models.OutboxEvent{EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`)}
	second := models.OutboxEvent{EventType: enums.EventDeliveryCreated, AggregateType: enums.AggregateDelivery, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), AttemptCount: 3}
	require.NoError(t, repo.Insert(conn, first))
	require.NoError(t, repo.Insert(conn, second))

	rows, err := repo.FetchUnpublished(ctx, 10, 3)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, enums.EventOrderPaid, rows[0].EventType)

	require.NoError(t, repo.MarkFailed(ctx, rows[0].ID, errors.New("broker down")))
	var reloaded models.OutboxEvent
	require.NoError(t, conn.First(&reloaded, "id = ?", rows[0].ID).Error)
	assert.Equal(t, 1, reloaded.AttemptCount)
	require.NotNil(t, reloaded.LastError)
	assert.Equal(t, "broker down", *reloaded.LastError)

	require.NoError(t, repo.MarkPublished(ctx, rows[0].ID))
	rows, err = repo.FetchUnpublished(ctx, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestRepositoryPruneBatch(t *testing.T) {
	conn := openOutboxDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	recent := time.Now()

	rows := []models.OutboxEvent{
		{EventType: enums.EventOrderPaid, PublishedAt: &old},
		{EventType: enums.EventOrderPaid, PublishedAt: &old},
		{EventType: enums.EventOrderPaid, PublishedAt: &recent},
		{EventType: enums.EventOrderCreated},
		{EventType: enums.EventOrderCreated, AttemptCount: 5, CreatedAt: old},
	}
	for _, row := range rows {
		row.AggregateType = enums.AggregateOrder
		row.AggregateID = uuid.New()
		row.Payload = json.RawMessage(`{}`)
		require.NoError(t, repo.Insert(conn, row))
	}

	cutoff := time.Now().Add(-24 * time.Hour)
	deleted, err := repo.PruneBatch(ctx, cutoff, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	deleted, err = repo.PruneBatch(ctx, cutoff, 5, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	var remaining int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&remaining).Error)
	assert.Equal(t, int64(2), remaining, "recently published and fresh pending rows survive")
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":1,"eventId":"evt-1","occurredAt":"2026-01-02T03:04:05Z","actor":{"source":"staff"},"data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, "evt-1", env.EventID)
	assert.Equal(t, SourceStaff, env.Actor.Source)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))

	_, err = DecodeEnvelope([]byte(`{"version":1}`))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`not json`))
	assert.Error(t, err)
}
