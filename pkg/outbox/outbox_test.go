package outbox_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/pkg/db/dbtest"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox/payloads"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	orderID := uuid.New()

	err := conn.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Actor:         &outbox.ActorRef{Source: string(enums.SettlementSourceNotification)},
			Data:          payloads.OrderPaidEvent{OrderID: orderID, Reference: "r2b_1"},
		})
	})
	require.NoError(t, err)

	rows, err := repo.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	var envelope outbox.PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, outbox.EnvelopeVersion, envelope.Version)
	assert.Equal(t, rows[0].ID.String(), envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, "notification", envelope.Actor.Source)

	var data payloads.OrderPaidEvent
	require.NoError(t, json.Unmarshal(envelope.Data, &data))
	assert.Equal(t, "r2b_1", data.Reference)
}

func TestEmitRollsBackWithTransaction(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	svc := outbox.NewService(repo, nil)
	orderID := uuid.New()
	boom := errors.New("boom")

	err := conn.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Data:          payloads.PaymentFailedEvent{OrderID: orderID},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	rows, err := repo.ListByAggregate(context.Background(), orderID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestEmitRequiresTransaction(t *testing.T) {
	svc := outbox.NewService(outbox.NewRepository(nil), nil)
	err := svc.Emit(context.Background(), nil, outbox.DomainEvent{})
	assert.Error(t, err)
}

func TestEmitRejectsIncompleteEvents(t *testing.T) {
	conn := dbtest.Open(t)
	svc := outbox.NewService(outbox.NewRepository(conn), nil)

	for name, event := range map[string]outbox.DomainEvent{
		"unknown type": {EventType: "order_shipped", AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Data: struct{}{}},
		"no aggregate": {EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, Data: struct{}{}},
		"no data":      {EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New()},
	} {
		err := conn.Transaction(func(tx *gorm.DB) error {
			return svc.Emit(context.Background(), tx, event)
		})
		assert.Error(t, err, name)
	}

	var count int64
	require.NoError(t, conn.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := outbox.DecodeEnvelope([]byte(`{"eventId":"e1","data":{"reference":"r2b_1"}}`))
	require.NoError(t, err)
	assert.Equal(t, outbox.EnvelopeVersion, env.Version)

	for _, raw := range []string{`{`, `{"data":{}}`, `{"eventId":"e1","data":null}`, `{"eventId":"e1"}`} {
		_, err := outbox.DecodeEnvelope([]byte(raw))
		assert.Error(t, err, raw)
	}
}

func TestPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := outbox.NewRepository(conn)
	now := time.Now().UTC()

	published := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: now.Add(-time.Minute)}
	failing := models.OutboxEvent{ID: uuid.New(), EventType: enums.EventOrderPaid, AggregateType: enums.AggregateOrder, AggregateID: uuid.New(), Payload: json.RawMessage(`{}`), CreatedAt: now}
	require.NoError(t, repo.Insert(conn, published))
	require.NoError(t, repo.Insert(conn, failing))

	err := conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		if err != nil {
			return err
		}
		require.Len(t, rows, 2)
		assert.Equal(t, published.ID, rows[0].ID)
		if err := repo.MarkPublishedTx(tx, published.ID); err != nil {
			return err
		}
		return repo.MarkTerminalTx(tx, failing.ID, errors.New("topic gone"), 3)
	})
	require.NoError(t, err)

	err = conn.Transaction(func(tx *gorm.DB) error {
		rows, err := repo.FetchUnpublishedForPublish(tx, 10, 3)
		require.NoError(t, err)
		assert.Empty(t, rows)
		return nil
	})
	require.NoError(t, err)

	deleted, err := repo.DeletePublishedBefore(context.Background(), time.Now().UTC().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)
}

func TestDLQInsertTruncatesMessage(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := outbox.NewDLQRepository(conn)
	eventID := uuid.New()
	long := strings.Repeat("x", 4096)

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       eventID,
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &long,
		FailedAt:      time.Now().UTC(),
	}))

	row, err := dlq.FindByEventID(context.Background(), eventID)
	require.NoError(t, err)
	require.NotNil(t, row)
	require.NotNil(t, row.ErrorMessage)
	assert.Len(t, *row.ErrorMessage, 1024)

	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}
