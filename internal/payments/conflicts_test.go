package payments

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/pagination"
)

func newConflictFixture(t *testing.T) (*settlementStack, *ConflictService, uuid.UUID) {
	t.Helper()
	stack := newSettlementStack(t)
	stack.seedOrder(t, "r2b_review", 100000)
	outcome, err := stack.reconciler.Apply(context.Background(), successObservation("r2b_review", 90000))
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeSettlementConflict))

	svc, err := NewConflictService(stack.db, stack.orders, stack.reconciler, stack.outbox)
	require.NoError(t, err)
	return stack, svc, *outcome.ConflictID
}

func TestConflictListOpen(t *testing.T) {
	_, svc, id := newConflictFixture(t)

	list, err := svc.List(context.Background(), enums.ConflictStatusOpen, pagination.Params{})
	require.NoError(t, err)
	require.Len(t, list.Conflicts, 1)
	assert.Equal(t, id, list.Conflicts[0].ID)
	assert.Equal(t, int64(90000), list.Conflicts[0].ObservedAmountMinor)

	_, err = svc.List(context.Background(), enums.ConflictStatus("bogus"), pagination.Params{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.List(context.Background(), enums.ConflictStatusOpen, pagination.Params{Cursor: "not-a-cursor!"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestConflictAcceptSettlesOrder(t *testing.T) {
	stack, svc, id := newConflictFixture(t)
	ctx := context.Background()

	result, err := svc.Resolve(ctx, id, ResolveConflictInput{Decision: enums.ConflictDecisionAccept, Note: "customer paid in two parts", Actor: "ops@r2blaze.example"})
	require.NoError(t, err)
	assert.Equal(t, enums.ConflictStatusAccepted, result.Status)
	require.NotNil(t, result.Order)
	assert.True(t, result.Order.Transitioned)
	assert.Equal(t, enums.OrderStatusPaid, result.Order.Status)

	stored, err := stack.orders.FindByReference(ctx, "r2b_review")
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusPaid, stored.Status)
	require.NotNil(t, stored.SettledVia)
	assert.Equal(t, enums.SettlementSourceAdminReview, *stored.SettledVia)

	conflict, err := stack.orders.FindConflict(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, enums.ConflictStatusAccepted, conflict.Status)
	require.NotNil(t, conflict.ResolutionNote)
	assert.Equal(t, "customer paid in two parts", *conflict.ResolutionNote)
	assert.Equal(t, 1, stack.events(t, id, enums.EventSettlementConflictResolved))
}

func TestConflictRejectFailsOrder(t *testing.T) {
	stack, svc, id := newConflictFixture(t)
	ctx := context.Background()

	result, err := svc.Resolve(ctx, id, ResolveConflictInput{Decision: enums.ConflictDecisionReject, Actor: "ops@r2blaze.example"})
	require.NoError(t, err)
	assert.Equal(t, enums.OrderStatusFailed, result.Order.Status)

	count, err := stack.orders.CountPaymentRecords(ctx, "r2b_review")
	require.NoError(t, err)
	assert.Zero(t, count)

	_, err = svc.Resolve(ctx, id, ResolveConflictInput{Decision: enums.ConflictDecisionAccept, Actor: "someone"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestConflictResolveValidation(t *testing.T) {
	_, svc, id := newConflictFixture(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, id, ResolveConflictInput{Decision: "maybe", Actor: "ops"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = svc.Resolve(ctx, id, ResolveConflictInput{Decision: enums.ConflictDecisionAccept})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = svc.Resolve(ctx, uuid.New(), ResolveConflictInput{Decision: enums.ConflictDecisionAccept, Actor: "ops"})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
