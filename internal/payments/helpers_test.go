package payments

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/pkg/db"
	"github.com/r2blaze/r2blaze-backend/pkg/db/dbtest"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	"github.com/r2blaze/r2blaze-backend/pkg/metrics"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/paystack"
)

type settlementStack struct {
	db         *db.Client
	orders     orders.Repository
	outbox     *outbox.Service
	outboxRepo *outbox.Repository
	reconciler *Reconciler
	registry   *prometheus.Registry
}

func newSettlementStack(t *testing.T) *settlementStack {
	t.Helper()
	client := dbtest.Client(t)
	repo := orders.NewRepository(client.DB())
	outboxRepo := outbox.NewRepository(client.DB())
	outboxSvc := outbox.NewService(outboxRepo, nil)
	reg := prometheus.NewRegistry()

	reconciler, err := NewReconciler(ReconcilerParams{
		DB:      client,
		Orders:  repo,
		Outbox:  outboxSvc,
		Metrics: metrics.NewSettlementMetrics(reg),
	})
	require.NoError(t, err)

	return &settlementStack{
		db:         client,
		orders:     repo,
		outbox:     outboxSvc,
		outboxRepo: outboxRepo,
		reconciler: reconciler,
		registry:   reg,
	}
}

func (s *settlementStack) seedOrder(t *testing.T, reference string, amountMinor int64) *models.Order {
	t.Helper()
	order, err := s.orders.CreateOrder(context.Background(), &models.Order{
		Reference:   reference,
		AmountMinor: amountMinor,
		Currency:    enums.CurrencyNGN,
		Email:       "a@b.com",
		Items:       json.RawMessage(`[]`),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	})
	require.NoError(t, err)
	return order
}

func (s *settlementStack) events(t *testing.T, aggregateID uuid.UUID, eventType enums.OutboxEventType) int {
	t.Helper()
	rows, err := s.outboxRepo.ListByAggregate(context.Background(), aggregateID)
	require.NoError(t, err)
	count := 0
	for _, row := range rows {
		if row.EventType == eventType {
			count++
		}
	}
	return count
}

func successObservation(reference string, amountMinor int64) Observation {
	return Observation{
		Reference:   reference,
		Status:      enums.TransactionStatusSuccess,
		AmountMinor: amountMinor,
		Currency:    "NGN",
		Source:      enums.SettlementSourceNotification,
	}
}

type stubInitializer struct {
	mu    sync.Mutex
	calls []paystack.InitializeRequest
	resp  *paystack.InitializeResponse
	err   error
}

func (s *stubInitializer) InitializeTransaction(_ context.Context, req paystack.InitializeRequest) (*paystack.InitializeResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if s.err != nil {
		return nil, s.err
	}
	if s.resp != nil {
		return s.resp, nil
	}
	return &paystack.InitializeResponse{
		AuthorizationURL: "https://checkout.paystack.com/" + req.Reference,
		AccessCode:       "ac_" + req.Reference,
		Reference:        req.Reference,
	}, nil
}

func (s *stubInitializer) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type stubVerifier struct {
	mu    sync.Mutex
	calls int
	txn   *paystack.Transaction
	err   error
}

func (s *stubVerifier) VerifyTransaction(_ context.Context, reference string) (*paystack.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	txn := *s.txn
	txn.Reference = reference
	return &txn, nil
}

func (s *stubVerifier) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}
