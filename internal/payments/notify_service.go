package payments

import (
	"context"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"time"

	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/metrics"
	"github.com/r2blaze/r2blaze-backend/pkg/redis"
)

const (
	notificationGuardScope = "paystack:notify"
	defaultNotifyDedupTTL  = 24 * time.Hour
)

// Notification outcomes reported to metrics.
const (
	NotifyOutcomeProcessed = "processed"
	NotifyOutcomeDuplicate = "duplicate"
	NotifyOutcomeIgnored   = "ignored"
	NotifyOutcomeFailed    = "failed"
	NotifyOutcomeRejected  = "rejected_signature"
)

// NotificationGuard marks webhook bodies as seen using Redis SETNX with a TTL.
// It only saves work on exact redeliveries; the orders table stays the
// authority on whether a payment settled.
type NotificationGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
}

func NewNotificationGuard(store redis.IdempotencyStore, ttl time.Duration) (*NotificationGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if ttl == 0 {
		ttl = defaultNotifyDedupTTL
	}
	return &NotificationGuard{store: store, ttl: ttl}, nil
}

// CheckAndMark reports whether body was already seen and otherwise marks it.
func (g *NotificationGuard) CheckAndMark(ctx context.Context, body []byte) (bool, error) {
	set, err := g.store.SetNX(ctx, g.key(body), "1", g.ttl)
	if err != nil {
		return false, err
	}
	return !set, nil
}

// Release forgets body so a later delivery is processed again.
func (g *NotificationGuard) Release(ctx context.Context, body []byte) error {
	return g.store.Del(ctx, g.key(body))
}

func (g *NotificationGuard) key(body []byte) string {
	sum := sha512.Sum512(body)
	return g.store.IdempotencyKey(notificationGuardScope, hex.EncodeToString(sum[:]))
}

type NotificationServiceParams struct {
	Reconciler settlementApplier
	Guard      *NotificationGuard
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
}

// NotificationService turns authenticated webhooks into reconciler calls.
type NotificationService struct {
	reconciler settlementApplier
	guard      *NotificationGuard
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
}

func NewNotificationService(params NotificationServiceParams) (*NotificationService, error) {
	if params.Reconciler == nil {
		return nil, errors.New("reconciler required")
	}
	return &NotificationService{
		reconciler: params.Reconciler,
		guard:      params.Guard,
		metrics:    params.Metrics,
		logg:       params.Logger,
	}, nil
}

// Process handles a webhook body whose signature has already been verified.
// Errors are for logging only; the HTTP layer acknowledges regardless.
func (s *NotificationService) Process(ctx context.Context, body []byte) error {
	if s.guard != nil {
		seen, err := s.guard.CheckAndMark(ctx, body)
		switch {
		case err != nil:
			s.warn(ctx, err, "notification guard unavailable; processing anyway")
		case seen:
			s.metrics.IncNotification(NotifyOutcomeDuplicate)
			if s.logg != nil {
				s.logg.Info(ctx, "duplicate notification skipped")
			}
			return nil
		}
	}

	err := s.process(ctx, body)
	if err != nil && s.guard != nil && !pkgerrors.IsCode(err, pkgerrors.CodeSettlementConflict) {
		if relErr := s.guard.Release(ctx, body); relErr != nil {
			s.warn(ctx, relErr, "release notification guard")
		}
	}
	return err
}

func (s *NotificationService) process(ctx context.Context, body []byte) error {
	notification, err := ParseNotification(body)
	if err != nil {
		s.metrics.IncNotification(NotifyOutcomeFailed)
		return err
	}
	err = s.Handle(ctx, notification)
	switch {
	case err != nil:
		s.metrics.IncNotification(NotifyOutcomeFailed)
	case isIgnored(notification):
		s.metrics.IncNotification(NotifyOutcomeIgnored)
	default:
		s.metrics.IncNotification(NotifyOutcomeProcessed)
	}
	return err
}

// Handle dispatches a parsed notification.
func (s *NotificationService) Handle(ctx context.Context, n Notification) error {
	switch event := n.(type) {
	case ChargeSuccess:
		if s.logg != nil {
			ctx = s.logg.WithReference(ctx, event.Reference)
			if event.OrderID != "" {
				ctx = s.logg.WithOrderID(ctx, event.OrderID)
			}
		}
		if event.Status != enums.TransactionStatusSuccess {
			// Only the verify path and the sweeps fail an order.
			if s.logg != nil {
				s.logg.Info(s.logg.WithField(ctx, "processor_status", string(event.Status)), "ignoring charge notification without success status")
			}
			return nil
		}
		_, err := s.reconciler.Apply(ctx, Observation{
			Reference:   event.Reference,
			Status:      event.Status,
			AmountMinor: event.AmountMinor,
			Currency:    event.Currency,
			PaidAt:      event.PaidAt,
			Source:      enums.SettlementSourceNotification,
			Raw:         event.Raw,
		})
		return err
	case UnknownEvent:
		if s.logg != nil {
			s.logg.Info(s.logg.WithField(ctx, "event", event.Event), "ignoring unhandled notification event")
		}
		return nil
	default:
		return errors.New("unsupported notification type")
	}
}

// RecordRejected counts a notification refused for a bad signature.
func (s *NotificationService) RecordRejected() {
	s.metrics.IncNotification(NotifyOutcomeRejected)
}

func isIgnored(n Notification) bool {
	switch event := n.(type) {
	case UnknownEvent:
		return true
	case ChargeSuccess:
		return event.Status != enums.TransactionStatusSuccess
	}
	return false
}

func (s *NotificationService) warn(ctx context.Context, err error, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
