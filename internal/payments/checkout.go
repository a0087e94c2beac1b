package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/r2blaze/r2blaze-backend/internal/orders"
	"github.com/r2blaze/r2blaze-backend/pkg/db/models"
	"github.com/r2blaze/r2blaze-backend/pkg/enums"
	pkgerrors "github.com/r2blaze/r2blaze-backend/pkg/errors"
	"github.com/r2blaze/r2blaze-backend/pkg/logger"
	"github.com/r2blaze/r2blaze-backend/pkg/money"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox"
	"github.com/r2blaze/r2blaze-backend/pkg/outbox/payloads"
)

const syntheticItemName = "R2blaze order"

// CheckoutItem is a cart line as the storefront posts it, priced in major
// units.
type CheckoutItem struct {
	ItemID    string  `json:"id"`
	Name      string  `json:"name"`
	UnitPrice float64 `json:"price"`
	Quantity  int     `json:"quantity"`
}

// CheckoutRequest is the initiate payload after HTTP decoding.
type CheckoutRequest struct {
	Email            string
	AmountMajorUnits *float64
	Reference        string
	Currency         string
	Items            []CheckoutItem
	Customer         Customer
	Metadata         map[string]any
}

type paymentInitiator interface {
	Initiate(ctx context.Context, cart CartSnapshot, ref PaymentReference) (*InitiateResult, error)
}

type CheckoutServiceParams struct {
	DB              txRunner
	Orders          orders.Repository
	Initiator       paymentInitiator
	Outbox          outboxPublisher
	Logger          *logger.Logger
	ReferencePrefix string
}

// CheckoutService turns a storefront checkout into a processor session and a
// pending order keyed by the payment reference.
type CheckoutService struct {
	db        txRunner
	orders    orders.Repository
	initiator paymentInitiator
	outbox    outboxPublisher
	logg      *logger.Logger
	prefix    string
}

func NewCheckoutService(params CheckoutServiceParams) (*CheckoutService, error) {
	if params.DB == nil {
		return nil, errors.New("tx runner required")
	}
	if params.Orders == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Initiator == nil {
		return nil, errors.New("initiator required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox publisher required")
	}
	return &CheckoutService{
		db:        params.DB,
		orders:    params.Orders,
		initiator: params.Initiator,
		outbox:    params.Outbox,
		logg:      params.Logger,
		prefix:    params.ReferencePrefix,
	}, nil
}

// Start initiates the payment and then persists the order as pending under
// the reference, so the order exists before the browser is redirected.
func (s *CheckoutService) Start(ctx context.Context, req CheckoutRequest) (*InitiateResult, error) {
	cart, err := buildCart(req)
	if err != nil {
		return nil, err
	}

	ref := PaymentReference(strings.TrimSpace(req.Reference))
	if ref == "" {
		ref = GenerateReference(s.prefix)
	}
	if s.logg != nil {
		ctx = s.logg.WithReference(ctx, ref.String())
	}

	result, err := s.initiator.Initiate(ctx, cart, ref)
	if err != nil {
		return nil, err
	}

	order, err := newPendingOrder(cart, result)
	if err != nil {
		return nil, err
	}
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		created, err := s.orders.WithTx(tx).CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   created.ID,
			Actor:         &outbox.ActorRef{Source: "checkout", Subject: created.Email},
			Data: payloads.OrderCreatedEvent{
				OrderID:     created.ID,
				Reference:   created.Reference,
				AmountMinor: created.AmountMinor,
				Currency:    created.Currency,
				Email:       created.Email,
			},
		})
	})
	if err != nil {
		if errors.Is(err, orders.ErrDuplicateReference) {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "an order already exists for this reference")
		}
		if s.logg != nil {
			s.logg.Error(ctx, "payment initiated but pending order was not stored", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "store pending order")
	}
	return result, nil
}

// buildCart reconciles the posted items with amountMajorUnits. Items win; a
// bare amount becomes a single synthetic line.
func buildCart(req CheckoutRequest) (CartSnapshot, error) {
	customer := req.Customer
	if strings.TrimSpace(customer.Email) == "" {
		customer.Email = req.Email
	}
	customer.Email = strings.TrimSpace(customer.Email)

	currency := enums.Currency("")
	if strings.TrimSpace(req.Currency) != "" {
		parsed, err := enums.ParseCurrency(req.Currency)
		if err != nil {
			return CartSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unsupported currency")
		}
		currency = parsed
	}

	var declared *int64
	if req.AmountMajorUnits != nil {
		minor, err := majorToMinor(*req.AmountMajorUnits)
		if err != nil {
			return CartSnapshot{}, err
		}
		declared = &minor
	}

	items := make([]CartItem, 0, len(req.Items))
	for idx, item := range req.Items {
		price, err := majorToMinor(item.UnitPrice)
		if err != nil {
			return CartSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d price is invalid", idx))
		}
		items = append(items, CartItem{
			ItemID:         item.ItemID,
			Name:           item.Name,
			UnitPriceMinor: price,
			Quantity:       item.Quantity,
		})
	}

	cart := CartSnapshot{Items: items, Customer: customer, Currency: currency, Metadata: req.Metadata}
	switch {
	case len(items) > 0 && declared != nil:
		total, err := cart.TotalMinor()
		if err != nil {
			return CartSnapshot{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "cart total is out of range")
		}
		if total != *declared {
			return CartSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "amount does not match cart items").WithDetails(map[string]any{
				"amountMinor": *declared,
				"itemsMinor":  total,
			})
		}
	case len(items) == 0 && declared != nil:
		cart.Items = []CartItem{{ItemID: "order", Name: syntheticItemName, UnitPriceMinor: *declared, Quantity: 1}}
	case len(items) == 0:
		return CartSnapshot{}, pkgerrors.New(pkgerrors.CodeValidation, "amount or items are required")
	}
	return cart, nil
}

func majorToMinor(major float64) (int64, error) {
	d, err := money.FromFloat(major)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount must be a finite number")
	}
	minor, err := money.ToMinor(d)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "amount is out of range")
	}
	return minor, nil
}

func newPendingOrder(cart CartSnapshot, result *InitiateResult) (*models.Order, error) {
	items, err := json.Marshal(cart.Items)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order items")
	}
	var metadata json.RawMessage
	if len(cart.Metadata) > 0 {
		if metadata, err = json.Marshal(cart.Metadata); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode order metadata")
		}
	}
	order := &models.Order{
		Reference:   result.Reference.String(),
		Status:      enums.OrderStatusPending,
		AmountMinor: result.AmountMinor,
		Currency:    result.Currency,
		Email:       cart.Customer.Email,
		Items:       items,
		Metadata:    metadata,
	}
	if result.AccessCode != "" {
		order.AccessCode = &result.AccessCode
	}
	order.CustomerName = optional(cart.Customer.Name)
	order.CustomerPhone = optional(cart.Customer.Phone)
	order.ShippingAddress = optional(cart.Customer.Address)
	return order, nil
}

func optional(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
