package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/products"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service owns every order status change. Staff actions, payment events, the
// delivery machine and the timeout sweeper all funnel through apply.
type Service interface {
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error
	MarkPaid(ctx context.Context, paymentIntentID string) (*models.Order, error)
	MarkPaymentFailed(ctx context.Context, paymentIntentID string) (*models.Order, error)
	CancelUnpaid(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error)
	CompensateCheckout(ctx context.Context, orderID uuid.UUID) error
	ApplyDeliveryStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.OrderStatus) error
}

// OrderPage is one page of a user's orders; NextCursor is empty on the last page.
type OrderPage struct {
	Orders     []models.Order
	NextCursor string
}

// UpdateStatusInput carries a staff driven status change.
type UpdateStatusInput struct {
	OrderID     uuid.UUID
	Status      enums.OrderStatus
	ActorUserID *uuid.UUID
}

type ServiceParams struct {
	Repository Repository
	DB         txRunner
	Outbox     outboxPublisher
	Ledger     products.Ledger
	Logger     *logger.Logger
	Metrics    *metrics.LifecycleMetrics
}

type service struct {
	repo    Repository
	tx      txRunner
	outbox  outboxPublisher
	ledger  products.Ledger
	logg    *logger.Logger
	metrics *metrics.LifecycleMetrics
	now     func() time.Time
}

// NewService builds the order lifecycle service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repository,
		tx:      params.DB,
		outbox:  params.Outbox,
		ledger:  params.Ledger,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

// transition describes one change applied to a locked order.
type transition struct {
	to      enums.OrderStatus
	payment enums.PaymentStatus
	source  outbox.Source
	actor   *uuid.UUID
	release bool
	mirror  bool
}

func (s *service) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindWithRelations(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID.String())
	}
	return order, nil
}

func (s *service) ListUserOrders(ctx context.Context, userID uuid.UUID, params pagination.Params) (*OrderPage, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByUser(ctx, userID, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list user orders")
	}

	page := &OrderPage{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return page, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown order status %q", input.Status))
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, input.OrderID)
		if err != nil {
			return err
		}
		if deliveryOwned(input.Status) {
			hasDelivery, err := s.hasDelivery(ctx, tx, order.ID)
			if err != nil {
				return err
			}
			if hasDelivery {
				return ErrInvalidStatusTransition.
					Derive(fmt.Sprintf("cannot transition order from '%s' to '%s' once a delivery exists", order.Status, input.Status)).
					WithDetails(map[string]any{"from": order.Status.String(), "to": input.Status.String(), "reason": "delivery_exists"})
			}
		}
		if err := ValidateTransition(order.Status, input.Status); err != nil {
			return err
		}
		if err := s.apply(ctx, tx, order, transition{
			to:      input.Status,
			source:  outbox.SourceStaff,
			actor:   input.ActorUserID,
			release: input.Status == enums.OrderStatusCancelled,
		}); err != nil {
			return err
		}
		updated = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *service) AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.StripePaymentIntentID != nil {
			if *order.StripePaymentIntentID == paymentIntentID {
				return nil
			}
			return ErrPaymentIntentConflict.Derive(fmt.Sprintf("order %s already references payment intent %s", order.ID, *order.StripePaymentIntentID))
		}
		if order.Status != enums.OrderStatusPending {
			return ErrPaymentIntentConflict.Derive(fmt.Sprintf("order %s is %s and no longer accepts a payment intent", order.ID, order.Status))
		}
		if err := s.repo.WithTx(tx).SetPaymentIntent(ctx, order.ID, paymentIntentID); err != nil {
			if db.IsUniqueViolation(err, "") {
				return ErrPaymentIntentConflict.Derive("payment intent already attached to another order")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent id")
		}
		return nil
	})
}

// MarkPaid records a successful payment. A repeated delivery of the same event
// finds the order already paid and returns without writing.
func (s *service) MarkPaid(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrderByIntent(ctx, tx, paymentIntentID)
		if err != nil {
			return err
		}
		result = order
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())

		switch {
		case order.PaymentStatus == enums.PaymentStatusPaid:
			s.logg.Info(logCtx, "payment already recorded; skipping")
			return nil
		case order.Status == enums.OrderStatusCancelled:
			s.logg.Warn(logCtx, "payment succeeded for a cancelled order; leaving order cancelled")
			return nil
		}

		target := order.Status
		if order.Status == enums.OrderStatusPending {
			target = enums.OrderStatusProcessing
		}
		return s.apply(ctx, tx, order, transition{
			to:      target,
			payment: enums.PaymentStatusPaid,
			source:  outbox.SourceWebhook,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkPaymentFailed cancels the order and returns its stock. Orders that are
// already paid or cancelled are left untouched.
func (s *service) MarkPaymentFailed(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrderByIntent(ctx, tx, paymentIntentID)
		if err != nil {
			return err
		}
		result = order
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())

		switch {
		case order.Status == enums.OrderStatusCancelled:
			s.logg.Info(logCtx, "order already cancelled; skipping payment failure")
			return nil
		case order.PaymentStatus == enums.PaymentStatusPaid:
			s.logg.Warn(logCtx, "payment failure received for a paid order; skipping")
			return nil
		case !CanTransition(order.Status, enums.OrderStatusCancelled):
			s.logg.Warn(logCtx, fmt.Sprintf("payment failure received for %s order; skipping", order.Status))
			return nil
		}
		if hasDelivery, err := s.hasDelivery(ctx, tx, order.ID); err != nil {
			return err
		} else if hasDelivery {
			s.logg.Warn(logCtx, "payment failure received for an order with a delivery; skipping")
			return nil
		}

		return s.apply(ctx, tx, order, transition{
			to:      enums.OrderStatusCancelled,
			payment: enums.PaymentStatusFailed,
			source:  outbox.SourceWebhook,
			release: true,
		})
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// CancelUnpaid cancels an abandoned checkout. The payment state and age are
// re-checked under the row lock, so a payment that landed after the sweep
// query keeps the order alive.
func (s *service) CancelUnpaid(ctx context.Context, orderID uuid.UUID, cutoff time.Time) (bool, error) {
	cancelled := false
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.PaymentStatus != enums.PaymentStatusUnpaid ||
			!order.CreatedAt.Before(cutoff) ||
			!CanTransition(order.Status, enums.OrderStatusCancelled) {
			return nil
		}
		hasDelivery, err := s.hasDelivery(ctx, tx, order.ID)
		if err != nil {
			return err
		}
		if hasDelivery {
			s.logg.Warn(s.logg.WithOrderID(ctx, order.ID.String()), "unpaid order has a delivery; not expiring it")
			return nil
		}
		if err := s.apply(ctx, tx, order, transition{
			to:      enums.OrderStatusCancelled,
			payment: enums.PaymentStatusFailed,
			source:  outbox.SourceSweeper,
			release: true,
		}); err != nil {
			return err
		}
		cancelled = true
		return nil
	})
	return cancelled, err
}

// CompensateCheckout undoes a checkout whose payment intent could not be
// created or stored.
func (s *service) CompensateCheckout(ctx context.Context, orderID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status != enums.OrderStatusPending || order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		return s.apply(ctx, tx, order, transition{
			to:      enums.OrderStatusCancelled,
			payment: enums.PaymentStatusFailed,
			source:  outbox.SourceCheckout,
			release: true,
		})
	})
}

// ApplyDeliveryStatus mirrors a delivery milestone onto the order inside the
// caller's transaction. A nil tx opens a new one.
func (s *service) ApplyDeliveryStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.OrderStatus) error {
	if status != enums.OrderStatusShipped && status != enums.OrderStatusDelivered {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("delivery cannot drive order to %q", status))
	}
	run := func(tx *gorm.DB) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if order.Status == status {
			return nil
		}
		return s.apply(ctx, tx, order, transition{
			to:     status,
			source: outbox.SourceDelivery,
			mirror: true,
		})
	}
	if tx == nil {
		return s.tx.WithTx(ctx, run)
	}
	return run(tx)
}

// apply is the one place an order's status and payment status change. order
// must have been loaded under lock within tx. Nothing is written when the
// transition is rejected.
func (s *service) apply(ctx context.Context, tx *gorm.DB, order *models.Order, t transition) error {
	from := order.Status
	previousPayment := order.PaymentStatus
	if t.to != from {
		validate := ValidateTransition
		if t.mirror {
			validate = validateMirrorTransition
		}
		if err := validate(from, t.to); err != nil {
			return err
		}
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"order_id": order.ID.String(),
		"from":     from.String(),
		"to":       t.to.String(),
		"source":   t.source,
	})

	if t.release {
		if err := s.ledger.Release(ctx, tx, StockLines(order.Items)); err != nil {
			s.logg.Error(logCtx, "stock release incomplete; continuing with cancellation", err)
		}
	}

	now := s.now().UTC()
	order.Status = t.to
	if t.payment != "" {
		order.PaymentStatus = t.payment
		if t.payment == enums.PaymentStatusPaid && order.PaidAt == nil {
			order.PaidAt = &now
		}
	}
	if t.to == enums.OrderStatusCancelled && order.CanceledAt == nil {
		order.CanceledAt = &now
	}

	if err := s.repo.WithTx(tx).Update(ctx, order); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	event := outbox.DomainEvent{
		EventType:     statusEventType(from, previousPayment, order),
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: t.actor, Source: t.source},
		Data: OrderStatusEvent{
			OrderID:        order.ID,
			UserID:         order.UserID,
			PreviousStatus: from,
			Status:         order.Status,
			PaymentStatus:  order.PaymentStatus,
			Source:         t.source,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return err
	}

	s.metrics.OrderTransition(from.String(), order.Status.String(), string(t.source))
	s.logg.Info(logCtx, "order status updated")
	return nil
}

// deliveryOwned lists the order states that only the delivery path may set
// once a delivery exists. Cancelling would strand the delivery.
func deliveryOwned(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.OrderStatusCancelled:
		return true
	}
	return false
}

func (s *service) hasDelivery(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (bool, error) {
	ok, err := s.repo.WithTx(tx).HasDelivery(ctx, orderID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check order delivery")
	}
	return ok, nil
}

func (s *service) lockOrder(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.WithTx(tx).Locked().FindByID(ctx, orderID)
	if err != nil {
		return nil, mapLoadError(err, orderID.String())
	}
	return order, nil
}

func (s *service) lockOrderByIntent(ctx context.Context, tx *gorm.DB, paymentIntentID string) (*models.Order, error) {
	paymentIntentID = strings.TrimSpace(paymentIntentID)
	if paymentIntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	order, err := s.repo.WithTx(tx).Locked().FindByPaymentIntentID(ctx, paymentIntentID)
	if err != nil {
		return nil, mapLoadError(err, "for payment intent "+paymentIntentID)
	}
	return order, nil
}

func mapLoadError(err error, ref string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrOrderNotFound.Derive("order " + ref + " not found")
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
}

// StockLines converts order items into ledger lines.
func StockLines(items []models.OrderItem) []products.StockLine {
	lines := make([]products.StockLine, 0, len(items))
	for _, item := range items {
		lines = append(lines, products.StockLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return lines
}
