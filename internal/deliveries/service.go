package deliveries

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// orderMirror applies delivery milestones to the owning order.
type orderMirror interface {
	ApplyDeliveryStatus(ctx context.Context, tx *gorm.DB, orderID uuid.UUID, status enums.OrderStatus) error
}

type Service interface {
	CreateDelivery(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error)
	GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error)
	GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
}

type CreateDeliveryInput struct {
	OrderID               uuid.UUID
	Carrier               *string
	EstimatedDeliveryDate *time.Time
	Notes                 *string
	ActorUserID           *uuid.UUID
}

type UpdateStatusInput struct {
	DeliveryID     uuid.UUID
	Status         enums.DeliveryStatus
	TrackingNumber *string
	ActorUserID    *uuid.UUID
}

// DeliveryEvent is the outbox payload for delivery_created and delivery_status_changed.
type DeliveryEvent struct {
	DeliveryID     uuid.UUID            `json:"deliveryId"`
	OrderID        uuid.UUID            `json:"orderId"`
	PreviousStatus enums.DeliveryStatus `json:"previousStatus,omitempty"`
	Status         enums.DeliveryStatus `json:"status"`
	TrackingNumber *string              `json:"trackingNumber,omitempty"`
	Carrier        *string              `json:"carrier,omitempty"`
}

type ServiceParams struct {
	Repository Repository
	Orders     orders.Repository
	Mirror     orderMirror
	DB         txRunner
	Outbox     outboxPublisher
	Logger     *logger.Logger
	Metrics    *metrics.LifecycleMetrics
}

type service struct {
	repo    Repository
	orders  orders.Repository
	mirror  orderMirror
	tx      txRunner
	outbox  outboxPublisher
	logg    *logger.Logger
	metrics *metrics.LifecycleMetrics
	now     func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("deliveries repository required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Mirror == nil {
		return nil, fmt.Errorf("order status mirror required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:    params.Repository,
		orders:  params.Orders,
		mirror:  params.Mirror,
		tx:      params.DB,
		outbox:  params.Outbox,
		logg:    params.Logger,
		metrics: params.Metrics,
		now:     time.Now,
	}, nil
}

// CreateDelivery opens the single delivery of an order that is processing or shipped.
func (s *service) CreateDelivery(ctx context.Context, input CreateDeliveryInput) (*models.Delivery, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var created *models.Delivery
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		order, err := s.orders.WithTx(tx).Locked().FindByID(ctx, input.OrderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return orders.ErrOrderNotFound.Derive(fmt.Sprintf("order %s not found", input.OrderID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.Status != enums.OrderStatusProcessing && order.Status != enums.OrderStatusShipped {
			return ErrInvalidOrderState.
				Derive(fmt.Sprintf("order %s is %s; deliveries require processing or shipped", order.ID, order.Status)).
				WithDetails(map[string]any{"order_id": order.ID.String(), "status": order.Status.String()})
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByOrderID(ctx, order.ID); err == nil {
			return alreadyExists(order.ID)
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing delivery")
		}

		delivery := &models.Delivery{
			OrderID:               order.ID,
			Status:                enums.DeliveryStatusPreparing,
			Carrier:               trimmed(input.Carrier),
			EstimatedDeliveryDate: input.EstimatedDeliveryDate,
			Notes:                 trimmed(input.Notes),
		}
		if err := repo.Create(ctx, delivery); err != nil {
			if db.IsUniqueViolation(err, "") {
				return alreadyExists(order.ID)
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create delivery")
		}

		if err := s.emit(ctx, tx, enums.EventDeliveryCreated, delivery, "", input.ActorUserID); err != nil {
			return err
		}
		created = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveryTransition("none", created.Status.String())
	logCtx := s.logg.WithDeliveryID(s.logg.WithOrderID(ctx, created.OrderID.String()), created.ID.String())
	s.logg.Info(logCtx, "delivery created")
	return created, nil
}

// UpdateStatus moves a delivery along its table and mirrors shipped and
// delivered onto the order in the same transaction.
func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Delivery, error) {
	if input.DeliveryID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown delivery status %q", input.Status))
	}

	var (
		updated *models.Delivery
		from    enums.DeliveryStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		delivery, err := repo.Locked().FindByID(ctx, input.DeliveryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrDeliveryNotFound.Derive(fmt.Sprintf("delivery %s not found", input.DeliveryID))
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
		}
		from = delivery.Status
		if err := ValidateTransition(from, input.Status); err != nil {
			return err
		}

		now := s.now().UTC()
		delivery.Status = input.Status
		if tracking := trimmed(input.TrackingNumber); tracking != nil {
			delivery.TrackingNumber = tracking
		}
		switch input.Status {
		case enums.DeliveryStatusShipped:
			if delivery.ShippedAt == nil {
				delivery.ShippedAt = &now
			}
		case enums.DeliveryStatusDelivered:
			if delivery.DeliveredAt == nil {
				delivery.DeliveredAt = &now
			}
		}

		if err := repo.Update(ctx, delivery); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update delivery status")
		}
		if orderStatus, ok := mirroredOrderStatus(input.Status); ok {
			if err := s.mirror.ApplyDeliveryStatus(ctx, tx, delivery.OrderID, orderStatus); err != nil {
				if errors.Is(err, orders.ErrInvalidStatusTransition) {
					return ErrInvalidDeliveryStatusTransition.
						Derive(fmt.Sprintf("cannot transition delivery from '%s' to '%s': order rejected the move", from, input.Status)).
						WithDetails(map[string]any{"from": from.String(), "to": input.Status.String(), "order_id": delivery.OrderID.String()}).
						WithCause(err)
				}
				return err
			}
		}
		if err := s.emit(ctx, tx, enums.EventDeliveryStatusChanged, delivery, from, input.ActorUserID); err != nil {
			return err
		}
		updated = delivery
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.DeliveryTransition(from.String(), updated.Status.String())
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"delivery_id": updated.ID.String(),
		"order_id":    updated.OrderID.String(),
		"from":        from.String(),
		"to":          updated.Status.String(),
	})
	s.logg.Info(logCtx, "delivery status updated")
	return updated, nil
}

func (s *service) GetDelivery(ctx context.Context, deliveryID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByID(ctx, deliveryID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound.Derive(fmt.Sprintf("delivery %s not found", deliveryID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) GetDeliveryByOrder(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	delivery, err := s.repo.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrDeliveryNotFound.Derive(fmt.Sprintf("no delivery for order %s", orderID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load delivery")
	}
	return delivery, nil
}

func (s *service) emit(ctx context.Context, tx *gorm.DB, eventType enums.OutboxEventType, delivery *models.Delivery, from enums.DeliveryStatus, actor *uuid.UUID) error {
	return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateDelivery,
		AggregateID:   delivery.ID,
		Version:       1,
		Actor:         &outbox.ActorRef{UserID: actor, Source: outbox.SourceStaff},
		Data: DeliveryEvent{
			DeliveryID:     delivery.ID,
			OrderID:        delivery.OrderID,
			PreviousStatus: from,
			Status:         delivery.Status,
			TrackingNumber: delivery.TrackingNumber,
			Carrier:        delivery.Carrier,
		},
	})
}

func alreadyExists(orderID uuid.UUID) error {
	return ErrDeliveryAlreadyExists.
		Derive(fmt.Sprintf("order %s already has a delivery", orderID)).
		WithDetails(map[string]any{"order_id": orderID.String()})
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}
