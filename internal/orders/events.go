package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
)

// OrderItemEvent is the item snapshot carried by order_created.
type OrderItemEvent struct {
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unitPrice"`
}

// OrderCreatedEvent is emitted in the checkout transaction.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID        `json:"orderId"`
	UserID      uuid.UUID        `json:"userId"`
	TotalAmount string           `json:"totalAmount"`
	Currency    enums.Currency   `json:"currency"`
	Items       []OrderItemEvent `json:"items"`
}

// OrderStatusEvent is emitted for every order transition.
type OrderStatusEvent struct {
	OrderID        uuid.UUID           `json:"orderId"`
	UserID         uuid.UUID           `json:"userId"`
	PreviousStatus enums.OrderStatus   `json:"previousStatus"`
	Status         enums.OrderStatus   `json:"status"`
	PaymentStatus  enums.PaymentStatus `json:"paymentStatus"`
	Source         outbox.Source       `json:"source"`
}

// NewOrderCreatedEvent builds the order_created outbox event for order.
func NewOrderCreatedEvent(order *models.Order, actor *outbox.ActorRef) outbox.DomainEvent {
	items := make([]OrderItemEvent, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemEvent{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
		})
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: OrderCreatedEvent{
			OrderID:     order.ID,
			UserID:      order.UserID,
			TotalAmount: order.TotalAmount.StringFixed(2),
			Currency:    order.Currency,
			Items:       items,
		},
	}
}

func statusEventType(from enums.OrderStatus, previousPayment enums.PaymentStatus, order *models.Order) enums.OutboxEventType {
	switch {
	case order.Status == enums.OrderStatusCancelled && from != enums.OrderStatusCancelled:
		return enums.EventOrderCanceled
	case order.PaymentStatus == enums.PaymentStatusPaid && previousPayment != enums.PaymentStatusPaid:
		return enums.EventOrderPaid
	default:
		return enums.EventOrderStatusChanged
	}
}
