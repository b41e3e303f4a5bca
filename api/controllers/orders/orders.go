package orders

import (
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	internalorders "github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// OrderListResponse is one page of the caller's orders.
type OrderListResponse struct {
	Orders     []OrderResponse `json:"orders"`
	NextCursor string          `json:"nextCursor,omitempty"`
}

// List returns the caller's orders, newest first, one cursor page at a time.
func List(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		userID := middleware.UserIDFromContext(r.Context())
		page, err := svc.ListUserOrders(r.Context(), userID, pagination.Params{
			Limit:  limit,
			Cursor: r.URL.Query().Get("cursor"),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := OrderListResponse{Orders: make([]OrderResponse, 0, len(page.Orders)), NextCursor: page.NextCursor}
		for i := range page.Orders {
			out.Orders = append(out.Orders, NewOrderResponse(&page.Orders[i]))
		}
		responses.WriteSuccess(w, out)
	}
}

// Detail returns one order with its items and delivery. Orders owned by
// someone else read as not found unless the caller is staff.
func Detail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.GetOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		caller := middleware.UserIDFromContext(r.Context())
		if order.UserID != caller && middleware.RoleFromContext(r.Context()) != middleware.RoleStaff {
			responses.WriteError(r.Context(), logg, w, internalorders.ErrOrderNotFound.Derive(fmt.Sprintf("order %s not found", orderID)))
			return
		}

		responses.WriteSuccess(w, NewOrderResponse(order))
	}
}

type OrderResponse struct {
	ID                    uuid.UUID             `json:"id"`
	UserID                uuid.UUID             `json:"userId"`
	Status                string                `json:"status"`
	PaymentStatus         string                `json:"paymentStatus"`
	TotalAmount           string                `json:"totalAmount"`
	Currency              string                `json:"currency"`
	StripePaymentIntentID *string               `json:"stripePaymentIntentId,omitempty"`
	ShippingAddress       types.ShippingAddress `json:"shippingAddress"`
	Items                 []OrderItemResponse   `json:"items,omitempty"`
	Delivery              *DeliveryResponse     `json:"delivery,omitempty"`
	PaidAt                *time.Time            `json:"paidAt,omitempty"`
	CanceledAt            *time.Time            `json:"canceledAt,omitempty"`
	CreatedAt             time.Time             `json:"createdAt"`
	UpdatedAt             time.Time             `json:"updatedAt"`
}

type OrderItemResponse struct {
	ID        uuid.UUID `json:"id"`
	ProductID uuid.UUID `json:"productId"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unitPrice"`
	LineTotal string    `json:"lineTotal"`
}

type DeliveryResponse struct {
	ID                    uuid.UUID  `json:"id"`
	OrderID               uuid.UUID  `json:"orderId"`
	Status                string     `json:"status"`
	TrackingNumber        *string    `json:"trackingNumber,omitempty"`
	Carrier               *string    `json:"carrier,omitempty"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	ShippedAt             *time.Time `json:"shippedAt,omitempty"`
	DeliveredAt           *time.Time `json:"deliveredAt,omitempty"`
	Notes                 *string    `json:"notes,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
	UpdatedAt             time.Time  `json:"updatedAt"`
}

// NewOrderResponse renders money as fixed two-decimal strings.
func NewOrderResponse(order *models.Order) OrderResponse {
	if order == nil {
		return OrderResponse{}
	}
	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemResponse{
			ID:        item.ID,
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice.StringFixed(2),
			LineTotal: item.LineTotal().StringFixed(2),
		})
	}
	var delivery *DeliveryResponse
	if order.Delivery != nil {
		d := NewDeliveryResponse(order.Delivery)
		delivery = &d
	}
	return OrderResponse{
		ID:                    order.ID,
		UserID:                order.UserID,
		Status:                order.Status.String(),
		PaymentStatus:         order.PaymentStatus.String(),
		TotalAmount:           order.TotalAmount.StringFixed(2),
		Currency:              string(order.Currency),
		StripePaymentIntentID: order.StripePaymentIntentID,
		ShippingAddress:       order.ShippingAddress,
		Items:                 items,
		Delivery:              delivery,
		PaidAt:                order.PaidAt,
		CanceledAt:            order.CanceledAt,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
}

func NewDeliveryResponse(delivery *models.Delivery) DeliveryResponse {
	if delivery == nil {
		return DeliveryResponse{}
	}
	return DeliveryResponse{
		ID:                    delivery.ID,
		OrderID:               delivery.OrderID,
		Status:                delivery.Status.String(),
		TrackingNumber:        delivery.TrackingNumber,
		Carrier:               delivery.Carrier,
		EstimatedDeliveryDate: delivery.EstimatedDeliveryDate,
		ShippedAt:             delivery.ShippedAt,
		DeliveredAt:           delivery.DeliveredAt,
		Notes:                 delivery.Notes,
		CreatedAt:             delivery.CreatedAt,
		UpdatedAt:             delivery.UpdatedAt,
	}
}
