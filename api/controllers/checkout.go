package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Checkout turns the submitted lines into a pending order and returns the
// client secret needed to confirm payment.
func Checkout(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items := make([]checkoutsvc.ItemInput, 0, len(payload.Items))
		for _, item := range payload.Items {
			items = append(items, checkoutsvc.ItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
		}

		result, err := svc.Checkout(r.Context(), checkoutsvc.Input{
			UserID:          middleware.UserIDFromContext(r.Context()),
			Items:           items,
			ShippingAddress: payload.ShippingAddress,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, checkoutResponse{
			OrderID:      result.OrderID,
			ClientSecret: result.ClientSecret,
			TotalAmount:  result.TotalAmount.StringFixed(2),
			Currency:     string(result.Currency),
		})
	}
}

type checkoutRequest struct {
	Items           []checkoutItemRequest `json:"items" validate:"required,min=1,dive"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
}

type checkoutItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type checkoutResponse struct {
	OrderID      uuid.UUID `json:"orderId"`
	ClientSecret string    `json:"clientSecret"`
	TotalAmount  string    `json:"totalAmount"`
	Currency     string    `json:"currency"`
}
