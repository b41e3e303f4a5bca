package controllers

import (
	"net/http"
	"time"

	"github.com/angelmondragon/orderflow-backend/api/controllers/orders"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	"github.com/angelmondragon/orderflow-backend/api/responses"
	"github.com/angelmondragon/orderflow-backend/api/validators"
	"github.com/angelmondragon/orderflow-backend/internal/deliveries"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

type createDeliveryRequest struct {
	Carrier               *string    `json:"carrier,omitempty" validate:"omitempty,max=100"`
	EstimatedDeliveryDate *time.Time `json:"estimatedDeliveryDate,omitempty"`
	Notes                 *string    `json:"notes,omitempty" validate:"omitempty,max=1000"`
}

type deliveryStatusRequest struct {
	Status         string  `json:"status" validate:"required"`
	TrackingNumber *string `json:"trackingNumber,omitempty" validate:"omitempty,max=100"`
}

// AdminCreateDelivery opens the delivery for a processing or shipped order.
func AdminCreateDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload createDeliveryRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		actor := middleware.UserIDFromContext(r.Context())
		delivery, err := svc.CreateDelivery(r.Context(), deliveries.CreateDeliveryInput{
			OrderID:               orderID,
			Carrier:               payload.Carrier,
			EstimatedDeliveryDate: payload.EstimatedDeliveryDate,
			Notes:                 payload.Notes,
			ActorUserID:           &actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, orders.NewDeliveryResponse(delivery))
	}
}

// AdminUpdateDeliveryStatus advances a delivery and mirrors milestones onto
// its order.
func AdminUpdateDeliveryStatus(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		deliveryID, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload deliveryStatusRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseDeliveryStatus(payload.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid delivery status"))
			return
		}

		actor := middleware.UserIDFromContext(r.Context())
		delivery, err := svc.UpdateStatus(r.Context(), deliveries.UpdateStatusInput{
			DeliveryID:     deliveryID,
			Status:         status,
			TrackingNumber: payload.TrackingNumber,
			ActorUserID:    &actor,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewDeliveryResponse(delivery))
	}
}

// AdminGetDelivery returns one delivery by id.
func AdminGetDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		deliveryID, err := validators.PathUUID(r, "deliveryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.GetDelivery(r.Context(), deliveryID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewDeliveryResponse(delivery))
	}
}

// AdminGetOrderDelivery returns the delivery opened for an order.
func AdminGetOrderDelivery(svc deliveries.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "deliveries service unavailable"))
			return
		}

		orderID, err := validators.PathUUID(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		delivery, err := svc.GetDeliveryByOrder(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, orders.NewDeliveryResponse(delivery))
	}
}
