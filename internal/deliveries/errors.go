package deliveries

import (
	"fmt"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

var (
	ErrDeliveryNotFound                = pkgerrors.Sentinel(pkgerrors.CodeNotFound, "delivery_not_found", "delivery not found")
	ErrDeliveryAlreadyExists           = pkgerrors.Sentinel(pkgerrors.CodeConflict, "delivery_already_exists", "a delivery already exists for this order")
	ErrInvalidOrderState               = pkgerrors.Sentinel(pkgerrors.CodeConflict, "invalid_order_state", "order is not ready for delivery")
	ErrInvalidDeliveryStatusTransition = pkgerrors.Sentinel(pkgerrors.CodeInvalidTransition, "invalid_delivery_status_transition", "delivery status transition not allowed")
)

func invalidTransition(from, to enums.DeliveryStatus) *pkgerrors.Error {
	return ErrInvalidDeliveryStatusTransition.
		Derive(fmt.Sprintf("cannot transition delivery from '%s' to '%s'", from, to)).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
