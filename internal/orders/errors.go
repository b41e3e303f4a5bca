package orders

import (
	"fmt"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

var (
	ErrOrderNotFound           = pkgerrors.Sentinel(pkgerrors.CodeNotFound, "order_not_found", "order not found")
	ErrInvalidStatusTransition = pkgerrors.Sentinel(pkgerrors.CodeInvalidTransition, "invalid_status_transition", "order status transition not allowed")
	ErrPaymentIntentConflict   = pkgerrors.Sentinel(pkgerrors.CodeConflict, "payment_intent_conflict", "order already carries a different payment intent")
)

func invalidTransition(from, to enums.OrderStatus) *pkgerrors.Error {
	return ErrInvalidStatusTransition.
		Derive(fmt.Sprintf("cannot transition order from '%s' to '%s'", from, to)).
		WithDetails(map[string]any{"from": from.String(), "to": to.String()})
}
