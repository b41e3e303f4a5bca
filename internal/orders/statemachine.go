package orders

import "github.com/angelmondragon/orderflow-backend/pkg/enums"

var orderTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusProcessing, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {},
	enums.OrderStatusCancelled:  {},
}

// IsTerminal reports whether no transition leaves status.
func IsTerminal(status enums.OrderStatus) bool {
	return len(orderTransitions[status]) == 0
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a staff, payment or sweeper driven change against the table.
func ValidateTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() || !CanTransition(from, to) {
		return invalidTransition(from, to)
	}
	return nil
}

// validateMirrorTransition checks a change driven by the delivery machine. The
// delivery table already sequenced the move, so only the terminal rule and the
// set of mirrored states apply.
func validateMirrorTransition(from, to enums.OrderStatus) error {
	if IsTerminal(from) {
		return invalidTransition(from, to)
	}
	switch to {
	case enums.OrderStatusShipped, enums.OrderStatusDelivered:
		return nil
	default:
		return invalidTransition(from, to)
	}
}
