package deliveries

import "github.com/angelmondragon/orderflow-backend/pkg/enums"

var deliveryTransitions = map[enums.DeliveryStatus][]enums.DeliveryStatus{
	enums.DeliveryStatusPreparing:      {enums.DeliveryStatusShipped, enums.DeliveryStatusFailed},
	enums.DeliveryStatusShipped:        {enums.DeliveryStatusInTransit, enums.DeliveryStatusFailed},
	enums.DeliveryStatusInTransit:      {enums.DeliveryStatusOutForDelivery, enums.DeliveryStatusFailed},
	enums.DeliveryStatusOutForDelivery: {enums.DeliveryStatusDelivered, enums.DeliveryStatusFailed},
	enums.DeliveryStatusDelivered:      {},
	enums.DeliveryStatusFailed:         {enums.DeliveryStatusPreparing},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to enums.DeliveryStatus) bool {
	for _, next := range deliveryTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func ValidateTransition(from, to enums.DeliveryStatus) error {
	if !to.IsValid() || !CanTransition(from, to) {
		return invalidTransition(from, to)
	}
	return nil
}

// mirroredOrderStatus returns the order status a delivery status drives, if any.
func mirroredOrderStatus(status enums.DeliveryStatus) (enums.OrderStatus, bool) {
	switch status {
	case enums.DeliveryStatusShipped:
		return enums.OrderStatusShipped, true
	case enums.DeliveryStatusDelivered:
		return enums.OrderStatusDelivered, true
	default:
		return "", false
	}
}
