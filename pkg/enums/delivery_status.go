package enums

// DeliveryStatus tracks the carrier side of an order.
type DeliveryStatus string

const (
	DeliveryStatusPreparing      DeliveryStatus = "preparing"
	DeliveryStatusShipped        DeliveryStatus = "shipped"
	DeliveryStatusInTransit      DeliveryStatus = "in_transit"
	DeliveryStatusOutForDelivery DeliveryStatus = "out_for_delivery"
	DeliveryStatusDelivered      DeliveryStatus = "delivered"
	DeliveryStatusFailed         DeliveryStatus = "failed"
)

var deliveryStatuses = []DeliveryStatus{
	DeliveryStatusPreparing,
	DeliveryStatusShipped,
	DeliveryStatusInTransit,
	DeliveryStatusOutForDelivery,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
}

func (d DeliveryStatus) String() string { return string(d) }

func (d DeliveryStatus) IsValid() bool { return known(deliveryStatuses, d) }

func ParseDeliveryStatus(value string) (DeliveryStatus, error) {
	return parse(deliveryStatuses, value, "delivery status")
}
