package enums

// OrderStatus tracks the lifecycle of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return known(orderStatuses, o) }

// ParseOrderStatus accepts any case and surrounding whitespace.
func ParseOrderStatus(value string) (OrderStatus, error) {
	return parse(orderStatuses, value, "order status")
}
