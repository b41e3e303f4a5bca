package enums

// OutboxAggregateType names the aggregate an outbox row belongs to.
type OutboxAggregateType string

const (
	AggregateOrder    OutboxAggregateType = "order"
	AggregateDelivery OutboxAggregateType = "delivery"
)

var aggregateTypes = []OutboxAggregateType{AggregateOrder, AggregateDelivery}

func (a OutboxAggregateType) IsValid() bool { return known(aggregateTypes, a) }

func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parse(aggregateTypes, value, "aggregate type")
}

// OutboxEventType names a lifecycle event written to the outbox. The value is
// also the Pub/Sub "event_type" attribute.
type OutboxEventType string

const (
	EventOrderCreated          OutboxEventType = "order_created"
	EventOrderPaid             OutboxEventType = "order_paid"
	EventOrderCanceled         OutboxEventType = "order_canceled"
	EventOrderStatusChanged    OutboxEventType = "order_status_changed"
	EventDeliveryCreated       OutboxEventType = "delivery_created"
	EventDeliveryStatusChanged OutboxEventType = "delivery_status_changed"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated,
	EventOrderPaid,
	EventOrderCanceled,
	EventOrderStatusChanged,
	EventDeliveryCreated,
	EventDeliveryStatusChanged,
}

func (e OutboxEventType) IsValid() bool { return known(outboxEventTypes, e) }

func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parse(outboxEventTypes, value, "event type")
}
