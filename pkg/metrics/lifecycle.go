package metrics

import "github.com/prometheus/client_golang/prometheus"

// LifecycleMetrics counts order and delivery state changes.
type LifecycleMetrics struct {
	orderTransitions    *prometheus.CounterVec
	deliveryTransitions *prometheus.CounterVec
	checkouts           *prometheus.CounterVec
	webhookEvents       *prometheus.CounterVec
	sweptOrders         prometheus.Counter
}

// NewLifecycleMetrics registers the lifecycle counters on the provided registerer.
func NewLifecycleMetrics(reg prometheus.Registerer) *LifecycleMetrics {
	if reg == nil {
		return &LifecycleMetrics{}
	}
	m := &LifecycleMetrics{
		orderTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Applied order status transitions.",
		}, []string{"from", "to", "source"}),
		deliveryTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_transitions_total",
			Help:      "Applied delivery status transitions.",
		}, []string{"from", "to"}),
		checkouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checkouts_total",
			Help:      "Checkout attempts by outcome.",
		}, []string{"outcome"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_webhook_events_total",
			Help:      "Verified payment webhook events by type and outcome.",
		}, []string{"type", "outcome"}),
		sweptOrders: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_timeout_cancelled_total",
			Help:      "Orders cancelled by the payment timeout sweep.",
		}),
	}
	reg.MustRegister(m.orderTransitions, m.deliveryTransitions, m.checkouts, m.webhookEvents, m.sweptOrders)
	return m
}

func (m *LifecycleMetrics) OrderTransition(from, to, source string) {
	if m == nil || m.orderTransitions == nil {
		return
	}
	m.orderTransitions.WithLabelValues(from, to, normalizeLabel(source)).Inc()
}

func (m *LifecycleMetrics) DeliveryTransition(from, to string) {
	if m == nil || m.deliveryTransitions == nil {
		return
	}
	m.deliveryTransitions.WithLabelValues(from, to).Inc()
}

func (m *LifecycleMetrics) Checkout(outcome string) {
	if m == nil || m.checkouts == nil {
		return
	}
	m.checkouts.WithLabelValues(normalizeLabel(outcome)).Inc()
}

func (m *LifecycleMetrics) WebhookEvent(eventType, outcome string) {
	if m == nil || m.webhookEvents == nil {
		return
	}
	m.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}

func (m *LifecycleMetrics) OrdersSwept(count int) {
	if m == nil || m.sweptOrders == nil || count <= 0 {
		return
	}
	m.sweptOrders.Add(float64(count))
}
