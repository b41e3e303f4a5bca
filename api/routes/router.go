package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/orderflow-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/orderflow-backend/api/controllers/webhooks"
	"github.com/angelmondragon/orderflow-backend/api/middleware"
	checkoutsvc "github.com/angelmondragon/orderflow-backend/internal/checkout"
	"github.com/angelmondragon/orderflow-backend/internal/deliveries"
	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
)

// RouterParams carries the services behind the HTTP surface. Nil services
// answer 500 on their routes. Metrics defaults to the process registry.
type RouterParams struct {
	Logger         *logger.Logger
	CORSOrigins    []string
	Health         map[string]controllers.Pinger
	Checkout       checkoutsvc.Service
	Orders         orders.Service
	Deliveries     deliveries.Service
	StripeWebhooks webhookcontrollers.StripeWebhookService
	Metrics        prometheus.Gatherer
}

func NewRouter(params RouterParams) http.Handler {
	logg := params.Logger
	gatherer := params.Metrics
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(params.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(params.Health, logg))
	})
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(params.StripeWebhooks, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))

		r.Post("/checkout", controllers.Checkout(params.Checkout, logg))
		r.Get("/orders", ordercontrollers.List(params.Orders, logg))
		r.Get("/orders/{orderId}", ordercontrollers.Detail(params.Orders, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.RequireRole(logg, middleware.RoleStaff))

		r.Patch("/orders/{orderId}/status", controllers.AdminUpdateOrderStatus(params.Orders, logg))
		r.Post("/orders/{orderId}/delivery", controllers.AdminCreateDelivery(params.Deliveries, logg))
		r.Get("/orders/{orderId}/delivery", controllers.AdminGetOrderDelivery(params.Deliveries, logg))
		r.Get("/deliveries/{deliveryId}", controllers.AdminGetDelivery(params.Deliveries, logg))
		r.Patch("/deliveries/{deliveryId}/status", controllers.AdminUpdateDeliveryStatus(params.Deliveries, logg))
	})

	return r
}
