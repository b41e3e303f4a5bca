package checkout

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/orders"
	"github.com/angelmondragon/orderflow-backend/internal/products"
	pkgcheckout "github.com/angelmondragon/orderflow-backend/pkg/checkout"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
	"github.com/angelmondragon/orderflow-backend/pkg/logger"
	"github.com/angelmondragon/orderflow-backend/pkg/metrics"
	"github.com/angelmondragon/orderflow-backend/pkg/outbox"
	"github.com/angelmondragon/orderflow-backend/pkg/stripe"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

const (
	outcomeSuccess          = "success"
	outcomeRejected         = "rejected"
	outcomeReservation      = "reservation_failed"
	outcomeGateway          = "gateway_failed"
	outcomeAttach           = "attach_failed"
	outcomePersistenceError = "persistence_failed"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type productReader interface {
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type paymentGateway interface {
	CreatePaymentIntent(ctx context.Context, amount decimal.Decimal, currency enums.Currency, metadata map[string]string) (*stripe.PaymentIntent, error)
	CancelPaymentIntent(ctx context.Context, id string) error
}

// orderLifecycle is the slice of the order service checkout drives after the
// order row exists.
type orderLifecycle interface {
	AttachPaymentIntent(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error
	CompensateCheckout(ctx context.Context, orderID uuid.UUID) error
}

// Service executes checkout orchestration.
type Service interface {
	Checkout(ctx context.Context, input Input) (*Result, error)
}

type ItemInput struct {
	ProductID uuid.UUID
	Quantity  int
}

// Input is one checkout request on behalf of UserID.
type Input struct {
	UserID          uuid.UUID
	Items           []ItemInput
	ShippingAddress types.ShippingAddress
}

// Result is handed back to the client to confirm payment.
type Result struct {
	OrderID      uuid.UUID
	ClientSecret string
	TotalAmount  decimal.Decimal
	Currency     enums.Currency
}

type ServiceParams struct {
	DB        txRunner
	Products  productReader
	Orders    orders.Repository
	Lifecycle orderLifecycle
	Ledger    products.Ledger
	Gateway   paymentGateway
	Outbox    outboxPublisher
	Currency  enums.Currency
	Logger    *logger.Logger
	Metrics   *metrics.LifecycleMetrics
}

type service struct {
	tx        txRunner
	products  productReader
	orders    orders.Repository
	lifecycle orderLifecycle
	ledger    products.Ledger
	gateway   paymentGateway
	outbox    outboxPublisher
	currency  enums.Currency
	logg      *logger.Logger
	metrics   *metrics.LifecycleMetrics
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product reader required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Lifecycle == nil {
		return nil, fmt.Errorf("order lifecycle required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	currency := params.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, fmt.Errorf("unsupported checkout currency %q", currency)
	}
	return &service{
		tx:        params.DB,
		products:  params.Products,
		orders:    params.Orders,
		lifecycle: params.Lifecycle,
		ledger:    params.Ledger,
		gateway:   params.Gateway,
		outbox:    params.Outbox,
		currency:  currency,
		logg:      params.Logger,
		metrics:   params.Metrics,
	}, nil
}

// Checkout prices the request, persists the order and its stock reservation
// in one transaction, then opens a payment intent. Failures after the commit
// cancel the order and release its stock.
func (s *service) Checkout(ctx context.Context, input Input) (*Result, error) {
	lines, address, err := s.validate(input)
	if err != nil {
		s.metrics.Checkout(outcomeRejected)
		return nil, err
	}

	catalog, err := s.products.FindByIDs(ctx, productIDs(lines))
	if err != nil {
		s.metrics.Checkout(outcomePersistenceError)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	order, err := s.priceOrder(input.UserID, lines, catalog, address)
	if err != nil {
		s.metrics.Checkout(outcomeRejected)
		return nil, err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		if err := s.ledger.Reserve(ctx, tx, orders.StockLines(order.Items)); err != nil {
			return err
		}
		actor := &outbox.ActorRef{UserID: &order.UserID, Source: outbox.SourceCheckout}
		return s.outbox.Emit(ctx, tx, orders.NewOrderCreatedEvent(order, actor))
	})
	if err != nil {
		if errors.Is(err, products.ErrInsufficientStock) || errors.Is(err, products.ErrProductNotFound) {
			s.metrics.Checkout(outcomeReservation)
		} else {
			s.metrics.Checkout(outcomePersistenceError)
		}
		return nil, err
	}

	logCtx := s.logg.WithUserID(s.logg.WithOrderID(ctx, order.ID.String()), order.UserID.String())

	intent, err := s.gateway.CreatePaymentIntent(ctx, order.TotalAmount, order.Currency, map[string]string{
		stripe.MetadataOrderID: order.ID.String(),
	})
	if err != nil {
		s.logg.Error(logCtx, "payment intent creation failed", err)
		s.compensate(ctx, logCtx, order.ID, "")
		s.metrics.Checkout(outcomeGateway)
		return nil, err
	}

	if err := s.lifecycle.AttachPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		s.logg.Error(logCtx, "attach payment intent failed", err)
		s.compensate(ctx, logCtx, order.ID, intent.ID)
		s.metrics.Checkout(outcomeAttach)
		return nil, err
	}

	s.metrics.Checkout(outcomeSuccess)
	s.logg.Info(s.logg.WithField(logCtx, "total_amount", order.TotalAmount.StringFixed(2)), "checkout completed")
	return &Result{
		OrderID:      order.ID,
		ClientSecret: intent.ClientSecret,
		TotalAmount:  order.TotalAmount,
		Currency:     order.Currency,
	}, nil
}

func (s *service) validate(input Input) ([]pkgcheckout.LineItem, types.ShippingAddress, error) {
	if input.UserID == uuid.Nil {
		return nil, types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	raw := make([]pkgcheckout.LineItem, 0, len(input.Items))
	for _, item := range input.Items {
		raw = append(raw, pkgcheckout.LineItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	lines, err := pkgcheckout.NormalizeLines(raw)
	if err != nil {
		return nil, types.ShippingAddress{}, err
	}
	address := input.ShippingAddress.Normalize()
	if missing := address.MissingFields(); len(missing) > 0 {
		return nil, types.ShippingAddress{}, pkgerrors.New(pkgerrors.CodeValidation, "shipping address incomplete").WithDetails(map[string]any{
			"missing": missing,
		})
	}
	return lines, address, nil
}

// priceOrder snapshots the current catalog price of every line. Stock is
// checked here for a precise error and enforced again by the ledger.
func (s *service) priceOrder(userID uuid.UUID, lines []pkgcheckout.LineItem, catalog map[uuid.UUID]models.Product, address types.ShippingAddress) (*models.Order, error) {
	total := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	var shortfalls []pkgcheckout.StockShortfallDetail
	for _, line := range lines {
		product, ok := catalog[line.ProductID]
		if !ok {
			return nil, products.ErrProductNotFound.
				Derive(fmt.Sprintf("product %s not found", line.ProductID)).
				WithDetails(map[string]any{"product_id": line.ProductID.String()})
		}
		if !product.IsActive {
			return nil, products.ErrProductInactive.
				Derive(fmt.Sprintf("product %s is not available", product.ID)).
				WithDetails(map[string]any{"product_id": product.ID.String()})
		}
		if line.Quantity > product.Stock {
			shortfalls = append(shortfalls, pkgcheckout.StockShortfallDetail{
				ProductID: product.ID,
				Requested: line.Quantity,
				Available: product.Stock,
			})
			continue
		}
		item := models.OrderItem{
			ProductID: product.ID,
			Quantity:  line.Quantity,
			UnitPrice: product.Price,
		}
		total = total.Add(item.LineTotal())
		items = append(items, item)
	}
	if len(shortfalls) > 0 {
		return nil, products.ErrInsufficientStock.
			Derive(fmt.Sprintf("insufficient stock for %d product(s)", len(shortfalls))).
			WithDetails(map[string]any{"shortfalls": shortfalls})
	}
	if !total.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order total must be positive")
	}

	return &models.Order{
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusUnpaid,
		TotalAmount:     total.Round(2),
		Currency:        s.currency,
		ShippingAddress: address,
		Items:           items,
	}, nil
}

// compensate cancels a committed checkout. Failures are logged; the timeout
// sweep picks up anything left unpaid.
func (s *service) compensate(ctx, logCtx context.Context, orderID uuid.UUID, intentID string) {
	if intentID != "" {
		if err := s.gateway.CancelPaymentIntent(ctx, intentID); err != nil {
			s.logg.Error(logCtx, "cancel payment intent during compensation failed", err)
		}
	}
	if err := s.lifecycle.CompensateCheckout(ctx, orderID); err != nil {
		s.logg.Error(logCtx, "checkout compensation failed; order left for timeout sweep", err)
	}
}

func productIDs(lines []pkgcheckout.LineItem) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}
