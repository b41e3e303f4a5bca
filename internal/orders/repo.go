package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/repo"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

type repository struct {
	repo.Base
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{Base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{Base: r.Bind(tx)}
}

func (r *repository) Locked() Repository {
	return &repository{Base: r.Lock()}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.DB(ctx).Create(order).Error
}

// Update persists the lifecycle columns of order. Items and totals are never rewritten.
func (r *repository) Update(ctx context.Context, order *models.Order) error {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ?", order.ID).
		Updates(map[string]any{
			"status":         order.Status,
			"payment_status": order.PaymentStatus,
			"paid_at":        order.PaidAt,
			"canceled_at":    order.CanceledAt,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetPaymentIntent(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error {
	res := r.DB(ctx).Model(&models.Order{}).
		Where("id = ?", orderID).
		Updates(map[string]any{
			"stripe_payment_intent_id": paymentIntentID,
			"updated_at":               time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// FindByID loads the order and its items. Items are read in a second query so
// a row lock only ever targets the orders table.
func (r *repository) FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.Single(ctx).Where("id = ?", orderID).First(&order).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	if err := r.Single(ctx).Where("stripe_payment_intent_id = ?", paymentIntentID).First(&order).Error; err != nil {
		return nil, err
	}
	return r.withItems(ctx, &order)
}

func (r *repository) withItems(ctx context.Context, order *models.Order) (*models.Order, error) {
	if err := r.DB(ctx).
		Where("order_id = ?", order.ID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) FindWithRelations(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Delivery").
		Where("id = ?", orderID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// FindStaleUnpaid lists unpaid orders created before cutoff that can still be
// cancelled and have no delivery, oldest first. after continues a previous
// page on (created_at, id).
func (r *repository) FindStaleUnpaid(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.DB(ctx).
		Where("payment_status = ?", enums.PaymentStatusUnpaid).
		Where("status IN ?", []string{enums.OrderStatusPending.String(), enums.OrderStatusProcessing.String()}).
		Where("created_at < ?", cutoff).
		Where("NOT EXISTS (SELECT 1 FROM deliveries WHERE deliveries.order_id = orders.id)")
	if after != nil {
		query = query.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	query = query.Order("created_at ASC").Order("id ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	var rows []models.Order
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error) {
	query := r.DB(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Preload("Delivery").
		Where("user_id = ?", userID)
	if cursor != nil {
		query = query.Where("(created_at < ? OR (created_at = ? AND id < ?))", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err := query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) HasDelivery(ctx context.Context, orderID uuid.UUID) (bool, error) {
	var count int64
	if err := r.DB(ctx).Model(&models.Delivery{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
