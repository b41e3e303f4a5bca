package deliveries

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/repo"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Repository defines persistence operations for deliveries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Locked() Repository
	Create(ctx context.Context, delivery *models.Delivery) error
	Update(ctx context.Context, delivery *models.Delivery) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error)
	FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error)
}

type repository struct {
	repo.Base
}

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

func (r *repository) Create(ctx context.Context, delivery *models.Delivery) error {
	return r.DB(ctx).Create(delivery).Error
}

func (r *repository) Update(ctx context.Context, delivery *models.Delivery) error {
	res := r.DB(ctx).Model(&models.Delivery{}).
		Where("id = ?", delivery.ID).
		Updates(map[string]any{
			"status":          delivery.Status,
			"tracking_number": delivery.TrackingNumber,
			"shipped_at":      delivery.ShippedAt,
			"delivered_at":    delivery.DeliveredAt,
			"updated_at":      time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.Single(ctx).Where("id = ?", id).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}

func (r *repository) FindByOrderID(ctx context.Context, orderID uuid.UUID) (*models.Delivery, error) {
	var delivery models.Delivery
	if err := r.Single(ctx).Where("order_id = ?", orderID).First(&delivery).Error; err != nil {
		return nil, err
	}
	return &delivery, nil
}
