package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
)

// Delivery tracks shipment of an order. At most one exists per order.
type Delivery struct {
	ID                    uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID               uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex:idx_deliveries_order_id"`
	Status                enums.DeliveryStatus `gorm:"column:status;type:text;not null;default:'preparing'"`
	TrackingNumber        *string              `gorm:"column:tracking_number"`
	Carrier               *string              `gorm:"column:carrier"`
	EstimatedDeliveryDate *time.Time           `gorm:"column:estimated_delivery_date"`
	ShippedAt             *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt           *time.Time           `gorm:"column:delivered_at"`
	Notes                 *string              `gorm:"column:notes"`
	CreatedAt             time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Delivery) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
