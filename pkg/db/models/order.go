package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/enums"
	"github.com/angelmondragon/orderflow-backend/pkg/types"
)

// Order is the aggregate root of a checkout. TotalAmount is fixed at creation.
type Order struct {
	ID                    uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	UserID                uuid.UUID             `gorm:"column:user_id;type:uuid;not null;index"`
	Status                enums.OrderStatus     `gorm:"column:status;type:text;not null;default:'pending'"`
	PaymentStatus         enums.PaymentStatus   `gorm:"column:payment_status;type:text;not null;default:'unpaid'"`
	TotalAmount           decimal.Decimal       `gorm:"column:total_amount;type:numeric(12,2);not null"`
	Currency              enums.Currency        `gorm:"column:currency;type:text;not null;default:'usd'"`
	StripePaymentIntentID *string               `gorm:"column:stripe_payment_intent_id;uniqueIndex:idx_orders_stripe_payment_intent_id,where:stripe_payment_intent_id IS NOT NULL"`
	ShippingAddress       types.ShippingAddress `gorm:"column:shipping_address;type:jsonb;serializer:json;not null"`
	Items                 []OrderItem           `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Delivery              *Delivery             `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	PaidAt                *time.Time            `gorm:"column:paid_at"`
	CanceledAt            *time.Time            `gorm:"column:canceled_at"`
	CreatedAt             time.Time             `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt             time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
