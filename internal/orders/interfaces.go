package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	"github.com/angelmondragon/orderflow-backend/pkg/pagination"
)

// Repository defines persistence operations for orders and their items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	// Locked returns a repository whose single-order finds take a row lock.
	Locked() Repository
	Create(ctx context.Context, order *models.Order) error
	Update(ctx context.Context, order *models.Order) error
	SetPaymentIntent(ctx context.Context, orderID uuid.UUID, paymentIntentID string) error
	FindByID(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindWithRelations(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	FindByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Order, error)
	FindStaleUnpaid(ctx context.Context, cutoff time.Time, after *pagination.Cursor, limit int) ([]models.Order, error)
	// ListByUser returns up to limit orders newest first, starting after cursor when set.
	ListByUser(ctx context.Context, userID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Order, error)
	HasDelivery(ctx context.Context, orderID uuid.UUID) (bool, error)
}
