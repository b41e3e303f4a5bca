package products

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/internal/repo"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// Repository persists products and moves their stock.
type Repository struct {
	repo.Base
}

// NewRepository builds a repository tied to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{Base: repo.NewBase(db)}
}

// WithTx returns a repository bound to the provided transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return NewRepository(tx)
}

func (r *Repository) Create(ctx context.Context, product *models.Product) (*models.Product, error) {
	if err := r.DB(ctx).Create(product).Error; err != nil {
		return nil, err
	}
	return product, nil
}

// FindByID loads a single product. Missing rows surface as gorm.ErrRecordNotFound.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// FindByIDs loads every product in ids keyed by id. Unknown ids are absent from the map.
func (r *Repository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	found := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	var rows []models.Product
	if err := r.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		found[row.ID] = row
	}
	return found, nil
}

// AdjustStock applies delta to the product stock in a single conditional
// statement. The row is only touched when the result stays non-negative.
func (r *Repository) AdjustStock(ctx context.Context, productID uuid.UUID, delta int) error {
	if delta == 0 {
		return nil
	}
	res := r.DB(ctx).Exec(`
		UPDATE products
		SET stock = stock + ?,
			updated_at = ?
		WHERE id = ? AND stock + ? >= 0
	`, delta, time.Now().UTC(), productID, delta)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "adjust product stock")
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var count int64
	if err := r.DB(ctx).Model(&models.Product{}).Where("id = ?", productID).Count(&count).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check product existence")
	}
	details := map[string]any{"product_id": productID.String()}
	if count == 0 {
		return ErrProductNotFound.Derive(fmt.Sprintf("product %s not found", productID)).WithDetails(details)
	}
	details["requested"] = -delta
	return ErrInsufficientStock.Derive(fmt.Sprintf("insufficient stock for product %s", productID)).WithDetails(details)
}
