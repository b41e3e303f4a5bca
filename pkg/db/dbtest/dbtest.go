// Package dbtest opens throwaway sqlite databases carrying the full schema.
package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db"
	"github.com/angelmondragon/orderflow-backend/pkg/db/models"
)

// Open returns a client over a private in-memory database. Timestamps are UTC
// so range queries compare consistently with test cutoffs.
func Open(t *testing.T) *db.Client {
	t.Helper()

	dsn := "file:orderflow_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		NowFunc:                func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Product{},
		&models.Order{},
		&models.OrderItem{},
		&models.Delivery{},
		&models.OutboxEvent{},
	); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db.FromGorm(conn)
}

// MustCreateProduct inserts an active product with the given price and stock.
func MustCreateProduct(t *testing.T, conn *gorm.DB, price string, stock int) *models.Product {
	t.Helper()
	product := &models.Product{
		Name:     "Test Product " + uuid.NewString()[:8],
		Price:    decimal.RequireFromString(price),
		Stock:    stock,
		IsActive: true,
	}
	if err := conn.Create(product).Error; err != nil {
		t.Fatalf("create product: %v", err)
	}
	return product
}

// StockOf reloads the current stock for productID.
func StockOf(t *testing.T, conn *gorm.DB, productID uuid.UUID) int {
	t.Helper()
	var product models.Product
	if err := conn.First(&product, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	return product.Stock
}
