package products

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	pkgerrors "github.com/angelmondragon/orderflow-backend/pkg/errors"
)

// StockLine is a quantity of one product moving in or out of stock.
type StockLine struct {
	ProductID uuid.UUID
	Quantity  int
}

// Ledger reserves and releases stock inside the caller's transaction.
type Ledger interface {
	Reserve(ctx context.Context, tx *gorm.DB, lines []StockLine) error
	Release(ctx context.Context, tx *gorm.DB, lines []StockLine) error
}

type ledger struct{}

// NewLedger exposes the default stock ledger implementation.
func NewLedger() Ledger {
	return ledger{}
}

// Reserve decrements stock for every line. Lines are applied in product id
// order so concurrent reservations lock rows in the same sequence. The first
// failure is returned and the caller is expected to roll back.
func (ledger) Reserve(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock reservation")
	}
	repo := NewRepository(tx)
	for _, line := range MergeLines(lines) {
		if line.Quantity <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("quantity for product %s must be at least 1", line.ProductID))
		}
		if err := repo.AdjustStock(ctx, line.ProductID, -line.Quantity); err != nil {
			return err
		}
	}
	return nil
}

// Release returns stock for every line. Each line runs under its own savepoint
// so one failure neither aborts the enclosing transaction nor skips the rest.
func (ledger) Release(ctx context.Context, tx *gorm.DB, lines []StockLine) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock release")
	}
	var errs error
	for _, line := range MergeLines(lines) {
		if line.Quantity <= 0 {
			continue
		}
		err := tx.WithContext(ctx).Transaction(func(sp *gorm.DB) error {
			return NewRepository(sp).AdjustStock(ctx, line.ProductID, line.Quantity)
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("release product %s: %w", line.ProductID, err))
		}
	}
	return errs
}

// MergeLines sums quantities per product and sorts the result by product id.
func MergeLines(lines []StockLine) []StockLine {
	totals := make(map[uuid.UUID]int, len(lines))
	order := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		if _, seen := totals[line.ProductID]; !seen {
			order = append(order, line.ProductID)
		}
		totals[line.ProductID] += line.Quantity
	}
	sort.Slice(order, func(i, j int) bool {
		return bytes.Compare(order[i][:], order[j][:]) < 0
	})
	merged := make([]StockLine, 0, len(order))
	for _, id := range order {
		merged = append(merged, StockLine{ProductID: id, Quantity: totals[id]})
	}
	return merged
}
