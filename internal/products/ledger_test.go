package products

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/orderflow-backend/pkg/db/dbtest"
)

func TestReserveRollsBackWithTransaction(t *testing.T) {
	client := dbtest.Open(t)
	plenty := dbtest.MustCreateProduct(t, client.DB(), "5.00", 10)
	scarce := dbtest.MustCreateProduct(t, client.DB(), "5.00", 1)
	ledger := NewLedger()
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []StockLine{
			{ProductID: plenty.ID, Quantity: 3},
			{ProductID: scarce.ID, Quantity: 2},
		})
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInsufficientStock))
	assert.Equal(t, 10, dbtest.StockOf(t, client.DB(), plenty.ID))
	assert.Equal(t, 1, dbtest.StockOf(t, client.DB(), scarce.ID))
}

func TestReserveMergesDuplicateLines(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.MustCreateProduct(t, client.DB(), "5.00", 5)
	ledger := NewLedger()
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return ledger.Reserve(ctx, tx, []StockLine{
			{ProductID: product.ID, Quantity: 2},
			{ProductID: product.ID, Quantity: 2},
		})
	})
	require.NoError(t, err)
	assert.Equal(t, 1, dbtest.StockOf(t, client.DB(), product.ID))
}

func TestSecondReservationOfLastUnitFails(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.MustCreateProduct(t, client.DB(), "5.00", 1)
	ledger := NewLedger()
	ctx := context.Background()
	lines := []StockLine{{ProductID: product.ID, Quantity: 1}}

	reserve := func() error {
		return client.WithTx(ctx, func(tx *gorm.DB) error {
			return ledger.Reserve(ctx, tx, lines)
		})
	}
	require.NoError(t, reserve())
	assert.True(t, errors.Is(reserve(), ErrInsufficientStock))
	assert.Equal(t, 0, dbtest.StockOf(t, client.DB(), product.ID))
}

func TestReserveRejectsNonPositiveQuantity(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.MustCreateProduct(t, client.DB(), "5.00", 5)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return NewLedger().Reserve(ctx, tx, []StockLine{{ProductID: product.ID, Quantity: 0}})
	})
	require.Error(t, err)
	assert.Equal(t, 5, dbtest.StockOf(t, client.DB(), product.ID))
}

func TestReleaseContinuesPastMissingProduct(t *testing.T) {
	client := dbtest.Open(t)
	product := dbtest.MustCreateProduct(t, client.DB(), "5.00", 0)
	ctx := context.Background()

	var releaseErr error
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		releaseErr = NewLedger().Release(ctx, tx, []StockLine{
			{ProductID: uuid.New(), Quantity: 1},
			{ProductID: product.ID, Quantity: 2},
		})
		return nil
	})
	require.NoError(t, err)
	require.Error(t, releaseErr)
	assert.True(t, errors.Is(releaseErr, ErrProductNotFound))
	assert.Equal(t, 2, dbtest.StockOf(t, client.DB(), product.ID))
}

func TestLedgerRequiresTransaction(t *testing.T) {
	ledger := NewLedger()
	assert.Error(t, ledger.Reserve(context.Background(), nil, nil))
	assert.Error(t, ledger.Release(context.Background(), nil, nil))
}

func TestMergeLinesSortsByProductID(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	b := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	merged := MergeLines([]StockLine{{ProductID: b, Quantity: 1}, {ProductID: a, Quantity: 2}, {ProductID: b, Quantity: 3}})
	require.Len(t, merged, 2)
	assert.Equal(t, StockLine{ProductID: a, Quantity: 2}, merged[0])
	assert.Equal(t, StockLine{ProductID: b, Quantity: 4}, merged[1])
}
