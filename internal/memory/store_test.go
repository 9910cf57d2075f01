package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seeded() *Store {
	s := NewStore()
	s.AddProduct(orders.Product{ID: "p1", SKU: "ANL-01", Name: "Anel", UnitPrice: decimal.RequireFromString("100"), StockQuantity: 5, IsActive: true})
	s.AddToCart("u1", "p1", 2)
	return s
}

func TestInTx_RollbackDiscardsWrites(t *testing.T) {
	s := seeded()
	boom := errors.New("boom")

	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		_, err := tx.DecrementStock(context.Background(), "p1", 2)
		require.NoError(t, err)
		_, err = tx.ClearCart(context.Background(), "u1")
		require.NoError(t, err)
		require.NoError(t, tx.InsertOrder(context.Background(), &orders.Order{ID: "o1", UserID: "u1", OrderNumber: "EMU1"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	p, _ := s.Product("p1")
	assert.Equal(t, 5, p.StockQuantity)
	assert.Len(t, s.CartLines("u1"), 1)
	assert.Zero(t, s.OrderCount())
}

func TestInTx_CommitAppliesWrites(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		left, err := tx.DecrementStock(context.Background(), "p1", 2)
		assert.Equal(t, 3, left)
		return err
	})
	require.NoError(t, err)
	p, _ := s.Product("p1")
	assert.Equal(t, 3, p.StockQuantity)
}

func TestTx_DecrementNeverGoesNegative(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		_, err := tx.DecrementStock(context.Background(), "p1", 6)
		return err
	})
	var se *orders.InsufficientStockError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 5, se.Available)
}

func TestTx_DeletedCartProductIsMissingProduct(t *testing.T) {
	s := seeded()
	s.AddToCart("u1", "p-gone", 1)
	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		_, err := tx.CartItems(context.Background(), "u1")
		return err
	})
	var me *orders.MissingProductError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "p-gone", me.ProductID)
	assert.True(t, orders.IsValidation(err))
}

func TestTx_DuplicateOrderNumber(t *testing.T) {
	s := seeded()
	err := s.InTx(context.Background(), func(tx orders.Tx) error {
		require.NoError(t, tx.InsertOrder(context.Background(), &orders.Order{ID: "o1", OrderNumber: "EMU1"}))
		err := tx.InsertOrder(context.Background(), &orders.Order{ID: "o2", OrderNumber: "EMU1"})
		assert.ErrorIs(t, err, orders.ErrDuplicateOrderNumber)
		return tx.InsertOrder(context.Background(), &orders.Order{ID: "o2", OrderNumber: "EMU2"})
	})
	require.NoError(t, err)
	assert.Equal(t, 2, s.OrderCount())
}

func TestTracking_RequiresOrder(t *testing.T) {
	s := NewStore()
	err := s.InsertTrackingEvent(context.Background(), &orders.TrackingEvent{OrderID: "missing"})
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)

	_, err = s.FindOrderByTrackingCode(context.Background(), "BR123")
	assert.ErrorIs(t, err, orders.ErrOrderNotFound)
}
