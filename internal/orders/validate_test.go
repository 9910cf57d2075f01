package orders

import (
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func item(id, name, price string, stock, qty int, active bool) CartItem {
	return CartItem{
		CartLine: CartLine{UserID: "u1", ProductID: id, Quantity: qty},
		Product: Product{
			ID: id, Name: name, UnitPrice: decimal.RequireFromString(price),
			StockQuantity: stock, IsActive: active,
		},
	}
}

func TestValidate_SubtotalInCartOrder(t *testing.T) {
	v, err := Validate([]CartItem{
		item("a", "Anel Solitario", "100.00", 5, 2, true),
		item("b", "Brinco Perola", "49.90", 3, 3, true),
	})
	require.NoError(t, err)

	assert.True(t, v.Subtotal.Equal(decimal.RequireFromString("349.70")), "got %s", v.Subtotal)
	require.Len(t, v.Lines, 2)
	assert.Equal(t, "a", v.Lines[0].ProductID)
	assert.True(t, v.Lines[1].TotalPrice.Equal(decimal.RequireFromString("149.70")))
}

func TestValidate_EmptyCart(t *testing.T) {
	_, err := Validate(nil)
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.True(t, IsValidation(err))
}

func TestValidate_InsufficientStockNamesProduct(t *testing.T) {
	items := []CartItem{item("b", "Colar B", "80.00", 1, 2, true)}

	for i := 0; i < 2; i++ {
		_, err := Validate(items)
		var se *InsufficientStockError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "b", se.ProductID)
		assert.Equal(t, 1, se.Shortfall())
		assert.Contains(t, err.Error(), "Colar B")
	}
	assert.Equal(t, 1, items[0].Product.StockQuantity)
}

func TestValidate_InactiveProduct(t *testing.T) {
	_, err := Validate([]CartItem{
		item("a", "Anel", "10.00", 5, 1, true),
		item("c", "Pulseira Antiga", "10.00", 5, 1, false),
	})
	var ie *InactiveProductError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, "c", ie.ProductID)
	assert.Contains(t, err.Error(), "Pulseira Antiga")
}

func TestValidate_NonPositiveQuantity(t *testing.T) {
	_, err := Validate([]CartItem{item("a", "Anel", "10.00", 5, 0, true)})
	var qe *InvalidQuantityError
	assert.ErrorAs(t, err, &qe)
	assert.True(t, IsValidation(err))
}

func TestValidate_LinesCarryProductSKU(t *testing.T) {
	it := item("a", "Anel", "10.00", 5, 1, true)
	it.Product.SKU = "ANL-001"
	v, err := Validate([]CartItem{it})
	require.NoError(t, err)
	assert.Equal(t, "ANL-001", v.Lines[0].ProductSKU)
}

func TestMissingProduct_IsValidationNamingProduct(t *testing.T) {
	err := fmt.Errorf("load cart: %w", &MissingProductError{ProductID: "prod-gone"})
	assert.True(t, IsValidation(err))
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.Contains(t, err.Error(), "prod-gone")
}

func TestMoney_CentsRoundTrip(t *testing.T) {
	assert.Equal(t, int64(22500), Cents(decimal.RequireFromString("225")))
	assert.Equal(t, int64(1001), Cents(decimal.RequireFromString("10.005")))
	assert.True(t, FromCents(4990).Equal(decimal.RequireFromString("49.90")))
	assert.Equal(t, "0.30", LineTotal(decimal.RequireFromString("0.10"), 3).StringFixed(2))
}

func TestStatus_Transitions(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusPaid))
	assert.True(t, CanTransition(StatusPending, StatusCancelled))
	assert.True(t, CanTransition(StatusPaid, StatusProcessing))
	assert.False(t, CanTransition(StatusPaid, StatusPending))
	assert.False(t, CanTransition(StatusCancelled, StatusPaid))
	assert.False(t, CanTransition(StatusDelivered, StatusShipped))

	assert.True(t, MethodPix.Valid())
	assert.False(t, PaymentMethod("boleto").Valid())
}

func TestOrderDetail_CurrentPayment(t *testing.T) {
	var d OrderDetail
	assert.Nil(t, d.CurrentPayment())
}
