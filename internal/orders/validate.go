package orders

import "github.com/shopspring/decimal"

type ValidatedLine struct {
	ProductID   string
	ProductName string
	ProductSKU  string
	Quantity    int
	UnitPrice   decimal.Decimal
	TotalPrice  decimal.Decimal
}

type Validation struct {
	Subtotal decimal.Decimal
	Lines    []ValidatedLine
}

// Validate prices a cart snapshot against live product rows. It fails on the
// first offending line and never touches persisted state.
func Validate(items []CartItem) (Validation, error) {
	if len(items) == 0 {
		return Validation{}, ErrEmptyCart
	}

	out := Validation{
		Subtotal: decimal.Zero,
		Lines:    make([]ValidatedLine, 0, len(items)),
	}
	for _, it := range items {
		p := it.Product
		if it.Quantity <= 0 {
			return Validation{}, &InvalidQuantityError{ProductID: it.ProductID, Quantity: it.Quantity}
		}
		if !p.IsActive {
			return Validation{}, &InactiveProductError{ProductID: p.ID, Name: p.Name}
		}
		if it.Quantity > p.StockQuantity {
			return Validation{}, &InsufficientStockError{
				ProductID: p.ID,
				Name:      p.Name,
				Requested: it.Quantity,
				Available: p.StockQuantity,
			}
		}

		total := LineTotal(p.UnitPrice, it.Quantity)
		out.Lines = append(out.Lines, ValidatedLine{
			ProductID:   p.ID,
			ProductName: p.Name,
			ProductSKU:  p.SKU,
			Quantity:    it.Quantity,
			UnitPrice:   p.UnitPrice,
			TotalPrice:  total,
		})
		out.Subtotal = out.Subtotal.Add(total)
	}
	return out, nil
}
