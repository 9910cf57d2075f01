package orders

import "github.com/shopspring/decimal"

// Money columns are stored as integer cents.

func Cents(d decimal.Decimal) int64 {
	return d.Round(2).Shift(2).IntPart()
}

func FromCents(c int64) decimal.Decimal {
	return decimal.New(c, -2)
}

// LineTotal is unit × quantity rounded to cents.
func LineTotal(unit decimal.Decimal, qty int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(qty))).Round(2)
}
