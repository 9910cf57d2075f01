package orders

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyCart            = errors.New("cart is empty")
	ErrOrderNotFound        = errors.New("order not found")
	ErrProductNotFound      = errors.New("product not found")
	ErrDuplicateOrderNumber = errors.New("order number already taken")
)

type InactiveProductError struct {
	ProductID string
	Name      string
}

func (e *InactiveProductError) Error() string {
	return fmt.Sprintf("product %s is not active", e.Name)
}

type InsufficientStockError struct {
	ProductID string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Shortfall() int {
	return e.Requested - e.Available
}

func (e *InsufficientStockError) Error() string {
	name := e.Name
	if name == "" {
		name = e.ProductID
	}
	return fmt.Sprintf("product %s has insufficient stock: requested %d, available %d (short by %d)",
		name, e.Requested, e.Available, e.Shortfall())
}

// MissingProductError is a cart line whose product row no longer exists.
type MissingProductError struct {
	ProductID string
}

func (e *MissingProductError) Error() string {
	return fmt.Sprintf("product %s is no longer available", e.ProductID)
}

func (e *MissingProductError) Unwrap() error { return ErrProductNotFound }

type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// IsValidation reports whether err is a cart rejection detected before any write.
func IsValidation(err error) bool {
	var (
		inactive *InactiveProductError
		stock    *InsufficientStockError
		qty      *InvalidQuantityError
		missing  *MissingProductError
	)
	return errors.Is(err, ErrEmptyCart) ||
		errors.As(err, &inactive) ||
		errors.As(err, &stock) ||
		errors.As(err, &qty) ||
		errors.As(err, &missing)
}
