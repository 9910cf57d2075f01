package orders

import "context"

// Store is the persisted catalog, cart and order collaborator. Every write
// goes through InTx; fn's writes are committed only when it returns nil.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetOrder(ctx context.Context, orderID string) (*OrderDetail, error)
	ListOrders(ctx context.Context, userID string) ([]OrderDetail, error)
}

// Tx is the unit of work handed to Store.InTx.
type Tx interface {
	// CartItems returns the user's cart in insertion order joined with the
	// product rows, which stay locked until the transaction ends.
	CartItems(ctx context.Context, userID string) ([]CartItem, error)
	// DecrementStock fails with *InsufficientStockError instead of going negative.
	DecrementStock(ctx context.Context, productID string, qty int) (int, error)
	RestoreStock(ctx context.Context, productID string, qty int) (int, error)
	ClearCart(ctx context.Context, userID string) (int, error)

	// InsertOrder returns ErrDuplicateOrderNumber on an order_number clash
	// and leaves the transaction usable for another attempt.
	InsertOrder(ctx context.Context, o *Order) error
	InsertOrderLines(ctx context.Context, lines []OrderLine) error
	InsertPayment(ctx context.Context, p *Payment) error

	LockOrder(ctx context.Context, orderID string) (*Order, error)
	OrderLines(ctx context.Context, orderID string) ([]OrderLine, error)
	CurrentPayment(ctx context.Context, orderID string) (*Payment, error)
	UpdateOrder(ctx context.Context, o *Order) error
	UpdatePayment(ctx context.Context, p *Payment) error
}
