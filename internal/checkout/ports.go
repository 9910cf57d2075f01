package checkout

import (
	"context"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/shopspring/decimal"
)

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	Release(ctx context.Context, scope, key string) error
}

// OrderCache holds read-path order details. Misses return (nil, false, nil).
type OrderCache interface {
	Get(ctx context.Context, orderID string) (*orders.OrderDetail, bool, error)
	Set(ctx context.Context, d *orders.OrderDetail) error
	Invalidate(ctx context.Context, orderID string) error
}

type EventPublisher interface {
	Publish(ctx context.Context, ev orders.Event) error
}

// ShippingPolicy prices shipping when the caller does not pass a cost.
type ShippingPolicy interface {
	Quote(subtotal decimal.Decimal, addr orders.ShippingAddress) decimal.Decimal
}

// FlatRateShipping is free from FreeFrom upward and Rate otherwise.
type FlatRateShipping struct {
	Rate     decimal.Decimal
	FreeFrom decimal.Decimal
}

func DefaultShipping() FlatRateShipping {
	return FlatRateShipping{Rate: decimal.NewFromInt(25), FreeFrom: decimal.NewFromInt(500)}
}

func (s FlatRateShipping) Quote(subtotal decimal.Decimal, _ orders.ShippingAddress) decimal.Decimal {
	if !s.FreeFrom.IsZero() && subtotal.GreaterThanOrEqual(s.FreeFrom) {
		return decimal.Zero
	}
	return s.Rate
}
