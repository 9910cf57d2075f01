package redisx

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestIdempotencyStore_LockRememberRelease(t *testing.T) {
	mr, rdb := newRedis(t)
	s := NewIdempotencyStore(rdb, time.Minute)
	ctx := context.Background()

	ok, err := s.TryLock(ctx, "u1", "order:place:k1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.TryLock(ctx, "u1", "order:place:k1")
	require.NoError(t, err)
	assert.False(t, ok, "second lock must fail while the first is held")

	_, found, err := s.Recall(ctx, "u1", "order:place:k1")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.Remember(ctx, "u1", "order:place:k1", "order-1"))
	v, found, err := s.Recall(ctx, "u1", "order:place:k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "order-1", v)

	require.NoError(t, s.Release(ctx, "u1", "order:place:k1"))
	ok, _ = s.TryLock(ctx, "u1", "order:place:k1")
	assert.True(t, ok)

	mr.FastForward(2 * time.Minute)
	_, found, _ = s.Recall(ctx, "u1", "order:place:k1")
	assert.False(t, found, "remembered ids expire with the ttl")
}

func TestOrderCache_RoundTrip(t *testing.T) {
	_, rdb := newRedis(t)
	c := NewOrderCache(rdb, 0)
	ctx := context.Background()

	_, hit, err := c.Get(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, hit)

	code := "BR0A1B2C3D4E5"
	d := &orders.OrderDetail{
		Order: orders.Order{
			ID:              "o1",
			UserID:          "u1",
			OrderNumber:     "EMU000001001",
			Status:          orders.StatusPaid,
			Total:           decimal.RequireFromString("225.00"),
			TrackingCode:    &code,
			ShippingAddress: orders.ShippingAddress{CEP: "74000-000", UF: "GO"},
		},
		Lines: []orders.OrderLine{{ID: "l1", ProductID: "p1", Quantity: 2, UnitPrice: decimal.RequireFromString("100")}},
	}
	require.NoError(t, c.Set(ctx, d))

	got, hit, err := c.Get(ctx, "o1")
	require.NoError(t, err)
	require.True(t, hit)
	assert.True(t, got.Order.Total.Equal(d.Order.Total))
	assert.Equal(t, code, *got.Order.TrackingCode)
	assert.Equal(t, "GO", got.Order.ShippingAddress.UF)
	require.Len(t, got.Lines, 1)

	require.NoError(t, c.Invalidate(ctx, "o1"))
	_, hit, _ = c.Get(ctx, "o1")
	assert.False(t, hit)
}

func TestOrderCache_CorruptEntryIsMiss(t *testing.T) {
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("order:o1", "{not json"))

	_, hit, err := NewOrderCache(rdb, 0).Get(context.Background(), "o1")
	require.NoError(t, err)
	assert.False(t, hit)
	assert.False(t, mr.Exists("order:o1"))
}

func TestDedup_First(t *testing.T) {
	_, rdb := newRedis(t)
	d := NewDedup(rdb, "payment-worker")
	ctx := context.Background()

	first, err := d.First(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := d.First(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, again)

	require.NoError(t, d.Forget(ctx, "evt-1"))
	first, _ = d.First(ctx, "evt-1")
	assert.True(t, first)
}
