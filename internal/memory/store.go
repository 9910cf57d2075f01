package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
)

// Store is an in-process orders.Store. Transactions are serialized and work
// on a copy of the state that replaces the live one only on success.
type Store struct {
	mu sync.RWMutex
	st *state
}

var _ orders.Store = (*Store)(nil)

type state struct {
	products map[string]orders.Product
	carts    map[string][]orders.CartLine
	orders   map[string]orders.Order
	lines    map[string][]orders.OrderLine
	payments map[string][]orders.Payment
	tracking map[string][]orders.TrackingEvent
	numbers  map[string]string // order_number -> order id
}

func NewStore() *Store {
	return &Store{st: &state{
		products: map[string]orders.Product{},
		carts:    map[string][]orders.CartLine{},
		orders:   map[string]orders.Order{},
		lines:    map[string][]orders.OrderLine{},
		payments: map[string][]orders.Payment{},
		tracking: map[string][]orders.TrackingEvent{},
		numbers:  map[string]string{},
	}}
}

func (s *state) clone() *state {
	c := &state{
		products: make(map[string]orders.Product, len(s.products)),
		carts:    make(map[string][]orders.CartLine, len(s.carts)),
		orders:   make(map[string]orders.Order, len(s.orders)),
		lines:    make(map[string][]orders.OrderLine, len(s.lines)),
		payments: make(map[string][]orders.Payment, len(s.payments)),
		tracking: make(map[string][]orders.TrackingEvent, len(s.tracking)),
		numbers:  make(map[string]string, len(s.numbers)),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = append([]orders.CartLine(nil), v...)
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.lines {
		c.lines[k] = append([]orders.OrderLine(nil), v...)
	}
	for k, v := range s.payments {
		c.payments[k] = append([]orders.Payment(nil), v...)
	}
	for k, v := range s.tracking {
		c.tracking[k] = append([]orders.TrackingEvent(nil), v...)
	}
	for k, v := range s.numbers {
		c.numbers[k] = v
	}
	return c
}

func (s *Store) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(&tx{st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) GetOrder(_ context.Context, orderID string) (*orders.OrderDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	o, ok := s.st.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return s.st.detail(o), nil
}

func (s *Store) ListOrders(_ context.Context, userID string) ([]orders.OrderDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []orders.OrderDetail
	for _, o := range s.st.orders {
		if o.UserID == userID {
			out = append(out, *s.st.detail(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].Order, out[j].Order
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *Store) ListProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []orders.Product
	for _, p := range s.st.products {
		if p.IsActive {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SKU < out[j].SKU })
	return out, nil
}

func (s *Store) FindOrderByTrackingCode(_ context.Context, code string) (*orders.Order, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.st.orders {
		if o.TrackingCode != nil && *o.TrackingCode == code {
			return &o, nil
		}
	}
	return nil, orders.ErrOrderNotFound
}

func (s *Store) TrackingEvents(_ context.Context, orderID string) ([]orders.TrackingEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := append([]orders.TrackingEvent(nil), s.st.tracking[orderID]...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

func (s *Store) InsertTrackingEvent(_ context.Context, e *orders.TrackingEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.st.orders[e.OrderID]; !ok {
		return orders.ErrOrderNotFound
	}
	s.st.tracking[e.OrderID] = append(s.st.tracking[e.OrderID], *e)
	return nil
}

// Seed and inspection helpers.

func (s *Store) AddProduct(p orders.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.products[p.ID] = p
}

func (s *Store) AddToCart(userID, productID string, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.carts[userID] = append(s.st.carts[userID], orders.CartLine{UserID: userID, ProductID: productID, Quantity: qty})
}

func (s *Store) Product(id string) (orders.Product, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.products[id]
	return p, ok
}

func (s *Store) CartLines(userID string) []orders.CartLine {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]orders.CartLine(nil), s.st.carts[userID]...)
}

func (s *Store) OrderCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.st.orders)
}

func (st *state) detail(o orders.Order) *orders.OrderDetail {
	return &orders.OrderDetail{
		Order:    o,
		Lines:    append([]orders.OrderLine(nil), st.lines[o.ID]...),
		Payments: append([]orders.Payment(nil), st.payments[o.ID]...),
	}
}

type tx struct{ st *state }

func (t *tx) CartItems(_ context.Context, userID string) ([]orders.CartItem, error) {
	var out []orders.CartItem
	for _, l := range t.st.carts[userID] {
		p, ok := t.st.products[l.ProductID]
		if !ok {
			return nil, &orders.MissingProductError{ProductID: l.ProductID}
		}
		out = append(out, orders.CartItem{CartLine: l, Product: p})
	}
	return out, nil
}

func (t *tx) DecrementStock(_ context.Context, productID string, qty int) (int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return 0, &orders.MissingProductError{ProductID: productID}
	}
	if p.StockQuantity < qty {
		return 0, &orders.InsufficientStockError{ProductID: p.ID, Name: p.Name, Requested: qty, Available: p.StockQuantity}
	}
	p.StockQuantity -= qty
	t.st.products[productID] = p
	return p.StockQuantity, nil
}

func (t *tx) RestoreStock(_ context.Context, productID string, qty int) (int, error) {
	p, ok := t.st.products[productID]
	if !ok {
		return 0, fmt.Errorf("%w: %s", orders.ErrProductNotFound, productID)
	}
	p.StockQuantity += qty
	t.st.products[productID] = p
	return p.StockQuantity, nil
}

func (t *tx) ClearCart(_ context.Context, userID string) (int, error) {
	n := len(t.st.carts[userID])
	delete(t.st.carts, userID)
	return n, nil
}

func (t *tx) InsertOrder(_ context.Context, o *orders.Order) error {
	if _, taken := t.st.numbers[o.OrderNumber]; taken {
		return orders.ErrDuplicateOrderNumber
	}
	if _, exists := t.st.orders[o.ID]; exists {
		return fmt.Errorf("order %s already exists", o.ID)
	}
	t.st.orders[o.ID] = *o
	t.st.numbers[o.OrderNumber] = o.ID
	return nil
}

func (t *tx) InsertOrderLines(_ context.Context, lines []orders.OrderLine) error {
	for _, l := range lines {
		if _, ok := t.st.orders[l.OrderID]; !ok {
			return orders.ErrOrderNotFound
		}
		t.st.lines[l.OrderID] = append(t.st.lines[l.OrderID], l)
	}
	return nil
}

func (t *tx) InsertPayment(_ context.Context, p *orders.Payment) error {
	if _, ok := t.st.orders[p.OrderID]; !ok {
		return orders.ErrOrderNotFound
	}
	t.st.payments[p.OrderID] = append(t.st.payments[p.OrderID], *p)
	return nil
}

func (t *tx) LockOrder(_ context.Context, orderID string) (*orders.Order, error) {
	o, ok := t.st.orders[orderID]
	if !ok {
		return nil, orders.ErrOrderNotFound
	}
	return &o, nil
}

func (t *tx) OrderLines(_ context.Context, orderID string) ([]orders.OrderLine, error) {
	return append([]orders.OrderLine(nil), t.st.lines[orderID]...), nil
}

func (t *tx) CurrentPayment(_ context.Context, orderID string) (*orders.Payment, error) {
	ps := t.st.payments[orderID]
	if len(ps) == 0 {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, orders.ErrOrderNotFound)
	}
	p := ps[len(ps)-1]
	return &p, nil
}

func (t *tx) UpdateOrder(_ context.Context, o *orders.Order) error {
	if _, ok := t.st.orders[o.ID]; !ok {
		return orders.ErrOrderNotFound
	}
	t.st.orders[o.ID] = *o
	return nil
}

func (t *tx) UpdatePayment(_ context.Context, p *orders.Payment) error {
	ps := t.st.payments[p.OrderID]
	for i := range ps {
		if ps[i].ID == p.ID {
			ps[i] = *p
			return nil
		}
	}
	return fmt.Errorf("payment %s: %w", p.ID, orders.ErrOrderNotFound)
}
