package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/ariefcatur/go-jewelry-checkout/internal/memory"
	"github.com/ariefcatur/go-jewelry-checkout/internal/orders"
	"github.com/ariefcatur/go-jewelry-checkout/internal/payment"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

var errInjected = errors.New("injected failure")

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

var testAddress = orders.ShippingAddress{
	CEP:        "74000-000",
	Logradouro: "Rua 1",
	Numero:     "100",
	Bairro:     "Centro",
	Localidade: "Goiania",
	UF:         "GO",
}

type fakeIntents struct {
	mu        sync.Mutex
	created   []int64
	cancelled []string
	err       error
	block     bool
	n         int
}

func (f *fakeIntents) CreateIntent(ctx context.Context, amountMinor int64, _ string, _ map[string]string) (payment.Intent, error) {
	if f.block {
		<-ctx.Done()
		return payment.Intent{}, &payment.PaymentProviderError{Provider: payment.ProviderStripe, Err: ctx.Err()}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return payment.Intent{}, f.err
	}
	f.n++
	f.created = append(f.created, amountMinor)
	id := fmt.Sprintf("pi_%d", f.n)
	return payment.Intent{ID: id, ClientSecret: id + "_secret"}, nil
}

func (f *fakeIntents) CancelIntent(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []orders.Event
}

func (r *recorder) Publish(_ context.Context, ev orders.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

type memIdempotency struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newMemIdempotency() *memIdempotency {
	return &memIdempotency{locks: map[string]bool{}, values: map[string]string{}}
}

func (m *memIdempotency) TryLock(_ context.Context, scope, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.locks[scope+"|"+key] {
		return false, nil
	}
	m.locks[scope+"|"+key] = true
	return true, nil
}

func (m *memIdempotency) Remember(_ context.Context, scope, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[scope+"|"+key] = value
	return nil
}

func (m *memIdempotency) Recall(_ context.Context, scope, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[scope+"|"+key]
	return v, ok, nil
}

func (m *memIdempotency) Release(_ context.Context, scope, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.locks, scope+"|"+key)
	return nil
}

// faultyStore fails the named Tx method inside every transaction.
type faultyStore struct {
	*memory.Store
	failOn string
}

func (f *faultyStore) InTx(ctx context.Context, fn func(tx orders.Tx) error) error {
	return f.Store.InTx(ctx, func(tx orders.Tx) error {
		return fn(&faultyTx{Tx: tx, failOn: f.failOn})
	})
}

type faultyTx struct {
	orders.Tx
	failOn string
}

func (t *faultyTx) DecrementStock(ctx context.Context, id string, qty int) (int, error) {
	if t.failOn == "DecrementStock" {
		return 0, errInjected
	}
	return t.Tx.DecrementStock(ctx, id, qty)
}

func (t *faultyTx) InsertOrderLines(ctx context.Context, lines []orders.OrderLine) error {
	if t.failOn == "InsertOrderLines" {
		return errInjected
	}
	return t.Tx.InsertOrderLines(ctx, lines)
}

func (t *faultyTx) InsertPayment(ctx context.Context, p *orders.Payment) error {
	if t.failOn == "InsertPayment" {
		return errInjected
	}
	return t.Tx.InsertPayment(ctx, p)
}

func (t *faultyTx) ClearCart(ctx context.Context, userID string) (int, error) {
	if t.failOn == "ClearCart" {
		return 0, errInjected
	}
	return t.Tx.ClearCart(ctx, userID)
}

type fixture struct {
	store   *memory.Store
	intents *fakeIntents
	events  *recorder
	svc     *Service
}

// newFixture seeds product A (100.00, stock 5) and product B (80.00, stock 1).
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	store.AddProduct(orders.Product{ID: "prod-a", SKU: "ANL-001", Name: "Anel Solitario A", UnitPrice: dec("100.00"), StockQuantity: 5, IsActive: true})
	store.AddProduct(orders.Product{ID: "prod-b", SKU: "COL-001", Name: "Colar Perola B", UnitPrice: dec("80.00"), StockQuantity: 1, IsActive: true})

	intents := &fakeIntents{}
	events := &recorder{}

	var mu sync.Mutex
	clock := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := &Service{
		Store: store,
		Payments: payment.NewRegistry(
			payment.NewPixGenerator(payment.PixConfig{Key: "+5562998130462", MerchantName: "Joalheria Emu", MerchantCity: "Goiania"}, nil),
			payment.NewCardGenerator(payment.ProviderStripe, intents),
		),
		Events: events,
		Log:    zap.NewNop(),
		Now: func() time.Time {
			mu.Lock()
			defer mu.Unlock()
			clock = clock.Add(time.Second)
			return clock
		},
	}
	return &fixture{store: store, intents: intents, events: events, svc: svc}
}

func (f *fixture) useStore(s orders.Store) { f.svc.Store = s }

func (f *fixture) stock(id string) int {
	p, _ := f.store.Product(id)
	return p.StockQuantity
}

func (f *fixture) place(t *testing.T, user string, method orders.PaymentMethod) (PlaceOrderResult, error) {
	t.Helper()
	return f.svc.PlaceOrder(context.Background(), PlaceOrderInput{
		UserID:          user,
		PaymentMethod:   method,
		ShippingAddress: testAddress,
		ShippingCost:    decPtr("25.00"),
	})
}
