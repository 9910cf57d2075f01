package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repo is the Postgres Store.
type Repo struct{ DB *pgxpool.Pool }

var _ Store = (*Repo)(nil)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const orderCols = `id, user_id, order_number, status, payment_method, payment_status,
	subtotal_cents, shipping_cost_cents, total_cents, shipping_address,
	tracking_code, notes, created_at, updated_at`

const paymentCols = `id, order_id, payment_method, amount_cents, status,
	pix_code, pix_qr_code, pix_transaction_id, payment_provider, provider_payment_id,
	client_secret, expires_at, paid_at, created_at, updated_at`

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

func (r *Repo) InTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *Repo) GetOrder(ctx context.Context, orderID string) (*OrderDetail, error) {
	o, err := scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1`, orderID))
	if err != nil {
		return nil, err
	}
	return loadDetail(ctx, r.DB, o)
}

func (r *Repo) ListOrders(ctx context.Context, userID string) ([]OrderDetail, error) {
	rows, err := r.DB.Query(ctx, `SELECT `+orderCols+` FROM orders
		WHERE user_id=$1 ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	var list []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]OrderDetail, 0, len(list))
	for _, o := range list {
		d, err := loadDetail(ctx, r.DB, o)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (r *Repo) FindOrderByTrackingCode(ctx context.Context, code string) (*Order, error) {
	return scanOrder(r.DB.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE tracking_code=$1`, code))
}

func (r *Repo) TrackingEvents(ctx context.Context, orderID string) ([]TrackingEvent, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, order_id, status, description, location, occurred_at, created_at
		FROM order_tracking WHERE order_id=$1 ORDER BY occurred_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TrackingEvent
	for rows.Next() {
		var e TrackingEvent
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Description, &e.Location, &e.OccurredAt, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *Repo) InsertTrackingEvent(ctx context.Context, e *TrackingEvent) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO order_tracking(id, order_id, status, description, location, occurred_at, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		e.ID, e.OrderID, e.Status, e.Description, e.Location, e.OccurredAt, e.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == foreignKeyViolation {
		return ErrOrderNotFound
	}
	return err
}

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `SELECT id, sku, name, price_cents, stock_quantity, is_active
		FROM products WHERE is_active ORDER BY sku`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var (
			p     Product
			price int64
		)
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.StockQuantity, &p.IsActive); err != nil {
			return nil, err
		}
		p.UnitPrice = FromCents(price)
		out = append(out, p)
	}
	return out, rows.Err()
}

// pgTx implements Tx on top of a single pgx transaction.
type pgTx struct{ tx pgx.Tx }

func (t *pgTx) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	rows, err := t.tx.Query(ctx, `SELECT product_id, quantity FROM cart_items
		WHERE user_id=$1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, err
	}
	var lines []CartLine
	for rows.Next() {
		l := CartLine{UserID: userID}
		if err := rows.Scan(&l.ProductID, &l.Quantity); err != nil {
			rows.Close()
			return nil, err
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, nil
	}

	products, err := t.lockProducts(ctx, lines)
	if err != nil {
		return nil, err
	}
	out := make([]CartItem, 0, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			return nil, &MissingProductError{ProductID: l.ProductID}
		}
		out = append(out, CartItem{CartLine: l, Product: p})
	}
	return out, nil
}

func (t *pgTx) ClearCart(ctx context.Context, userID string) (int, error) {
	ct, err := t.tx.Exec(ctx, `DELETE FROM cart_items WHERE user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	return int(ct.RowsAffected()), nil
}

// InsertOrder runs inside a savepoint so a unique clash on order_number can
// be retried without aborting the surrounding transaction.
func (t *pgTx) InsertOrder(ctx context.Context, o *Order) error {
	sp, err := t.tx.Begin(ctx)
	if err != nil {
		return err
	}
	_, err = sp.Exec(ctx, `
		INSERT INTO orders(id, user_id, order_number, status, payment_method, payment_status,
			subtotal_cents, shipping_cost_cents, total_cents, shipping_address, tracking_code, notes,
			created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		o.ID, o.UserID, o.OrderNumber, string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		Cents(o.Subtotal), Cents(o.ShippingCost), Cents(o.Total), o.ShippingAddress, o.TrackingCode, o.Notes,
		o.CreatedAt, o.UpdatedAt)
	if err != nil {
		_ = sp.Rollback(ctx)
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation && pgErr.ConstraintName == "orders_order_number_key" {
			return ErrDuplicateOrderNumber
		}
		return err
	}
	return sp.Commit(ctx)
}

func (t *pgTx) InsertOrderLines(ctx context.Context, lines []OrderLine) error {
	batch := &pgx.Batch{}
	for i, l := range lines {
		batch.Queue(`
			INSERT INTO order_items(id, order_id, product_id, product_name, product_sku, quantity, unit_price_cents, total_price_cents, position)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			l.ID, l.OrderID, l.ProductID, l.ProductName, l.ProductSKU, l.Quantity, Cents(l.UnitPrice), Cents(l.TotalPrice), i)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *pgTx) InsertPayment(ctx context.Context, p *Payment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payments(`+paymentCols+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)`,
		p.ID, p.OrderID, string(p.Method), Cents(p.Amount), string(p.Status),
		p.PixCode, p.PixQRCode, p.PixTransactionID, p.Provider, p.ProviderPaymentID,
		p.ClientSecret, p.ExpiresAt, p.PaidAt, p.CreatedAt, p.UpdatedAt)
	return err
}

func (t *pgTx) LockOrder(ctx context.Context, orderID string) (*Order, error) {
	return scanOrder(t.tx.QueryRow(ctx, `SELECT `+orderCols+` FROM orders WHERE id=$1 FOR UPDATE`, orderID))
}

func (t *pgTx) OrderLines(ctx context.Context, orderID string) ([]OrderLine, error) {
	return listLines(ctx, t.tx, orderID)
}

func (t *pgTx) CurrentPayment(ctx context.Context, orderID string) (*Payment, error) {
	p, err := scanPayment(t.tx.QueryRow(ctx, `SELECT `+paymentCols+` FROM payments
		WHERE order_id=$1 ORDER BY created_at DESC LIMIT 1 FOR UPDATE`, orderID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("payment for order %s: %w", orderID, ErrOrderNotFound)
	}
	return p, err
}

func (t *pgTx) UpdateOrder(ctx context.Context, o *Order) error {
	ct, err := t.tx.Exec(ctx, `
		UPDATE orders SET status=$2, payment_method=$3, payment_status=$4,
			tracking_code=$5, notes=$6, updated_at=$7
		WHERE id=$1`,
		o.ID, string(o.Status), string(o.PaymentMethod), string(o.PaymentStatus),
		o.TrackingCode, o.Notes, o.UpdatedAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() != 1 {
		return ErrOrderNotFound
	}
	return nil
}

func (t *pgTx) UpdatePayment(ctx context.Context, p *Payment) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE payments SET payment_method=$2, status=$3, pix_code=$4, pix_qr_code=$5,
			pix_transaction_id=$6, payment_provider=$7, provider_payment_id=$8, client_secret=$9,
			expires_at=$10, paid_at=$11, updated_at=$12
		WHERE id=$1`,
		p.ID, string(p.Method), string(p.Status), p.PixCode, p.PixQRCode,
		p.PixTransactionID, p.Provider, p.ProviderPaymentID, p.ClientSecret,
		p.ExpiresAt, p.PaidAt, p.UpdatedAt)
	return err
}

func scanOrder(row pgx.Row) (*Order, error) {
	var (
		o                       Order
		status, method, pstatus string
		subtotal, shipping, tot int64
	)
	err := row.Scan(&o.ID, &o.UserID, &o.OrderNumber, &status, &method, &pstatus,
		&subtotal, &shipping, &tot, &o.ShippingAddress,
		&o.TrackingCode, &o.Notes, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	o.Status = Status(status)
	o.PaymentMethod = PaymentMethod(method)
	o.PaymentStatus = PaymentStatus(pstatus)
	o.Subtotal = FromCents(subtotal)
	o.ShippingCost = FromCents(shipping)
	o.Total = FromCents(tot)
	return &o, nil
}

func scanPayment(row pgx.Row) (*Payment, error) {
	var (
		p              Payment
		method, status string
		amount         int64
	)
	if err := row.Scan(&p.ID, &p.OrderID, &method, &amount, &status,
		&p.PixCode, &p.PixQRCode, &p.PixTransactionID, &p.Provider, &p.ProviderPaymentID,
		&p.ClientSecret, &p.ExpiresAt, &p.PaidAt, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Method = PaymentMethod(method)
	p.Status = PaymentStatus(status)
	p.Amount = FromCents(amount)
	return &p, nil
}

func listLines(ctx context.Context, q querier, orderID string) ([]OrderLine, error) {
	rows, err := q.Query(ctx, `SELECT id, order_id, product_id, product_name, product_sku, quantity, unit_price_cents, total_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY position`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrderLine
	for rows.Next() {
		var (
			l           OrderLine
			unit, total int64
		)
		if err := rows.Scan(&l.ID, &l.OrderID, &l.ProductID, &l.ProductName, &l.ProductSKU, &l.Quantity, &unit, &total); err != nil {
			return nil, err
		}
		l.UnitPrice = FromCents(unit)
		l.TotalPrice = FromCents(total)
		out = append(out, l)
	}
	return out, rows.Err()
}

func listPayments(ctx context.Context, q querier, orderID string) ([]Payment, error) {
	rows, err := q.Query(ctx, `SELECT `+paymentCols+` FROM payments WHERE order_id=$1 ORDER BY created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func loadDetail(ctx context.Context, q querier, o *Order) (*OrderDetail, error) {
	lines, err := listLines(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	payments, err := listPayments(ctx, q, o.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: *o, Lines: lines, Payments: payments}, nil
}
