package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
)

// lockProducts takes a row lock on every product in the cart. Rows are
// locked in id order so two checkouts sharing products cannot deadlock.
func (t *pgTx) lockProducts(ctx context.Context, lines []CartLine) (map[string]Product, error) {
	ids := make([]string, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.ProductID]; ok {
			continue
		}
		seen[l.ProductID] = struct{}{}
		ids = append(ids, l.ProductID)
	}
	sort.Strings(ids)

	rows, err := t.tx.Query(ctx, `
		SELECT id, sku, name, price_cents, stock_quantity, is_active
		FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Product, len(ids))
	for rows.Next() {
		var (
			p     Product
			price int64
		)
		if err := rows.Scan(&p.ID, &p.SKU, &p.Name, &price, &p.StockQuantity, &p.IsActive); err != nil {
			return nil, err
		}
		p.UnitPrice = FromCents(price)
		out[p.ID] = p
	}
	return out, rows.Err()
}

// DecrementStock only succeeds when enough stock is left; the CHECK on
// products.stock_quantity backs this up at the schema level.
func (t *pgTx) DecrementStock(ctx context.Context, productID string, qty int) (int, error) {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity - $2, updated_at = now()
		WHERE id=$1 AND stock_quantity >= $2
		RETURNING stock_quantity`, productID, qty).Scan(&left)
	if err == nil {
		return left, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, err
	}

	var (
		name  string
		stock int
	)
	if err := t.tx.QueryRow(ctx, `SELECT name, stock_quantity FROM products WHERE id=$1`, productID).
		Scan(&name, &stock); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, &MissingProductError{ProductID: productID}
		}
		return 0, err
	}
	return 0, &InsufficientStockError{ProductID: productID, Name: name, Requested: qty, Available: stock}
}

func (t *pgTx) RestoreStock(ctx context.Context, productID string, qty int) (int, error) {
	var left int
	err := t.tx.QueryRow(ctx, `
		UPDATE products SET stock_quantity = stock_quantity + $2, updated_at = now()
		WHERE id=$1
		RETURNING stock_quantity`, productID, qty).Scan(&left)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	return left, err
}
