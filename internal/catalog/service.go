package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fluxretail/backend-pos/internal/money"
)

// ErrNotFound is returned when a product does not exist or is inactive.
var ErrNotFound = errors.New("catalog: product not found")

// ErrInsufficientStock is returned when a decrement would drive stock negative.
var ErrInsufficientStock = errors.New("catalog: insufficient stock")

// Product is the sellable unit the register quotes from.
type Product struct {
	ID        uuid.UUID       `json:"id"`
	SKU       string          `json:"sku"`
	Name      string          `json:"name"`
	UnitPrice money.Money     `json:"unitPrice"`
	TaxBps    int32           `json:"taxBps"`
	StockQty  decimal.Decimal `json:"stockQty"`
	Active    bool            `json:"active"`
}

// Querier is the read contract the service depends on.
type Querier interface {
	GetProduct(ctx context.Context, id uuid.UUID) (Product, error)
	ListProducts(ctx context.Context, limit, offset int32) ([]Product, int64, error)
}

// Store implements Querier against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

const productColumns = `id, sku, name, unit_price, tax_bps, stock_qty::text, active`

// GetProduct fetches one active product by id.
func (s Store) GetProduct(ctx context.Context, id uuid.UUID) (Product, error) {
	row := s.Pool.QueryRow(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1 AND active`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, fmt.Errorf("catalog: get product: %w", err)
	}
	return p, nil
}

// ListProducts returns a page of active products plus the total count.
func (s Store) ListProducts(ctx context.Context, limit, offset int32) ([]Product, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM products WHERE active`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("catalog: count products: %w", err)
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE active ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("catalog: list products: %w", err)
	}
	defer rows.Close()
	var out []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("catalog: scan product: %w", err)
		}
		out = append(out, p)
	}
	return out, total, rows.Err()
}

// DecrementStock reduces stock inside the caller's transaction. It fails when
// the product is missing or the remaining stock would go negative.
func DecrementStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty decimal.Decimal) error {
	ct, err := tx.Exec(ctx,
		`UPDATE products SET stock_qty = stock_qty - $2::numeric, updated_at = now()
		 WHERE id = $1 AND stock_qty >= $2::numeric`, id, qty.String())
	if err != nil {
		return fmt.Errorf("catalog: decrement stock: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrInsufficientStock
	}
	return nil
}

// RestoreStock adds quantity back inside the caller's transaction, used on refunds.
func RestoreStock(ctx context.Context, tx pgx.Tx, id uuid.UUID, qty decimal.Decimal) error {
	_, err := tx.Exec(ctx,
		`UPDATE products SET stock_qty = stock_qty + $2::numeric, updated_at = now() WHERE id = $1`,
		id, qty.String())
	if err != nil {
		return fmt.Errorf("catalog: restore stock: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (Product, error) {
	var p Product
	var stock string
	if err := row.Scan(&p.ID, &p.SKU, &p.Name, &p.UnitPrice, &p.TaxBps, &stock, &p.Active); err != nil {
		return Product{}, err
	}
	qty, err := decimal.NewFromString(stock)
	if err != nil {
		return Product{}, fmt.Errorf("parse stock %q: %w", stock, err)
	}
	p.StockQty = qty
	return p, nil
}

// Service layers a read-through cache over the Querier.
type Service struct {
	Queries Querier
	Cache   *Cache
}

func quoteKey(id uuid.UUID) string {
	return "catalog:product:" + id.String()
}

// Quote returns the product the register builds a line from, preferring cache.
func (s Service) Quote(ctx context.Context, id uuid.UUID) (Product, error) {
	key := quoteKey(id)
	var cached Product
	if ok, err := s.Cache.GetJSON(ctx, key, &cached); err == nil && ok {
		return cached, nil
	}
	p, err := s.Queries.GetProduct(ctx, id)
	if err != nil {
		return Product{}, err
	}
	_ = s.Cache.SetJSON(ctx, key, p)
	return p, nil
}

// List pages through the active catalog, bypassing the cache.
func (s Service) List(ctx context.Context, limit, offset int32) ([]Product, int64, error) {
	return s.Queries.ListProducts(ctx, limit, offset)
}

// InvalidateQuote drops a product's cached quote after a stock mutation.
func (s Service) InvalidateQuote(ctx context.Context, ids ...uuid.UUID) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, quoteKey(id))
	}
	_ = s.Cache.Invalidate(ctx, keys...)
}
