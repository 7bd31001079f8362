// Package ledger persists transactions, shifts, and domain events.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/fluxretail/backend-pos/internal/catalog"
	"github.com/fluxretail/backend-pos/internal/events"
	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/totals"
)

var (
	// ErrNotFound is returned when a transaction or shift does not exist.
	ErrNotFound = errors.New("ledger: not found")
	// ErrConflict is returned when a conditional status update matched no row.
	ErrConflict = errors.New("ledger: conflicting state")
)

// StockDecrement records how much to take off a product when a sale completes.
type StockDecrement struct {
	ProductID uuid.UUID
	Qty       decimal.Decimal
}

// Store is the Postgres persistence layer.
type Store struct {
	Pool *pgxpool.Pool
}

// SaveDraft stores a held sale with its lines, without touching stock.
func (s Store) SaveDraft(ctx context.Context, t settlement.Transaction) error {
	return s.inTx(ctx, func(dbtx pgx.Tx) error {
		return saveTransaction(ctx, dbtx, t)
	})
}

// SaveCompleted stores a completed sale and decrements stock in the same
// database transaction, so a stock shortfall rolls back the sale.
func (s Store) SaveCompleted(ctx context.Context, t settlement.Transaction, decrements []StockDecrement) error {
	return s.inTx(ctx, func(dbtx pgx.Tx) error {
		if err := saveTransaction(ctx, dbtx, t); err != nil {
			return err
		}
		for _, d := range decrements {
			if err := catalog.DecrementStock(ctx, dbtx, d.ProductID, d.Qty); err != nil {
				return err
			}
		}
		return nil
	})
}

// UpdateStatus moves a transaction from one status to another, restoring stock
// when a completed sale is refunded. ErrConflict means the transaction was not
// in the expected source status.
func (s Store) UpdateStatus(ctx context.Context, id uuid.UUID, from, to settlement.Status) error {
	return s.inTx(ctx, func(dbtx pgx.Tx) error {
		ct, err := dbtx.Exec(ctx,
			`UPDATE transactions SET status = $3, updated_at = now() WHERE id = $1 AND status = $2`,
			id, string(from), string(to))
		if err != nil {
			return fmt.Errorf("ledger: update status: %w", err)
		}
		if ct.RowsAffected() == 0 {
			var exists bool
			if err := dbtx.QueryRow(ctx,
				`SELECT EXISTS(SELECT 1 FROM transactions WHERE id = $1)`, id).Scan(&exists); err != nil {
				return fmt.Errorf("ledger: check transaction: %w", err)
			}
			if !exists {
				return ErrNotFound
			}
			return ErrConflict
		}
		if from == settlement.StatusCompleted && to == settlement.StatusRefunded {
			rows, err := dbtx.Query(ctx,
				`SELECT product_id, qty::text FROM transaction_lines WHERE transaction_id = $1`, id)
			if err != nil {
				return fmt.Errorf("ledger: load lines for refund: %w", err)
			}
			type restore struct {
				id  uuid.UUID
				qty decimal.Decimal
			}
			var restores []restore
			for rows.Next() {
				var r restore
				var qty string
				if err := rows.Scan(&r.id, &qty); err != nil {
					rows.Close()
					return fmt.Errorf("ledger: scan refund line: %w", err)
				}
				if r.qty, err = decimal.NewFromString(qty); err != nil {
					rows.Close()
					return fmt.Errorf("ledger: parse refund qty: %w", err)
				}
				restores = append(restores, r)
			}
			rows.Close()
			if err := rows.Err(); err != nil {
				return err
			}
			for _, r := range restores {
				if err := catalog.RestoreStock(ctx, dbtx, r.id, r.qty); err != nil {
					return err
				}
			}
		}
		return nil
	})
}

// GetTransaction loads one transaction with its lines and payments.
func (s Store) GetTransaction(ctx context.Context, id uuid.UUID) (settlement.Transaction, error) {
	txs, err := s.loadTransactions(ctx, `WHERE t.id = $1`, id)
	if err != nil {
		return settlement.Transaction{}, err
	}
	if len(txs) == 0 {
		return settlement.Transaction{}, ErrNotFound
	}
	return txs[0], nil
}

// ListByWindow returns transactions created inside [from, to], oldest first.
func (s Store) ListByWindow(ctx context.Context, from, to time.Time) ([]settlement.Transaction, error) {
	return s.loadTransactions(ctx, `WHERE t.created_at >= $1 AND t.created_at <= $2`, from, to)
}

// ListTransactions pages through all transactions, newest first.
func (s Store) ListTransactions(ctx context.Context, limit, offset int32) ([]settlement.Transaction, int64, error) {
	var total int64
	if err := s.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ledger: count transactions: %w", err)
	}
	txs, err := s.loadTransactions(ctx, `ORDER BY t.created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return txs, total, nil
}

// InsertEvent persists a domain event and returns the stored record.
func (s Store) InsertEvent(ctx context.Context, topic string, aggregateID uuid.UUID, payload []byte) (events.Event, error) {
	ev := events.Event{ID: uuid.New(), Topic: topic, AggregateID: aggregateID, Payload: payload}
	err := s.Pool.QueryRow(ctx,
		`INSERT INTO events (id, topic, aggregate_id, payload) VALUES ($1, $2, $3, $4) RETURNING occurred_at`,
		ev.ID, ev.Topic, ev.AggregateID, []byte(ev.Payload)).Scan(&ev.OccurredAt)
	if err != nil {
		return events.Event{}, fmt.Errorf("ledger: insert event: %w", err)
	}
	return ev, nil
}

func (s Store) inTx(ctx context.Context, fn func(pgx.Tx) error) error {
	dbtx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("ledger: begin: %w", err)
	}
	defer func() { _ = dbtx.Rollback(ctx) }()
	if err := fn(dbtx); err != nil {
		return err
	}
	return dbtx.Commit(ctx)
}

func saveTransaction(ctx context.Context, dbtx pgx.Tx, t settlement.Transaction) error {
	_, err := dbtx.Exec(ctx,
		`INSERT INTO transactions
		   (id, created_at, customer_id, subtotal, discount_total, tax_total, grand_total,
		    primary_method, amount_paid, change_given, status, notes)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		 ON CONFLICT (id) DO UPDATE SET
		   primary_method = EXCLUDED.primary_method,
		   amount_paid    = EXCLUDED.amount_paid,
		   change_given   = EXCLUDED.change_given,
		   status         = EXCLUDED.status,
		   notes          = EXCLUDED.notes,
		   updated_at     = now()`,
		t.ID, t.CreatedAt, t.CustomerID,
		t.Totals.Subtotal, t.Totals.DiscountTotal, t.Totals.TaxTotal, t.Totals.GrandTotal,
		nullableMethod(t.PrimaryMethod), t.AmountPaid, t.ChangeGiven, string(t.Status), t.Notes)
	if err != nil {
		return fmt.Errorf("ledger: upsert transaction: %w", err)
	}
	if _, err := dbtx.Exec(ctx, `DELETE FROM transaction_lines WHERE transaction_id = $1`, t.ID); err != nil {
		return fmt.Errorf("ledger: clear lines: %w", err)
	}
	shares := make(map[uuid.UUID]totals.LineShare, len(t.Shares))
	for _, sh := range t.Shares {
		shares[sh.ProductID] = sh
	}
	for i, line := range t.Lines {
		sh := shares[line.ProductID]
		_, err := dbtx.Exec(ctx,
			`INSERT INTO transaction_lines
			   (transaction_id, position, product_id, name, qty, unit_price, original_tax,
			    share_gross, share_discount, share_tax)
			 VALUES ($1,$2,$3,$4,$5::numeric,$6,$7,$8,$9,$10)`,
			t.ID, i, line.ProductID, line.Name, line.Qty.String(), line.UnitPrice, line.OriginalTax,
			sh.Gross, sh.Discount, sh.Tax)
		if err != nil {
			return fmt.Errorf("ledger: insert line: %w", err)
		}
	}
	if _, err := dbtx.Exec(ctx, `DELETE FROM transaction_payments WHERE transaction_id = $1`, t.ID); err != nil {
		return fmt.Errorf("ledger: clear payments: %w", err)
	}
	for i, p := range t.Payments {
		_, err := dbtx.Exec(ctx,
			`INSERT INTO transaction_payments (transaction_id, position, method, amount)
			 VALUES ($1,$2,$3,$4)`,
			t.ID, i, string(p.Method), p.Amount)
		if err != nil {
			return fmt.Errorf("ledger: insert payment: %w", err)
		}
	}
	return nil
}

func nullableMethod(m settlement.PaymentMethod) *string {
	if m == "" {
		return nil
	}
	v := string(m)
	return &v
}

func (s Store) loadTransactions(ctx context.Context, clause string, args ...any) ([]settlement.Transaction, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT t.id, t.created_at, t.customer_id, t.subtotal, t.discount_total, t.tax_total,
		        t.grand_total, COALESCE(t.primary_method, ''), t.amount_paid, t.change_given,
		        t.status, t.notes
		   FROM transactions t `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("ledger: query transactions: %w", err)
	}
	defer rows.Close()

	var txs []settlement.Transaction
	index := make(map[uuid.UUID]int)
	var ids []uuid.UUID
	for rows.Next() {
		var t settlement.Transaction
		var primary, status string
		if err := rows.Scan(&t.ID, &t.CreatedAt, &t.CustomerID,
			&t.Totals.Subtotal, &t.Totals.DiscountTotal, &t.Totals.TaxTotal, &t.Totals.GrandTotal,
			&primary, &t.AmountPaid, &t.ChangeGiven, &status, &t.Notes); err != nil {
			return nil, fmt.Errorf("ledger: scan transaction: %w", err)
		}
		t.PrimaryMethod = settlement.PaymentMethod(primary)
		t.Status = settlement.Status(status)
		index[t.ID] = len(txs)
		ids = append(ids, t.ID)
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, nil
	}

	lineRows, err := s.Pool.Query(ctx,
		`SELECT transaction_id, product_id, name, qty::text, unit_price, original_tax,
		        share_gross, share_discount, share_tax
		   FROM transaction_lines WHERE transaction_id = ANY($1) ORDER BY transaction_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: query lines: %w", err)
	}
	defer lineRows.Close()
	for lineRows.Next() {
		var txID uuid.UUID
		var line totals.LineItem
		var share totals.LineShare
		var qty string
		if err := lineRows.Scan(&txID, &line.ProductID, &line.Name, &qty, &line.UnitPrice,
			&line.OriginalTax, &share.Gross, &share.Discount, &share.Tax); err != nil {
			return nil, fmt.Errorf("ledger: scan line: %w", err)
		}
		if line.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("ledger: parse qty %q: %w", qty, err)
		}
		share.ProductID = line.ProductID
		i := index[txID]
		txs[i].Lines = append(txs[i].Lines, line)
		txs[i].Shares = append(txs[i].Shares, share)
	}
	if err := lineRows.Err(); err != nil {
		return nil, err
	}

	payRows, err := s.Pool.Query(ctx,
		`SELECT transaction_id, method, amount
		   FROM transaction_payments WHERE transaction_id = ANY($1) ORDER BY transaction_id, position`, ids)
	if err != nil {
		return nil, fmt.Errorf("ledger: query payments: %w", err)
	}
	defer payRows.Close()
	for payRows.Next() {
		var txID uuid.UUID
		var method string
		var amount money.Money
		if err := payRows.Scan(&txID, &method, &amount); err != nil {
			return nil, fmt.Errorf("ledger: scan payment: %w", err)
		}
		i := index[txID]
		txs[i].Payments = append(txs[i].Payments, settlement.PaymentRecord{
			Method: settlement.PaymentMethod(method),
			Amount: amount,
		})
	}
	return txs, payRows.Err()
}
