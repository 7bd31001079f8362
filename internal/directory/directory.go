// Package directory resolves customers attached to transactions.
package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no customer matches the id.
var ErrNotFound = errors.New("directory: customer not found")

// Customer is the minimal profile the register attaches to a sale.
type Customer struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email,omitempty"`
	Phone string    `json:"phone,omitempty"`
}

// Querier is the lookup contract used by the register.
type Querier interface {
	GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error)
}

// Store implements Querier against Postgres.
type Store struct {
	Pool *pgxpool.Pool
}

// GetCustomer fetches one customer by id.
func (s Store) GetCustomer(ctx context.Context, id uuid.UUID) (Customer, error) {
	var c Customer
	err := s.Pool.QueryRow(ctx,
		`SELECT id, name, COALESCE(email, ''), COALESCE(phone, '') FROM customers WHERE id = $1`, id).
		Scan(&c.ID, &c.Name, &c.Email, &c.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Customer{}, ErrNotFound
		}
		return Customer{}, fmt.Errorf("directory: get customer: %w", err)
	}
	return c, nil
}
