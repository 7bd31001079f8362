package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/shift"
)

// OpenShift starts a new register shift. Only one shift may be open at a time.
func (s Store) OpenShift(ctx context.Context, startingCash money.Money, now time.Time) (shift.Session, error) {
	var sess shift.Session
	err := s.inTx(ctx, func(dbtx pgx.Tx) error {
		var open bool
		if err := dbtx.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM shifts WHERE status = $1)`, shift.StatusOpen).Scan(&open); err != nil {
			return fmt.Errorf("ledger: check open shift: %w", err)
		}
		if open {
			return shift.ErrAlreadyOpen
		}
		sess = shift.Session{
			ID:           uuid.New(),
			StartTime:    now,
			StartingCash: startingCash,
			Status:       shift.StatusOpen,
		}
		_, err := dbtx.Exec(ctx,
			`INSERT INTO shifts (id, start_time, starting_cash, status) VALUES ($1,$2,$3,$4)`,
			sess.ID, sess.StartTime, sess.StartingCash, sess.Status)
		if err != nil {
			return fmt.Errorf("ledger: insert shift: %w", err)
		}
		return nil
	})
	if err != nil {
		return shift.Session{}, err
	}
	return sess, nil
}

// CloseShift ends an open shift with a counted drawer amount.
func (s Store) CloseShift(ctx context.Context, id uuid.UUID, endingCash money.Money, now time.Time) (shift.Session, error) {
	ct, err := s.Pool.Exec(ctx,
		`UPDATE shifts SET end_time = $2, ending_cash = $3, status = $4 WHERE id = $1 AND status = $5`,
		id, now, endingCash, shift.StatusClosed, shift.StatusOpen)
	if err != nil {
		return shift.Session{}, fmt.Errorf("ledger: close shift: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := s.GetShift(ctx, id); err != nil {
			return shift.Session{}, err
		}
		return shift.Session{}, shift.ErrAlreadyClosed
	}
	return s.GetShift(ctx, id)
}

// GetShift loads one shift by id.
func (s Store) GetShift(ctx context.Context, id uuid.UUID) (shift.Session, error) {
	return s.scanShift(s.Pool.QueryRow(ctx,
		`SELECT id, start_time, end_time, starting_cash, ending_cash, status FROM shifts WHERE id = $1`, id))
}

// CurrentShift returns the open shift, or nil when none is open.
func (s Store) CurrentShift(ctx context.Context) (*shift.Session, error) {
	sess, err := s.scanShift(s.Pool.QueryRow(ctx,
		`SELECT id, start_time, end_time, starting_cash, ending_cash, status
		   FROM shifts WHERE status = $1 ORDER BY start_time DESC LIMIT 1`, shift.StatusOpen))
	if err != nil {
		if errors.Is(err, shift.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sess, nil
}

func (s Store) scanShift(row pgx.Row) (shift.Session, error) {
	var sess shift.Session
	err := row.Scan(&sess.ID, &sess.StartTime, &sess.EndTime, &sess.StartingCash, &sess.EndingCash, &sess.Status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Session{}, shift.ErrNotFound
		}
		return shift.Session{}, fmt.Errorf("ledger: scan shift: %w", err)
	}
	return sess, nil
}
