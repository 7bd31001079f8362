// Package report produces X (live) and Z (end-of-shift) register reports.
package report

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/fluxretail/backend-pos/internal/obs"
	"github.com/fluxretail/backend-pos/internal/settlement"
	"github.com/fluxretail/backend-pos/internal/shift"
)

// ErrShiftStillOpen rejects a Z report requested before the shift closes.
var ErrShiftStillOpen = errors.New("report: shift is still open")

// Ledger is the read contract reporting depends on.
type Ledger interface {
	ListByWindow(ctx context.Context, from, to time.Time) ([]settlement.Transaction, error)
	GetShift(ctx context.Context, id uuid.UUID) (shift.Session, error)
	CurrentShift(ctx context.Context) (*shift.Session, error)
}

// Service aggregates shift reports, caching closed-shift results in Redis.
type Service struct {
	Ledger Ledger
	Redis  *redis.Client
	TTL    time.Duration
	Now    func() time.Time
	Log    zerolog.Logger
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func zKey(id uuid.UUID) string {
	return "report:z:" + id.String()
}

// XReport aggregates the currently open shift up to now. It is never cached
// because the window is still moving.
func (s Service) XReport(ctx context.Context) (shift.Report, error) {
	sess, err := s.Ledger.CurrentShift(ctx)
	if err != nil {
		return shift.Report{}, err
	}
	return s.aggregate(ctx, sess)
}

// ZReport aggregates a closed shift, preferring the cached snapshot.
func (s Service) ZReport(ctx context.Context, shiftID uuid.UUID) (shift.Report, error) {
	if s.Redis != nil {
		data, err := s.Redis.Get(ctx, zKey(shiftID)).Bytes()
		if err == nil {
			var cached shift.Report
			if jsonErr := json.Unmarshal(data, &cached); jsonErr == nil {
				return cached, nil
			}
		} else if err != redis.Nil {
			s.Log.Warn().Err(err).Msg("z report cache read failed")
		}
	}
	sess, err := s.Ledger.GetShift(ctx, shiftID)
	if err != nil {
		return shift.Report{}, err
	}
	if sess.Status != shift.StatusClosed {
		return shift.Report{}, ErrShiftStillOpen
	}
	rep, err := s.aggregate(ctx, &sess)
	if err != nil {
		return shift.Report{}, err
	}
	s.cache(ctx, shiftID, rep)
	return rep, nil
}

// SnapshotZ precomputes and caches the Z report for a closed shift. The
// worker calls this after shift close so the first read is already warm.
func (s Service) SnapshotZ(ctx context.Context, shiftID uuid.UUID) error {
	sess, err := s.Ledger.GetShift(ctx, shiftID)
	if err != nil {
		return err
	}
	if sess.Status != shift.StatusClosed {
		return ErrShiftStillOpen
	}
	rep, err := s.aggregate(ctx, &sess)
	if err != nil {
		return err
	}
	s.cache(ctx, shiftID, rep)
	return nil
}

func (s Service) aggregate(ctx context.Context, sess *shift.Session) (shift.Report, error) {
	now := s.now()
	var txs []settlement.Transaction
	if sess != nil {
		from, to := sess.Window(now)
		var err error
		txs, err = s.Ledger.ListByWindow(ctx, from, to)
		if err != nil {
			return shift.Report{}, err
		}
	}
	return shift.Aggregate(sess, txs, now)
}

func (s Service) cache(ctx context.Context, shiftID uuid.UUID, rep shift.Report) {
	if s.Redis == nil {
		return
	}
	data, err := json.Marshal(rep)
	if err != nil {
		return
	}
	ttl := s.TTL
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	if err := s.Redis.Set(ctx, zKey(shiftID), data, ttl).Err(); err != nil {
		s.Log.Warn().Err(err).Msg("z report cache write failed")
	}
}

type snapshotPayload struct {
	ShiftID uuid.UUID `json:"shiftId"`
}

// HandleSnapshotTask is the queue handler for Z snapshot tasks.
func (s Service) HandleSnapshotTask(ctx context.Context, payload []byte) error {
	var p snapshotPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("report: decode snapshot task: %w", err)
	}
	if p.ShiftID == uuid.Nil {
		return errors.New("report: snapshot task missing shift id")
	}
	err := s.SnapshotZ(ctx, p.ShiftID)
	if obs.ReportSnapshotTotal != nil {
		result := "ok"
		if err != nil {
			result = "error"
		}
		obs.ReportSnapshotTotal.WithLabelValues(result).Inc()
	}
	return err
}
