package shift

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fluxretail/backend-pos/internal/events"
	"github.com/fluxretail/backend-pos/internal/lock"
	"github.com/fluxretail/backend-pos/internal/money"
	"github.com/fluxretail/backend-pos/internal/obs"
)

// Store is the persistence contract for shift sessions.
type Store interface {
	OpenShift(ctx context.Context, startingCash money.Money, now time.Time) (Session, error)
	CloseShift(ctx context.Context, id uuid.UUID, endingCash money.Money, now time.Time) (Session, error)
	GetShift(ctx context.Context, id uuid.UUID) (Session, error)
	CurrentShift(ctx context.Context) (*Session, error)
}

// Service manages the clock-in/clock-out lifecycle.
type Service struct {
	Store Store
	Bus   *events.Bus
	Lock  *lock.Locker
	Now   func() time.Time
	Log   zerolog.Logger
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

type shiftEventPayload struct {
	ShiftID uuid.UUID `json:"shiftId"`
	Status  string    `json:"status"`
}

func (s Service) emit(ctx context.Context, topic string, sess Session) {
	if s.Bus == nil {
		return
	}
	_, err := s.Bus.Emit(ctx, topic, sess.ID, shiftEventPayload{ShiftID: sess.ID, Status: sess.Status})
	if err != nil {
		s.Log.Warn().Err(err).Str("topic", topic).Stringer("shift_id", sess.ID).Msg("event emit failed")
	}
}

// Open starts a shift with the counted drawer float. A Redis lock serialises
// concurrent opens so the single-open-shift check cannot race.
func (s Service) Open(ctx context.Context, startingCash money.Money) (Session, error) {
	if startingCash < 0 {
		return Session{}, money.ErrNegative
	}
	var sess Session
	open := func(ctx context.Context) error {
		var err error
		sess, err = s.Store.OpenShift(ctx, startingCash, s.now())
		return err
	}
	var err error
	if s.Lock != nil {
		err = s.Lock.WithLock(ctx, "lock:shift:open", 10*time.Second, open)
	} else {
		err = open(ctx)
	}
	if err != nil {
		return Session{}, err
	}
	s.emit(ctx, events.TopicShiftOpened, sess)
	return sess, nil
}

// Close ends the shift with the counted drawer amount. The close event
// schedules the Z-report snapshot downstream.
func (s Service) Close(ctx context.Context, id uuid.UUID, endingCash money.Money) (Session, error) {
	if endingCash < 0 {
		return Session{}, money.ErrNegative
	}
	sess, err := s.Store.CloseShift(ctx, id, endingCash, s.now())
	if err != nil {
		return Session{}, err
	}
	if obs.ShiftClosedTotal != nil {
		obs.ShiftClosedTotal.Inc()
	}
	s.emit(ctx, events.TopicShiftClosed, sess)
	return sess, nil
}

// Current returns the open shift, or nil when the register is closed.
func (s Service) Current(ctx context.Context) (*Session, error) {
	return s.Store.CurrentShift(ctx)
}

// Get loads one shift by id.
func (s Service) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	return s.Store.GetShift(ctx, id)
}
