package shift

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/fluxretail/backend-pos/internal/money"
)

// Session states.
const (
	StatusOpen   = "OPEN"
	StatusClosed = "CLOSED"
)

// Session is one register shift. It is created at clock-in and closed at
// clock-out; reporting only reads it to bound a transaction window.
type Session struct {
	ID           uuid.UUID    `json:"id"`
	StartTime    time.Time    `json:"startTime"`
	EndTime      *time.Time   `json:"endTime,omitempty"`
	StartingCash money.Money  `json:"startingCash"`
	EndingCash   *money.Money `json:"endingCash,omitempty"`
	Status       string       `json:"status"`
}

// Window returns the reporting bounds for the session. Open shifts run up to
// the supplied instant.
func (s Session) Window(now time.Time) (time.Time, time.Time) {
	end := now
	if s.EndTime != nil {
		end = *s.EndTime
	}
	return s.StartTime, end
}

var (
	// ErrNotFound is returned when no shift matches the id.
	ErrNotFound = errors.New("shift: not found")
	// ErrAlreadyOpen rejects opening a second concurrent shift.
	ErrAlreadyOpen = errors.New("shift: a shift is already open")
	// ErrAlreadyClosed rejects closing a shift twice.
	ErrAlreadyClosed = errors.New("shift: shift already closed")
)
