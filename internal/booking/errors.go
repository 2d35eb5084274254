package booking

import (
	"errors"
	"fmt"
)

// Reason classifies a validation rejection.
type Reason string

const (
	ReasonAlreadyBooked Reason = "already_booked"
	ReasonSlotOccupied  Reason = "slot_occupied"
	ReasonInvalidSlot   Reason = "invalid_slot"
	ReasonNotEligible   Reason = "not_eligible"
	ReasonOutsideWindow Reason = "outside_window"
	ReasonInvalidSwap   Reason = "invalid_swap"
)

// Rejection is returned when a request is well formed but violates a booking rule.
// The document is left unchanged.
type Rejection struct {
	Reason  Reason
	Message string
}

func (r *Rejection) Error() string {
	if r.Message == "" {
		return string(r.Reason)
	}
	return r.Message
}

// Is matches rejections by reason so errors.Is works against the sentinels below.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrAlreadyBooked = &Rejection{Reason: ReasonAlreadyBooked}
	ErrSlotOccupied  = &Rejection{Reason: ReasonSlotOccupied}
	ErrInvalidSlot   = &Rejection{Reason: ReasonInvalidSlot}
	ErrNotEligible   = &Rejection{Reason: ReasonNotEligible}
	ErrOutsideWindow = &Rejection{Reason: ReasonOutsideWindow}
	ErrInvalidSwap   = &Rejection{Reason: ReasonInvalidSwap}

	// ErrNotFound marks a reference to a missing service, employee, client or
	// appointment. Callers treat it as a soft failure.
	ErrNotFound = errors.New("not found")
)

// Reject builds a rejection with a user-facing message.
func Reject(reason Reason, format string, args ...interface{}) *Rejection {
	return &Rejection{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// IsRejection extracts a rejection from err.
func IsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

// NotFound wraps ErrNotFound with the missing entity.
func NotFound(what, id string) error {
	return fmt.Errorf("%s %q: %w", what, id, ErrNotFound)
}
