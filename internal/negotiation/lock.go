// Package negotiation moves existing appointments to new slots and mediates
// slot swaps between two clients when the requested slot is taken.
package negotiation

import "salonbook/internal/models"

// LockState tells whether a client may still move an appointment.
type LockState string

const (
	StateUnlockedPending             LockState = "unlocked_pending"
	StateUnlockedConfirmedNotArrived LockState = "unlocked_confirmed_not_arrived"
	StateLockedConfirmedArrived      LockState = "locked_confirmed_arrived"
	StateAdminOverrideUnlocked       LockState = "admin_override_unlocked"
	StateClosed                      LockState = "closed"
)

// LockStateOf derives the reschedule state of an appointment. client may be
// nil when the owner is unknown, in which case no admin override applies.
func LockStateOf(apt models.Appointment, client *models.Client) LockState {
	switch apt.Status {
	case models.StatusPending:
		return StateUnlockedPending
	case models.StatusConfirmed:
		if !apt.ConfirmedByClient {
			return StateUnlockedConfirmedNotArrived
		}
		if client != nil && client.CanRescheduleConfirmed {
			return StateAdminOverrideUnlocked
		}
		return StateLockedConfirmedArrived
	default:
		return StateClosed
	}
}

// Unlocked reports whether the state allows a reschedule.
func (s LockState) Unlocked() bool {
	switch s {
	case StateUnlockedPending, StateUnlockedConfirmedNotArrived, StateAdminOverrideUnlocked:
		return true
	}
	return false
}

// CanReschedule reports whether the client may move the appointment.
func CanReschedule(apt models.Appointment, client *models.Client) bool {
	return LockStateOf(apt, client).Unlocked()
}
