package domain

import (
	"time"

	"salonbook/internal/models"
)

// AppointmentPatch lists the fields of an appointment to overwrite.
// Nil pointers leave the field untouched.
type AppointmentPatch struct {
	StartTime         *time.Time
	EndTime           *time.Time
	Status            *models.AppointmentStatus
	ConfirmedByClient *bool
	PriceAtBooking    *float64
	ReceiptImage      *string
	ReceiptRequested  *bool

	ChangeProposal      *models.ChangeProposal
	ClearChangeProposal bool
	SwapRequest         *models.SwapRequest
	ClearSwapRequest    bool
}

// Apply writes the patch onto a.
func (p AppointmentPatch) Apply(a *models.Appointment) {
	if p.StartTime != nil {
		a.StartTime = *p.StartTime
	}
	if p.EndTime != nil {
		a.EndTime = *p.EndTime
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ConfirmedByClient != nil {
		a.ConfirmedByClient = *p.ConfirmedByClient
	}
	if p.PriceAtBooking != nil {
		a.PriceAtBooking = *p.PriceAtBooking
	}
	if p.ReceiptImage != nil {
		a.ReceiptImage = *p.ReceiptImage
	}
	if p.ReceiptRequested != nil {
		a.ReceiptRequested = *p.ReceiptRequested
	}
	if p.ClearChangeProposal {
		a.ChangeProposal = nil
	}
	if p.ChangeProposal != nil {
		cp := *p.ChangeProposal
		a.ChangeProposal = &cp
	}
	if p.ClearSwapRequest {
		a.IncomingSwapRequest = nil
	}
	if p.SwapRequest != nil {
		sr := *p.SwapRequest
		a.IncomingSwapRequest = &sr
	}
}

// MovesTime reports whether the patch changes the appointment's interval.
func (p AppointmentPatch) MovesTime() bool {
	return p.StartTime != nil || p.EndTime != nil
}

// ClientPatch lists the client fields to overwrite.
type ClientPatch struct {
	Name                   *string
	Password               *string
	CanRescheduleConfirmed *bool
	LastVisit              *time.Time
	Notes                  []string
}

// Apply writes the patch onto c.
func (p ClientPatch) Apply(c *models.Client) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Password != nil {
		c.Password = *p.Password
	}
	if p.CanRescheduleConfirmed != nil {
		c.CanRescheduleConfirmed = *p.CanRescheduleConfirmed
	}
	if p.LastVisit != nil {
		lv := *p.LastVisit
		c.LastVisit = &lv
	}
	if p.Notes != nil {
		c.Notes = append([]string(nil), p.Notes...)
	}
}

// Ptr returns a pointer to v. Handy for building patches.
func Ptr[T any](v T) *T {
	return &v
}
