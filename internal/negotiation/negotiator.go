package negotiation

import (
	"fmt"
	"time"

	"salonbook/internal/booking"
	"salonbook/internal/collision"
	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Outcome of a reschedule attempt.
type Outcome string

const (
	OutcomeMoved        Outcome = "moved"
	OutcomeSwapProposed Outcome = "swap_proposed"
)

// Negotiator handles reschedules, swap acceptance and admin change proposals.
// Like the booking engine it reads snapshots and returns intents.
type Negotiator struct {
	engine *booking.Engine
	newID  domain.IDGenerator
}

// New creates a negotiator sharing the engine's slot rules and id generator.
func New(engine *booking.Engine) *Negotiator {
	return &Negotiator{engine: engine, newID: engine.IDs()}
}

// RescheduleRequest asks to move an appointment to a new date and time with
// the same employee.
type RescheduleRequest struct {
	AppointmentID string `json:"appointmentId"`
	ClientID      string `json:"clientId"`
	Date          string `json:"date"`
	Time          string `json:"time"`
}

// RescheduleResult describes what a reschedule did.
type RescheduleResult struct {
	Outcome Outcome
	// Appointment is the moved appointment, or the unchanged original when a
	// swap was proposed.
	Appointment models.Appointment
	// Target is the appointment holding the requested slot, set on swap proposals.
	Target  *models.Appointment
	Intents []domain.Intent
}

// Reschedule moves the appointment when the new slot is free, resetting it to
// pending. When the slot is held by another client the original is left alone
// and a swap request is attached to the occupying appointment instead.
func (n *Negotiator) Reschedule(doc *models.Document, req RescheduleRequest, now time.Time) (*RescheduleResult, error) {
	apt := doc.FindAppointment(req.AppointmentID)
	if apt == nil || apt.ClientID != req.ClientID {
		return nil, booking.NotFound("appointment", req.AppointmentID)
	}
	client := doc.FindClient(req.ClientID)
	if client == nil {
		return nil, booking.NotFound("client", req.ClientID)
	}

	if state := LockStateOf(*apt, client); !state.Unlocked() {
		if state == StateClosed {
			return nil, booking.Reject(booking.ReasonNotEligible, "appointment is cancelled")
		}
		return nil, booking.Reject(booking.ReasonNotEligible, "appointment is locked after arrival was confirmed")
	}

	start, err := n.engine.SlotStart(doc, req.Date, req.Time, now)
	if err != nil {
		return nil, err
	}
	end := start.Add(durationOf(doc, apt))

	target := collision.NewDetector(doc.Appointments, apt.ID).FindColliding(apt.EmployeeID, start, end)
	if target == nil {
		return n.move(doc, client, apt, start, end, now), nil
	}
	return n.proposeSwap(doc, client, apt, target, now)
}

func (n *Negotiator) move(doc *models.Document, client *models.Client, apt *models.Appointment, start, end, now time.Time) *RescheduleResult {
	before := booking.Describe(doc, apt)

	moved := *apt
	moved.StartTime = start
	moved.EndTime = end
	moved.Status = models.StatusPending
	moved.ConfirmedByClient = false

	out := booking.NewOutbox(doc, n.newID, now)
	out.Admin(fmt.Sprintf("%s moved %s to %s and awaits confirmation",
		client.Name, before, start.Format("2006-01-02 15:04")), models.NotificationInfo)

	intents := append([]domain.Intent{domain.UpdateAppointment{
		ID: apt.ID,
		Patch: domain.AppointmentPatch{
			StartTime:         domain.Ptr(start),
			EndTime:           domain.Ptr(end),
			Status:            domain.Ptr(models.StatusPending),
			ConfirmedByClient: domain.Ptr(false),
		},
	}}, out.Intents()...)

	return &RescheduleResult{Outcome: OutcomeMoved, Appointment: moved, Intents: intents}
}

func (n *Negotiator) proposeSwap(doc *models.Document, client *models.Client, apt, target *models.Appointment, now time.Time) (*RescheduleResult, error) {
	if target.ClientID == apt.ClientID {
		return nil, booking.Reject(booking.ReasonSlotOccupied, "you already have an appointment at that time")
	}
	if req := target.IncomingSwapRequest; req != nil {
		if req.FromAppointmentID != apt.ID {
			return nil, booking.Reject(booking.ReasonSlotOccupied, "that slot already has a pending swap request")
		}
		t := *target
		return &RescheduleResult{Outcome: OutcomeSwapProposed, Appointment: *apt, Target: &t}, nil
	}

	request := models.SwapRequest{FromAppointmentID: apt.ID, RequestingClientID: apt.ClientID}
	proposed := *target
	proposed.IncomingSwapRequest = &request

	out := booking.NewOutbox(doc, n.newID, now)
	out.Client(target.ClientID, fmt.Sprintf("%s asked to swap your %s with their %s. Open your appointments to accept.",
		client.Name, booking.Describe(doc, target), booking.Describe(doc, apt)), models.NotificationAlert)

	intents := append([]domain.Intent{domain.UpdateAppointment{
		ID:    target.ID,
		Patch: domain.AppointmentPatch{SwapRequest: &request},
	}}, out.Intents()...)

	return &RescheduleResult{
		Outcome:     OutcomeSwapProposed,
		Appointment: *apt,
		Target:      &proposed,
		Intents:     intents,
	}, nil
}

// SwapResult holds both appointments after an accepted swap.
type SwapResult struct {
	Requester models.Appointment
	Target    models.Appointment
	Intents   []domain.Intent
}

// AcceptSwap exchanges start times between the target appointment, owned by
// clientID, and the requester's appointment. Each side keeps its own
// duration. Statuses are left as they were.
func (n *Negotiator) AcceptSwap(doc *models.Document, targetID, clientID string, now time.Time) (*SwapResult, error) {
	target := doc.FindAppointment(targetID)
	if target == nil || target.ClientID != clientID {
		return nil, booking.NotFound("appointment", targetID)
	}
	req := target.IncomingSwapRequest
	if req == nil {
		return nil, booking.Reject(booking.ReasonInvalidSwap, "there is no swap request on this appointment")
	}
	if req.RequestingClientID == clientID {
		return nil, booking.Reject(booking.ReasonInvalidSwap, "a swap needs two different clients")
	}
	from := doc.FindAppointment(req.FromAppointmentID)
	if from == nil {
		return nil, booking.NotFound("appointment", req.FromAppointmentID)
	}
	if from.Status == models.StatusCancelled || target.Status == models.StatusCancelled {
		return nil, booking.Reject(booking.ReasonInvalidSwap, "one of the appointments was cancelled")
	}

	requester := *from
	requester.StartTime = target.StartTime
	requester.EndTime = target.StartTime.Add(durationOf(doc, from))
	requester.IncomingSwapRequest = nil

	swapped := *target
	swapped.StartTime = from.StartTime
	swapped.EndTime = from.StartTime.Add(durationOf(doc, target))
	swapped.IncomingSwapRequest = nil

	requesterName, targetName := clientName(doc, from.ClientID), clientName(doc, target.ClientID)
	out := booking.NewOutbox(doc, n.newID, now)
	out.Admin(fmt.Sprintf("Appointments swapped: %s now has %s, %s now has %s",
		requesterName, booking.Describe(doc, &requester), targetName, booking.Describe(doc, &swapped)), models.NotificationSuccess)
	out.Client(from.ClientID, fmt.Sprintf("Your swap request was accepted. Your new time: %s",
		booking.Describe(doc, &requester)), models.NotificationSuccess)

	intents := []domain.Intent{
		domain.UpdateAppointment{ID: from.ID, Patch: domain.AppointmentPatch{
			StartTime:        domain.Ptr(requester.StartTime),
			EndTime:          domain.Ptr(requester.EndTime),
			ClearSwapRequest: true,
		}},
		domain.UpdateAppointment{ID: target.ID, Patch: domain.AppointmentPatch{
			StartTime:        domain.Ptr(swapped.StartTime),
			EndTime:          domain.Ptr(swapped.EndTime),
			ClearSwapRequest: true,
		}},
	}
	intents = append(intents, out.Intents()...)

	return &SwapResult{Requester: requester, Target: swapped, Intents: intents}, nil
}

// ProposeChange attaches an admin-suggested time and price to an appointment
// and tells the client.
func (n *Negotiator) ProposeChange(doc *models.Document, appointmentID string, start time.Time, price float64, now time.Time) (*booking.Result, error) {
	apt := doc.FindAppointment(appointmentID)
	if apt == nil {
		return nil, booking.NotFound("appointment", appointmentID)
	}
	if apt.Status == models.StatusCancelled {
		return nil, booking.Reject(booking.ReasonNotEligible, "appointment is cancelled")
	}
	if price < 0 {
		return nil, fmt.Errorf("price must not be negative")
	}

	proposal := models.ChangeProposal{
		StartTime:      start,
		EndTime:        start.Add(durationOf(doc, apt)),
		PriceAtBooking: price,
	}
	updated := *apt
	updated.ChangeProposal = &proposal

	out := booking.NewOutbox(doc, n.newID, now)
	out.Client(apt.ClientID, fmt.Sprintf("The salon suggests moving your %s to %s for %.2f. Open your appointments to approve.",
		booking.Describe(doc, apt), start.Format("2006-01-02 15:04"), price), models.NotificationInfo)

	intents := append([]domain.Intent{domain.UpdateAppointment{
		ID:    apt.ID,
		Patch: domain.AppointmentPatch{ChangeProposal: &proposal},
	}}, out.Intents()...)
	return &booking.Result{Appointment: updated, Intents: intents}, nil
}

// ApproveChange copies the pending proposal onto the appointment and confirms it.
func (n *Negotiator) ApproveChange(doc *models.Document, appointmentID, clientID string) (*booking.Result, error) {
	apt := doc.FindAppointment(appointmentID)
	if apt == nil || apt.ClientID != clientID {
		return nil, booking.NotFound("appointment", appointmentID)
	}
	if apt.Status == models.StatusCancelled {
		return nil, booking.Reject(booking.ReasonNotEligible, "appointment is cancelled")
	}
	p := apt.ChangeProposal
	if p == nil {
		return nil, booking.Reject(booking.ReasonNotEligible, "there is no pending change to approve")
	}

	updated := *apt
	updated.StartTime = p.StartTime
	updated.EndTime = p.EndTime
	updated.PriceAtBooking = p.PriceAtBooking
	updated.Status = models.StatusConfirmed
	updated.ChangeProposal = nil

	return &booking.Result{
		Appointment: updated,
		Intents: []domain.Intent{domain.UpdateAppointment{
			ID: apt.ID,
			Patch: domain.AppointmentPatch{
				StartTime:           domain.Ptr(p.StartTime),
				EndTime:             domain.Ptr(p.EndTime),
				PriceAtBooking:      domain.Ptr(p.PriceAtBooking),
				Status:              domain.Ptr(models.StatusConfirmed),
				ClearChangeProposal: true,
			},
		}},
	}, nil
}

// durationOf uses the service length, falling back to the booked span when
// the service was deleted.
func durationOf(doc *models.Document, apt *models.Appointment) time.Duration {
	if svc := doc.FindService(apt.ServiceID); svc != nil && svc.Duration > 0 {
		return svc.DurationTime()
	}
	return apt.EndTime.Sub(apt.StartTime)
}

func clientName(doc *models.Document, id string) string {
	if c := doc.FindClient(id); c != nil {
		return c.Name
	}
	return id
}
