// Package booking turns service, employee, date and time selections into
// appointments and handles the appointment status lifecycle.
package booking

import (
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/collision"
	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// Config holds booking rules.
type Config struct {
	// HorizonDays is how many days ahead, starting tomorrow, may be booked.
	HorizonDays int
	// SlotStep is the spacing between slot labels.
	SlotStep time.Duration
	// ArrivalWindow is how long before the start a client may confirm arrival.
	ArrivalWindow time.Duration
}

// DefaultConfig returns the standard salon rules.
func DefaultConfig() Config {
	return Config{
		HorizonDays:   availability.DefaultHorizonDays,
		SlotStep:      availability.DefaultSlotStep,
		ArrivalWindow: 48 * time.Hour,
	}
}

// Engine validates and creates appointments. It works on document snapshots
// and returns intents; it never mutates the snapshot.
type Engine struct {
	cfg   Config
	newID domain.IDGenerator
}

// NewEngine creates a booking engine.
func NewEngine(cfg Config, newID domain.IDGenerator) *Engine {
	def := DefaultConfig()
	if cfg.HorizonDays <= 0 {
		cfg.HorizonDays = def.HorizonDays
	}
	if cfg.SlotStep <= 0 {
		cfg.SlotStep = def.SlotStep
	}
	if cfg.ArrivalWindow <= 0 {
		cfg.ArrivalWindow = def.ArrivalWindow
	}
	if newID == nil {
		newID = domain.NewUUID
	}
	return &Engine{cfg: cfg, newID: newID}
}

// Config returns the rules the engine runs with.
func (e *Engine) Config() Config {
	return e.cfg
}

// IDs returns the engine's identifier generator.
func (e *Engine) IDs() domain.IDGenerator {
	return e.newID
}

// Request is a client's final selection.
type Request struct {
	ClientID   string `json:"clientId"`
	ServiceID  string `json:"serviceId"`
	EmployeeID string `json:"employeeId"`
	Date       string `json:"date"` // "YYYY-MM-DD"
	Time       string `json:"time"` // "HH:MM"
}

// Result is the outcome of an accepted operation.
type Result struct {
	Appointment models.Appointment
	Intents     []domain.Intent
}

// EmployeesForService lists who can be picked for a service: the employees
// assigned to it, otherwise everyone, otherwise the default employee.
func EmployeesForService(doc *models.Document, serviceID string) []models.Employee {
	var assigned []models.Employee
	for _, emp := range doc.Employees {
		if emp.Serves(serviceID) {
			assigned = append(assigned, emp)
		}
	}
	if len(assigned) > 0 {
		return assigned
	}
	if len(doc.Employees) > 0 {
		return append([]models.Employee(nil), doc.Employees...)
	}
	def := models.DefaultEmployee()
	def.Services = []string{serviceID}
	return []models.Employee{def}
}

// HasActiveBooking reports whether the client holds a future pending or
// confirmed appointment for the service.
func HasActiveBooking(doc *models.Document, clientID, serviceID string, now time.Time) bool {
	for _, a := range doc.Appointments {
		if a.ClientID == clientID && a.ServiceID == serviceID && a.Status.Active() && a.StartTime.After(now) {
			return true
		}
	}
	return false
}

// Book validates a selection and produces the new appointment.
func (e *Engine) Book(doc *models.Document, req Request, now time.Time) (*Result, error) {
	client := doc.FindClient(req.ClientID)
	if client == nil {
		return nil, NotFound("client", req.ClientID)
	}
	service := doc.FindService(req.ServiceID)
	if service == nil {
		return nil, NotFound("service", req.ServiceID)
	}

	if HasActiveBooking(doc, client.ID, service.ID, now) {
		return nil, Reject(ReasonAlreadyBooked,
			"you already have an upcoming %s appointment; a new one can be booked after it", service.Name)
	}

	employee, err := pickEmployee(doc, service.ID, req.EmployeeID)
	if err != nil {
		return nil, err
	}

	start, err := e.SlotStart(doc, req.Date, req.Time, now)
	if err != nil {
		return nil, err
	}
	end := start.Add(service.DurationTime())

	if collision.NewDetector(doc.Appointments).IsOccupied(employee.ID, start, end) {
		return nil, Reject(ReasonSlotOccupied, "%s at %s is already taken", req.Date, req.Time)
	}

	apt := models.Appointment{
		ID:                e.newID(),
		ClientID:          client.ID,
		ServiceID:         service.ID,
		EmployeeID:        employee.ID,
		StartTime:         start,
		EndTime:           end,
		Status:            models.StatusPending,
		ConfirmedByClient: false,
		PriceAtBooking:    service.Price,
	}

	out := NewOutbox(doc, e.newID, now)
	out.Admin(fmt.Sprintf("New appointment: %s booked %s on %s at %s",
		client.Name, service.Name, req.Date, req.Time), models.NotificationInfo)

	intents := append([]domain.Intent{domain.AddAppointment{Appointment: apt}}, out.Intents()...)
	return &Result{Appointment: apt, Intents: intents}, nil
}

func pickEmployee(doc *models.Document, serviceID, employeeID string) (models.Employee, error) {
	offered := EmployeesForService(doc, serviceID)
	if employeeID == "" {
		return offered[0], nil
	}
	for _, emp := range offered {
		if emp.ID == employeeID {
			return emp, nil
		}
	}
	return models.Employee{}, NotFound("employee", employeeID)
}

// SlotStart resolves a "YYYY-MM-DD" date and "HH:MM" label to a start
// instant, rejecting dates outside the open horizon and times off the day's grid.
func (e *Engine) SlotStart(doc *models.Document, date, clock string, now time.Time) (time.Time, error) {
	day, err := availability.ParseDate(date)
	if err != nil {
		return time.Time{}, Reject(ReasonInvalidSlot, "%s", err.Error())
	}

	schedule := availability.ScheduleOf(doc)
	if !e.withinHorizon(day, now) || !schedule.Resolve(day).IsOpen {
		return time.Time{}, Reject(ReasonInvalidSlot, "%s is not open for booking", date)
	}

	labels, err := schedule.SlotsFor(day, e.cfg.SlotStep)
	if err != nil {
		return time.Time{}, fmt.Errorf("slots for %s: %w", date, err)
	}
	for _, l := range labels {
		if l == clock {
			return availability.At(day, clock)
		}
	}
	return time.Time{}, Reject(ReasonInvalidSlot, "%s is not a bookable time on %s", clock, date)
}

func (e *Engine) withinHorizon(day, now time.Time) bool {
	today := availability.StartOfDay(now)
	first := today.AddDate(0, 0, 1)
	last := today.AddDate(0, 0, e.cfg.HorizonDays)
	return !day.Before(first) && !day.After(last)
}

// SetStatus applies an admin decision. Only pending→confirmed and
// pending/confirmed→cancelled are allowed. Cancelling also drops a pending
// change proposal; no other field changes.
func (e *Engine) SetStatus(doc *models.Document, appointmentID string, status models.AppointmentStatus) (*Result, error) {
	apt := doc.FindAppointment(appointmentID)
	if apt == nil {
		return nil, NotFound("appointment", appointmentID)
	}

	switch {
	case apt.Status == status:
		return &Result{Appointment: *apt}, nil
	case apt.Status == models.StatusCancelled:
		return nil, Reject(ReasonNotEligible, "appointment is cancelled")
	case status == models.StatusPending:
		return nil, Reject(ReasonNotEligible, "status cannot go back to pending")
	case status != models.StatusConfirmed && status != models.StatusCancelled:
		return nil, fmt.Errorf("unknown status %q", status)
	}

	updated := *apt
	updated.Status = status
	patch := domain.AppointmentPatch{Status: domain.Ptr(status)}
	if status == models.StatusCancelled && apt.ChangeProposal != nil {
		updated.ChangeProposal = nil
		patch.ClearChangeProposal = true
	}
	return &Result{
		Appointment: updated,
		Intents:     []domain.Intent{domain.UpdateAppointment{ID: apt.ID, Patch: patch}},
	}, nil
}

// ConfirmArrival records the client's attendance confirmation. It is only
// allowed for confirmed appointments starting within the arrival window.
func (e *Engine) ConfirmArrival(doc *models.Document, appointmentID, clientID string, now time.Time) (*Result, error) {
	apt, err := ownedAppointment(doc, appointmentID, clientID)
	if err != nil {
		return nil, err
	}
	if apt.ConfirmedByClient {
		return &Result{Appointment: *apt}, nil
	}
	if apt.Status != models.StatusConfirmed {
		return nil, Reject(ReasonNotEligible, "arrival can be confirmed only after the salon confirms the appointment")
	}

	until := apt.StartTime.Sub(now)
	if until <= 0 || until > e.cfg.ArrivalWindow {
		return nil, Reject(ReasonOutsideWindow, "arrival can be confirmed during the %s before the appointment", e.cfg.ArrivalWindow)
	}

	updated := *apt
	updated.ConfirmedByClient = true
	return &Result{
		Appointment: updated,
		Intents: []domain.Intent{domain.UpdateAppointment{
			ID:    apt.ID,
			Patch: domain.AppointmentPatch{ConfirmedByClient: domain.Ptr(true)},
		}},
	}, nil
}

// InArrivalWindow reports whether a confirmed, not yet client-confirmed
// appointment can have its arrival confirmed at now.
func (e *Engine) InArrivalWindow(apt models.Appointment, now time.Time) bool {
	until := apt.StartTime.Sub(now)
	return apt.Status == models.StatusConfirmed && !apt.ConfirmedByClient && until > 0 && until <= e.cfg.ArrivalWindow
}

// RequestReceipt flags the appointment and tells the admin a receipt is wanted.
func (e *Engine) RequestReceipt(doc *models.Document, appointmentID, clientID string, now time.Time) (*Result, error) {
	apt, err := ownedAppointment(doc, appointmentID, clientID)
	if err != nil {
		return nil, err
	}
	if apt.Status == models.StatusCancelled {
		return nil, Reject(ReasonNotEligible, "appointment is cancelled")
	}

	name := clientID
	if client := doc.FindClient(clientID); client != nil {
		name = client.Name
	}
	out := NewOutbox(doc, e.newID, now)
	out.Admin(fmt.Sprintf("Receipt requested by %s for %s", name, describe(doc, apt)), models.NotificationInfo)

	updated := *apt
	updated.ReceiptRequested = true
	intents := append([]domain.Intent{domain.UpdateAppointment{
		ID:    apt.ID,
		Patch: domain.AppointmentPatch{ReceiptRequested: domain.Ptr(true)},
	}}, out.Intents()...)
	return &Result{Appointment: updated, Intents: intents}, nil
}

// AttachReceipt stores the receipt image and tells the client it is ready.
func (e *Engine) AttachReceipt(doc *models.Document, appointmentID, image string, now time.Time) (*Result, error) {
	apt := doc.FindAppointment(appointmentID)
	if apt == nil {
		return nil, NotFound("appointment", appointmentID)
	}
	if image == "" {
		return nil, fmt.Errorf("receipt image is empty")
	}

	out := NewOutbox(doc, e.newID, now)
	out.Client(apt.ClientID, fmt.Sprintf("Your receipt for %s is ready", describe(doc, apt)), models.NotificationSuccess)

	updated := *apt
	updated.ReceiptImage = image
	updated.ReceiptRequested = false
	intents := append([]domain.Intent{domain.UpdateAppointment{
		ID: apt.ID,
		Patch: domain.AppointmentPatch{
			ReceiptImage:     domain.Ptr(image),
			ReceiptRequested: domain.Ptr(false),
		},
	}}, out.Intents()...)
	return &Result{Appointment: updated, Intents: intents}, nil
}

func ownedAppointment(doc *models.Document, appointmentID, clientID string) (*models.Appointment, error) {
	apt := doc.FindAppointment(appointmentID)
	if apt == nil || apt.ClientID != clientID {
		return nil, NotFound("appointment", appointmentID)
	}
	return apt, nil
}

// Describe renders an appointment for notification text.
func Describe(doc *models.Document, apt *models.Appointment) string {
	return describe(doc, apt)
}

func describe(doc *models.Document, apt *models.Appointment) string {
	name := apt.ServiceID
	if svc := doc.FindService(apt.ServiceID); svc != nil {
		name = svc.Name
	}
	local := apt.StartTime.In(time.Local)
	return fmt.Sprintf("%s on %s at %s", name, local.Format(availability.DateLayout), local.Format(availability.ClockLayout))
}
