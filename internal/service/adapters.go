package service

import (
	"context"
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/shared/audit"
	"salonbook/shared/reminders"
)

// PendingArrivals lists confirmed appointments the client has not confirmed
// yet that start within window.
func (p *Portal) PendingArrivals(_ context.Context, window time.Duration) ([]reminders.Appointment, error) {
	doc := p.state.Snapshot()
	now := p.now()

	var out []reminders.Appointment
	for i := range doc.Appointments {
		a := &doc.Appointments[i]
		if a.Status != models.StatusConfirmed || a.ConfirmedByClient {
			continue
		}
		until := a.StartTime.Sub(now)
		if until <= 0 || until > window {
			continue
		}
		out = append(out, reminders.Appointment{
			ID:        a.ID,
			ClientID:  a.ClientID,
			StartTime: a.StartTime,
			Summary:   booking.Describe(doc, a),
		})
	}
	return out, nil
}

// SendReminder pushes an arrival reminder to the client's notifications.
func (p *Portal) SendReminder(ctx context.Context, apt reminders.Appointment) error {
	return p.mutate(ctx, "send_reminder", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindClient(apt.ClientID) == nil {
			return nil, booking.NotFound("client", apt.ClientID)
		}
		out := booking.NewOutbox(doc, p.newID, p.now())
		out.Client(apt.ClientID, fmt.Sprintf("Please confirm your arrival for %s", apt.Summary), models.NotificationAlert)
		return out.Intents(), nil
	}, clientAttr(apt.ClientID), appointmentAttr(apt.ID))
}

// AppointmentRows returns report rows for appointments starting in [from, to).
func (p *Portal) AppointmentRows(_ context.Context, from, to time.Time) ([]audit.Row, error) {
	var rows []audit.Row
	for _, a := range p.Appointments() {
		if a.StartTime.Before(from) || !a.StartTime.Before(to) {
			continue
		}
		local := a.StartTime.In(time.Local)
		rows = append(rows, audit.Row{
			Date:     local.Format(availability.DateLayout),
			Time:     local.Format(availability.ClockLayout),
			Client:   a.ClientName,
			Phone:    a.ClientPhone,
			Service:  a.ServiceName,
			Employee: a.EmployeeName,
			Status:   string(a.Status),
			Price:    a.PriceAtBooking,
		})
	}
	return rows, nil
}

var (
	_ reminders.AppointmentSource = (*Portal)(nil)
	_ reminders.Notifier          = (*Portal)(nil)
	_ audit.RowSource             = (*Portal)(nil)
)
