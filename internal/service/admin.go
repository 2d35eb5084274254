package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/config"
	"salonbook/internal/domain"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
)

// closedDay is what an unset weekday or a toggled-on override reads as.
var closedDay = models.DayConfig{IsOpen: false, Start: "09:00", End: "17:00"}

// Appointments lists every appointment with client details, soonest first.
func (p *Portal) Appointments() []AppointmentView {
	doc := p.state.Snapshot()
	out := make([]AppointmentView, 0, len(doc.Appointments))
	for _, a := range doc.Appointments {
		v := p.viewOf(doc, a)
		if c := doc.FindClient(a.ClientID); c != nil {
			v.ClientName, v.ClientPhone = c.Name, c.Phone
		}
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out
}

// Stats is the admin dashboard summary.
type Stats struct {
	Pending      []AppointmentView `json:"pending"`
	Today        int               `json:"today"`
	Week         int               `json:"week"`
	Month        int               `json:"month"`
	MonthRevenue float64           `json:"monthRevenue"`
}

// Stats counts non-cancelled appointments for today, the Sunday-based week
// and the calendar month, plus this month's confirmed revenue.
func (p *Portal) Stats() Stats {
	now := p.now().In(time.Local)
	today := availability.StartOfDay(now)
	tomorrow := today.AddDate(0, 0, 1)
	weekStart := today.AddDate(0, 0, -int(today.Weekday()))
	weekEnd := weekStart.AddDate(0, 0, 7)
	monthStart := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.Local)
	monthEnd := monthStart.AddDate(0, 1, 0)

	within := func(t, from, to time.Time) bool { return !t.Before(from) && t.Before(to) }

	stats := Stats{Pending: []AppointmentView{}}
	for _, a := range p.Appointments() {
		if a.Status == models.StatusPending {
			stats.Pending = append(stats.Pending, a)
		}
		if a.Status == models.StatusCancelled {
			continue
		}
		if within(a.StartTime, today, tomorrow) {
			stats.Today++
		}
		if within(a.StartTime, weekStart, weekEnd) {
			stats.Week++
		}
		if within(a.StartTime, monthStart, monthEnd) {
			stats.Month++
			if a.Status == models.StatusConfirmed {
				stats.MonthRevenue += a.PriceAtBooking
			}
		}
	}
	return stats
}

// SetStatus confirms or cancels an appointment.
func (p *Portal) SetStatus(ctx context.Context, appointmentID string, status models.AppointmentStatus) (*models.Appointment, error) {
	var out models.Appointment
	err := p.mutate(ctx, "set_status", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.engine.SetStatus(doc, appointmentID, status)
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, appointmentAttr(appointmentID), attribute.String("salon.status", string(status)))
	if err != nil {
		return nil, err
	}
	metrics.IncStatusChange(string(status))
	return &out, nil
}

// ProposeChange offers the client a new time and price for an appointment.
func (p *Portal) ProposeChange(ctx context.Context, appointmentID, date, clock string, price float64) (*models.Appointment, error) {
	start, err := availability.ParseDateTime(date, clock)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}

	var out models.Appointment
	err = p.mutate(ctx, "propose_change", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.negotiator.ProposeChange(doc, appointmentID, start, price, p.now())
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, appointmentAttr(appointmentID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AttachReceipt stores a receipt image on the appointment.
func (p *Portal) AttachReceipt(ctx context.Context, appointmentID, image string) (*models.Appointment, error) {
	if strings.TrimSpace(image) == "" {
		return nil, fmt.Errorf("%w: receipt image is empty", ErrInvalidInput)
	}
	var out models.Appointment
	err := p.mutate(ctx, "attach_receipt", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.engine.AttachReceipt(doc, appointmentID, image, p.now())
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, appointmentAttr(appointmentID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// UpsertService creates or replaces a catalog entry. Booked appointments
// keep the price they were booked at.
func (p *Portal) UpsertService(ctx context.Context, svc models.Service) (*models.Service, error) {
	svc.Name = strings.TrimSpace(svc.Name)
	switch {
	case svc.Name == "":
		return nil, fmt.Errorf("%w: service name is required", ErrInvalidInput)
	case svc.Duration <= 0:
		return nil, fmt.Errorf("%w: service duration must be positive", ErrInvalidInput)
	case svc.Price < 0:
		return nil, fmt.Errorf("%w: service price must not be negative", ErrInvalidInput)
	}
	if svc.ID == "" {
		svc.ID = p.newID()
	}

	err := p.mutate(ctx, "upsert_service", func(*models.Document) ([]domain.Intent, error) {
		return []domain.Intent{domain.UpsertService{Service: svc}}, nil
	}, attribute.String("salon.service_id", svc.ID))
	if err != nil {
		return nil, err
	}
	return &svc, nil
}

// DeleteService removes a service from the catalog.
func (p *Portal) DeleteService(ctx context.Context, id string) error {
	return p.mutate(ctx, "delete_service", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindService(id) == nil {
			return nil, booking.NotFound("service", id)
		}
		return []domain.Intent{domain.DeleteService{ID: id}}, nil
	}, attribute.String("salon.service_id", id))
}

// UpsertEmployee creates or replaces a staff member. A new employee without
// services is assigned every current service.
func (p *Portal) UpsertEmployee(ctx context.Context, emp models.Employee) (*models.Employee, error) {
	emp.Name = strings.TrimSpace(emp.Name)
	if emp.Name == "" {
		return nil, fmt.Errorf("%w: employee name is required", ErrInvalidInput)
	}
	if emp.ID == "" {
		emp.ID = p.newID()
	}
	if emp.ID == models.DefaultEmployeeID {
		return nil, fmt.Errorf("%w: %q is reserved", ErrInvalidInput, emp.ID)
	}

	err := p.mutate(ctx, "upsert_employee", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindEmployee(emp.ID) == nil && emp.Services == nil {
			emp.Services = make([]string, 0, len(doc.Services))
			for _, s := range doc.Services {
				emp.Services = append(emp.Services, s.ID)
			}
		}
		return []domain.Intent{domain.UpsertEmployee{Employee: emp}}, nil
	}, attribute.String("salon.employee_id", emp.ID))
	if err != nil {
		return nil, err
	}
	return &emp, nil
}

// DeleteEmployee removes a staff member. Their appointments stay booked.
func (p *Portal) DeleteEmployee(ctx context.Context, id string) error {
	return p.mutate(ctx, "delete_employee", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindEmployee(id) == nil {
			return nil, booking.NotFound("employee", id)
		}
		return []domain.Intent{domain.DeleteEmployee{ID: id}}, nil
	}, attribute.String("salon.employee_id", id))
}

// BusinessHours returns the weekly entry for weekday, closed when unset.
func (p *Portal) BusinessHours(weekday time.Weekday) models.DayConfig {
	doc := p.state.Snapshot()
	if cfg, ok := doc.BusinessHours[int(weekday)]; ok {
		return cfg
	}
	return closedDay
}

// SetBusinessHours replaces one weekday of the weekly schedule.
func (p *Portal) SetBusinessHours(ctx context.Context, weekday int, day models.DayConfig) error {
	if weekday < 0 || weekday > 6 {
		return fmt.Errorf("%w: weekday %d, must be 0-6 (0=Sun)", ErrInvalidInput, weekday)
	}
	if err := config.ValidateDay(day, fmt.Sprintf("business_hours[%d]", weekday)); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return p.mutate(ctx, "set_business_hours", func(*models.Document) ([]domain.Intent, error) {
		return []domain.Intent{domain.SetBusinessHours{Weekday: time.Weekday(weekday), Config: day}}, nil
	}, attribute.Int("salon.weekday", weekday))
}

// ToggleDateOverride removes the override for date, or closes the date when
// it has none. It returns the override now in effect, nil when removed.
func (p *Portal) ToggleDateOverride(ctx context.Context, date string) (*models.DayConfig, error) {
	if _, err := availability.ParseDate(date); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	var result *models.DayConfig
	err := p.mutate(ctx, "toggle_override", func(doc *models.Document) ([]domain.Intent, error) {
		if _, ok := doc.DateOverrides[date]; ok {
			result = nil
			return []domain.Intent{domain.ClearDateOverride{Date: date}}, nil
		}
		cfg := closedDay
		result = &cfg
		return []domain.Intent{domain.SetDateOverride{Date: date, Config: cfg}}, nil
	}, attribute.String("salon.date", date))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetDateOverride sets explicit hours for a date.
func (p *Portal) SetDateOverride(ctx context.Context, date string, day models.DayConfig) error {
	if _, err := availability.ParseDate(date); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	if err := config.ValidateDay(day, "date_overrides["+date+"]"); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	return p.mutate(ctx, "set_override", func(*models.Document) ([]domain.Intent, error) {
		return []domain.Intent{domain.SetDateOverride{Date: date, Config: day}}, nil
	}, attribute.String("salon.date", date))
}

// SetRescheduleOverride lets a client move confirmed appointments after
// confirming arrival, or takes that permission away.
func (p *Portal) SetRescheduleOverride(ctx context.Context, clientID string, allowed bool) error {
	return p.mutate(ctx, "reschedule_override", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindClient(clientID) == nil {
			return nil, booking.NotFound("client", clientID)
		}
		return []domain.Intent{domain.UpdateClient{
			ID:    clientID,
			Patch: domain.ClientPatch{CanRescheduleConfirmed: domain.Ptr(allowed)},
		}}, nil
	}, clientAttr(clientID))
}

// AdminNotifications returns the admin feed, newest first.
func (p *Portal) AdminNotifications() []models.Notification {
	doc := p.state.Snapshot()
	if doc.AdminNotifications == nil {
		return []models.Notification{}
	}
	return doc.AdminNotifications
}

// MarkAdminNotificationsRead flags the whole admin feed as read.
func (p *Portal) MarkAdminNotificationsRead(ctx context.Context) error {
	return p.mutate(ctx, "admin_notifications_read", func(*models.Document) ([]domain.Intent, error) {
		return []domain.Intent{domain.MarkAdminNotificationsRead{}}, nil
	})
}

// ApplySchedule pushes a reloaded schedule file into the document.
func (p *Portal) ApplySchedule(ctx context.Context, sc *config.ScheduleConfig) error {
	if sc == nil {
		return nil
	}
	err := p.mutate(ctx, "apply_schedule", func(*models.Document) ([]domain.Intent, error) {
		return sc.Intents(), nil
	})
	if err != nil {
		return err
	}
	p.logger.Info().
		Int("weekdays", len(sc.BusinessHours)).
		Int("overrides", len(sc.DateOverrides)).
		Msg("schedule applied")
	return nil
}
