package service

import (
	"fmt"
	"time"

	"salonbook/internal/availability"
	"salonbook/internal/booking"
	"salonbook/internal/collision"
	"salonbook/internal/models"
)

// Services returns the catalog.
func (p *Portal) Services() []models.Service {
	doc := p.state.Snapshot()
	if doc.Services == nil {
		return []models.Service{}
	}
	return doc.Services
}

// EmployeesForService lists who can perform a service.
func (p *Portal) EmployeesForService(serviceID string) ([]models.Employee, error) {
	doc := p.state.Snapshot()
	if doc.FindService(serviceID) == nil {
		return nil, booking.NotFound("service", serviceID)
	}
	return booking.EmployeesForService(doc, serviceID), nil
}

// OpenMonths returns the bookable dates of the horizon grouped by month.
func (p *Portal) OpenMonths() []availability.Month {
	doc := p.state.Snapshot()
	dates := availability.ScheduleOf(doc).OpenDates(p.now(), p.engine.Config().HorizonDays)
	months := availability.GroupByMonth(dates)
	if months == nil {
		return []availability.Month{}
	}
	return months
}

// Slots lists the day's slot labels for a service and employee with their
// occupancy. Dates outside the horizon or closed yield no slots.
func (p *Portal) Slots(date, serviceID, employeeID string) ([]availability.SlotInfo, error) {
	day, err := availability.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}

	doc := p.state.Snapshot()
	svc := doc.FindService(serviceID)
	if svc == nil {
		return nil, booking.NotFound("service", serviceID)
	}

	offered := booking.EmployeesForService(doc, serviceID)
	emp := offered[0]
	if employeeID != "" {
		found := false
		for _, e := range offered {
			if e.ID == employeeID {
				emp, found = e, true
				break
			}
		}
		if !found {
			return nil, booking.NotFound("employee", employeeID)
		}
	}

	if !p.bookable(doc, day) {
		return []availability.SlotInfo{}, nil
	}

	gen := availability.NewGenerator(collision.NewDetector(doc.Appointments), p.engine.Config().SlotStep)
	slots, err := gen.Generate(availability.ScheduleOf(doc), day, emp.ID, svc.DurationTime())
	if err != nil {
		return nil, fmt.Errorf("generate slots for %s: %w", date, err)
	}
	return availability.ToSlotInfo(slots), nil
}

func (p *Portal) bookable(doc *models.Document, day time.Time) bool {
	key := availability.DateKey(day)
	for _, d := range availability.ScheduleOf(doc).OpenDates(p.now(), p.engine.Config().HorizonDays) {
		if availability.DateKey(d) == key {
			return true
		}
	}
	return false
}
