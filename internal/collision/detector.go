// Package collision detects time overlaps between appointments of the same employee.
package collision

import (
	"time"

	"salonbook/internal/models"
)

// Overlaps reports whether [aStart, aEnd) and [bStart, bEnd) intersect.
// Back-to-back intervals do not overlap.
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

// SameEmployee reports whether an appointment held by employeeID blocks a
// candidate for candidateID. The default employee stands for any staff
// member and is blocked by everyone.
func SameEmployee(candidateID, employeeID string) bool {
	return candidateID == models.DefaultEmployeeID || candidateID == employeeID
}

// Detector checks candidates against a fixed set of appointments.
type Detector struct {
	appointments []models.Appointment
	exclude      map[string]struct{}
}

// NewDetector builds a detector over appointments, ignoring the given ids.
func NewDetector(appointments []models.Appointment, excludeIDs ...string) *Detector {
	d := &Detector{appointments: appointments}
	if len(excludeIDs) > 0 {
		d.exclude = make(map[string]struct{}, len(excludeIDs))
		for _, id := range excludeIDs {
			d.exclude[id] = struct{}{}
		}
	}
	return d
}

// IsOccupied reports whether the candidate interval collides with any
// non-cancelled appointment of the employee.
func (d *Detector) IsOccupied(employeeID string, start, end time.Time) bool {
	return d.FindColliding(employeeID, start, end) != nil
}

// FindColliding returns the first appointment blocking the candidate, or nil.
func (d *Detector) FindColliding(employeeID string, start, end time.Time) *models.Appointment {
	for i := range d.appointments {
		a := &d.appointments[i]
		if a.Status == models.StatusCancelled {
			continue
		}
		if _, skip := d.exclude[a.ID]; skip {
			continue
		}
		if !SameEmployee(employeeID, a.EmployeeID) {
			continue
		}
		if Overlaps(start, end, a.StartTime, a.EndTime) {
			return a
		}
	}
	return nil
}

// Conflicts lists every non-cancelled appointment overlapping a, for the same employee.
// Used to audit swaps, which are applied without a collision check.
func Conflicts(appointments []models.Appointment, a models.Appointment, ignoreIDs ...string) []models.Appointment {
	d := NewDetector(appointments, append(ignoreIDs, a.ID)...)
	var out []models.Appointment
	for _, other := range d.appointments {
		if other.Status == models.StatusCancelled {
			continue
		}
		if _, skip := d.exclude[other.ID]; skip {
			continue
		}
		if !SameEmployee(a.EmployeeID, other.EmployeeID) {
			continue
		}
		if Overlaps(a.StartTime, a.EndTime, other.StartTime, other.EndTime) {
			out = append(out, other)
		}
	}
	return out
}
