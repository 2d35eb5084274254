// Package availability derives bookable dates and time slots from weekly
// business hours and per-date overrides.
package availability

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"salonbook/internal/models"
)

const (
	// DateLayout is the calendar date format exchanged with clients.
	DateLayout = "2006-01-02"
	// ClockLayout is the slot label format.
	ClockLayout = "15:04"

	// DefaultHorizonDays is how far ahead dates are offered.
	DefaultHorizonDays = 90
	// DefaultSlotStep is the granularity of slot labels.
	DefaultSlotStep = 30 * time.Minute
)

// Schedule is the configuration part of the document that drives availability.
type Schedule struct {
	BusinessHours map[int]models.DayConfig
	DateOverrides map[string]models.DayConfig
}

// ScheduleOf extracts the schedule from a document snapshot.
func ScheduleOf(doc *models.Document) Schedule {
	return Schedule{BusinessHours: doc.BusinessHours, DateOverrides: doc.DateOverrides}
}

// Resolve returns the effective day config for date.
// A date override wins over the weekly schedule; a weekday with no entry is closed.
func (s Schedule) Resolve(date time.Time) models.DayConfig {
	if cfg, ok := s.DateOverrides[DateKey(date)]; ok {
		return cfg
	}
	if cfg, ok := s.BusinessHours[int(date.Weekday())]; ok {
		return cfg
	}
	return models.ClosedDay()
}

// OpenDates lists the open calendar days in the horizon starting tomorrow.
// Days are built with local calendar arithmetic so DST shifts never skip or
// repeat a date.
func (s Schedule) OpenDates(now time.Time, horizonDays int) []time.Time {
	if horizonDays <= 0 {
		horizonDays = DefaultHorizonDays
	}
	today := StartOfDay(now)

	var dates []time.Time
	for i := 1; i <= horizonDays; i++ {
		d := time.Date(today.Year(), today.Month(), today.Day()+i, 0, 0, 0, 0, today.Location())
		if s.Resolve(d).IsOpen {
			dates = append(dates, d)
		}
	}
	return dates
}

// Month is a group of open dates for display.
type Month struct {
	Key   string   `json:"key"`   // "2026-03"
	Label string   `json:"label"` // "March 2026"
	Dates []string `json:"dates"` // "2026-03-02", ...
}

// GroupByMonth groups ordered dates by calendar month, preserving order.
func GroupByMonth(dates []time.Time) []Month {
	var months []Month
	for _, d := range dates {
		key := d.Format("2006-01")
		if len(months) == 0 || months[len(months)-1].Key != key {
			months = append(months, Month{Key: key, Label: d.Format("January 2006")})
		}
		last := &months[len(months)-1]
		last.Dates = append(last.Dates, DateKey(d))
	}
	return months
}

// DateKey formats t as a local "YYYY-MM-DD" string.
func DateKey(t time.Time) string {
	return t.In(time.Local).Format(DateLayout)
}

// ParseDate parses "YYYY-MM-DD" as local midnight.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q; expected YYYY-MM-DD", s)
	}
	return t, nil
}

// StartOfDay returns local midnight of t's calendar day.
func StartOfDay(t time.Time) time.Time {
	t = t.In(time.Local)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.Local)
}

// ParseClock splits "HH:MM" into hour and minute.
func ParseClock(s string) (hour, minute int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time format: %s", s)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 24 {
		return 0, 0, fmt.Errorf("invalid hour in %q", s)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute in %q", s)
	}
	return hour, minute, nil
}

// At combines a calendar date and an "HH:MM" label into a local instant.
func At(date time.Time, clock string) (time.Time, error) {
	hour, minute, err := ParseClock(clock)
	if err != nil {
		return time.Time{}, err
	}
	date = date.In(time.Local)
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, time.Local), nil
}

// ParseDateTime converts a "YYYY-MM-DD" date and "HH:MM" time into a local instant.
func ParseDateTime(date, clock string) (time.Time, error) {
	d, err := ParseDate(date)
	if err != nil {
		return time.Time{}, err
	}
	return At(d, clock)
}
