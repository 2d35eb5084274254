package config

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

// ScheduleConfig is the root of schedule.yaml.
type ScheduleConfig struct {
	// BusinessHours is keyed by weekday, 0 = Sunday.
	BusinessHours map[int]models.DayConfig `yaml:"business_hours"`
	// DateOverrides is keyed by "YYYY-MM-DD".
	DateOverrides map[string]models.DayConfig `yaml:"date_overrides"`
}

// LoadSchedule loads and validates the schedule file.
func LoadSchedule(path string) (*ScheduleConfig, error) {
	if path == "" {
		path = "configs/schedule.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schedule config: %w", err)
	}

	var cfg ScheduleConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse schedule config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate schedule config: %w", err)
	}
	return &cfg, nil
}

// Validate checks weekdays, dates and opening hours.
func (s *ScheduleConfig) Validate() error {
	for wd, day := range s.BusinessHours {
		if wd < 0 || wd > 6 {
			return fmt.Errorf("business_hours: invalid weekday %d, must be 0-6 (0=Sun)", wd)
		}
		if err := ValidateDay(day, fmt.Sprintf("business_hours[%d]", wd)); err != nil {
			return err
		}
	}
	for date, day := range s.DateOverrides {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return fmt.Errorf("date_overrides: invalid date format '%s', expected YYYY-MM-DD", date)
		}
		if err := ValidateDay(day, "date_overrides["+date+"]"); err != nil {
			return err
		}
	}
	return nil
}

// ValidateDay checks hours only for open days; closed days keep whatever
// start and end they carry.
func ValidateDay(d models.DayConfig, prefix string) error {
	if !d.IsOpen {
		return nil
	}
	start, err := time.Parse("15:04", d.Start)
	if err != nil {
		return fmt.Errorf("%s.start: invalid format '%s', expected HH:MM", prefix, d.Start)
	}
	end, err := time.Parse("15:04", d.End)
	if err != nil {
		return fmt.Errorf("%s.end: invalid format '%s', expected HH:MM", prefix, d.End)
	}
	if !end.After(start) {
		return fmt.Errorf("%s: end must be after start", prefix)
	}
	return nil
}

// Intents converts the schedule into document intents: one per configured
// weekday, in weekday order, followed by the full override table.
func (s *ScheduleConfig) Intents() []domain.Intent {
	weekdays := make([]int, 0, len(s.BusinessHours))
	for wd := range s.BusinessHours {
		weekdays = append(weekdays, wd)
	}
	sort.Ints(weekdays)

	out := make([]domain.Intent, 0, len(weekdays)+1)
	for _, wd := range weekdays {
		out = append(out, domain.SetBusinessHours{Weekday: time.Weekday(wd), Config: s.BusinessHours[wd]})
	}

	overrides := make(map[string]models.DayConfig, len(s.DateOverrides))
	for date, day := range s.DateOverrides {
		overrides[date] = day
	}
	return append(out, domain.ReplaceDateOverrides{Overrides: overrides})
}

// String returns a summary of the schedule.
func (s *ScheduleConfig) String() string {
	open := 0
	for _, d := range s.BusinessHours {
		if d.IsOpen {
			open++
		}
	}
	return fmt.Sprintf("ScheduleConfig: %d weekdays (%d open), %d overrides",
		len(s.BusinessHours), open, len(s.DateOverrides))
}
