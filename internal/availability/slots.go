package availability

import (
	"fmt"
	"time"

	"salonbook/internal/models"
)

// Labels lists "HH:MM" slot labels from cfg.Start (inclusive) to cfg.End
// (exclusive) in step increments. A closed day has no slots.
func Labels(cfg models.DayConfig, step time.Duration) ([]string, error) {
	if !cfg.IsOpen {
		return nil, nil
	}
	if step <= 0 {
		step = DefaultSlotStep
	}

	sh, sm, err := ParseClock(cfg.Start)
	if err != nil {
		return nil, fmt.Errorf("parse start time: %w", err)
	}
	eh, em, err := ParseClock(cfg.End)
	if err != nil {
		return nil, fmt.Errorf("parse end time: %w", err)
	}

	start := time.Duration(sh)*time.Hour + time.Duration(sm)*time.Minute
	end := time.Duration(eh)*time.Hour + time.Duration(em)*time.Minute

	var labels []string
	for cursor := start; cursor < end; cursor += step {
		labels = append(labels, fmt.Sprintf("%02d:%02d", int(cursor/time.Hour), int(cursor%time.Hour/time.Minute)))
	}
	return labels, nil
}

// SlotsFor returns the slot labels of a date under the schedule.
func (s Schedule) SlotsFor(date time.Time, step time.Duration) ([]string, error) {
	return Labels(s.Resolve(date), step)
}

// OccupancyChecker reports whether an employee is busy in [start, end).
type OccupancyChecker interface {
	IsOccupied(employeeID string, start, end time.Time) bool
}

// Slot is a concrete candidate interval for a service of a given length.
type Slot struct {
	Label     string
	StartTime time.Time
	EndTime   time.Time
	Available bool
}

// SlotInfo is the JSON shape of a slot.
type SlotInfo struct {
	Time      string `json:"time"` // "10:00"
	End       string `json:"end"`  // "11:00"
	Available bool   `json:"available"`
}

// Generator expands slot labels into intervals and marks occupied ones.
type Generator struct {
	checker OccupancyChecker
	step    time.Duration
}

// NewGenerator creates a slot generator. A nil checker marks every slot available.
func NewGenerator(checker OccupancyChecker, step time.Duration) *Generator {
	if step <= 0 {
		step = DefaultSlotStep
	}
	return &Generator{checker: checker, step: step}
}

// Generate builds slots for employeeID on date, each lasting duration.
func (g *Generator) Generate(schedule Schedule, date time.Time, employeeID string, duration time.Duration) ([]Slot, error) {
	labels, err := schedule.SlotsFor(date, g.step)
	if err != nil {
		return nil, err
	}

	slots := make([]Slot, 0, len(labels))
	for _, label := range labels {
		start, err := At(date, label)
		if err != nil {
			return nil, err
		}
		end := start.Add(duration)

		occupied := false
		if g.checker != nil {
			occupied = g.checker.IsOccupied(employeeID, start, end)
		}

		slots = append(slots, Slot{
			Label:     label,
			StartTime: start,
			EndTime:   end,
			Available: !occupied,
		})
	}
	return slots, nil
}

// ToSlotInfo converts slots for the API.
func ToSlotInfo(slots []Slot) []SlotInfo {
	result := make([]SlotInfo, len(slots))
	for i, s := range slots {
		result[i] = SlotInfo{
			Time:      s.Label,
			End:       s.EndTime.Format(ClockLayout),
			Available: s.Available,
		}
	}
	return result
}

// AvailableOnly filters out occupied slots.
func AvailableOnly(slots []Slot) []Slot {
	var available []Slot
	for _, s := range slots {
		if s.Available {
			available = append(available, s)
		}
	}
	return available
}
