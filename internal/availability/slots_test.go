package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/models"
)

type fakeChecker struct {
	busy map[string]bool // key: "HH:MM"
}

func (f *fakeChecker) IsOccupied(employeeID string, start, end time.Time) bool {
	return f.busy[start.Format(ClockLayout)]
}

func TestLabels(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.DayConfig
		want []string
	}{
		{"one hour", models.DayConfig{IsOpen: true, Start: "09:00", End: "10:00"}, []string{"09:00", "09:30"}},
		{"two hours", models.DayConfig{IsOpen: true, Start: "09:00", End: "11:00"}, []string{"09:00", "09:30", "10:00", "10:30"}},
		{"offset start", models.DayConfig{IsOpen: true, Start: "09:15", End: "10:00"}, []string{"09:15", "09:45"}},
		{"closed day", models.DayConfig{IsOpen: false, Start: "09:00", End: "10:00"}, nil},
		{"empty interval", models.DayConfig{IsOpen: true, Start: "10:00", End: "10:00"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Labels(tt.cfg, 30*time.Minute)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLabels_InvalidConfig(t *testing.T) {
	_, err := Labels(models.DayConfig{IsOpen: true, Start: "nine", End: "10:00"}, 0)
	assert.Error(t, err)
}

func TestGenerator_Generate(t *testing.T) {
	s := defaultSchedule()
	monday := date(2026, 3, 2)
	checker := &fakeChecker{busy: map[string]bool{"09:30": true}}

	slots, err := NewGenerator(checker, 0).Generate(s, monday, "e1", time.Hour)
	require.NoError(t, err)

	require.Len(t, slots, 22) // 09:00..19:30
	assert.Equal(t, "09:00", slots[0].Label)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local), slots[0].EndTime)
	assert.True(t, slots[0].Available)
	assert.False(t, slots[1].Available)

	infos := ToSlotInfo(slots[:2])
	assert.Equal(t, SlotInfo{Time: "09:00", End: "10:00", Available: true}, infos[0])
	assert.Len(t, AvailableOnly(slots), 21)
}

func TestGenerator_ClosedDay(t *testing.T) {
	slots, err := NewGenerator(nil, 0).Generate(defaultSchedule(), date(2026, 3, 6), "e1", time.Hour)
	require.NoError(t, err)
	assert.Empty(t, slots)
}
