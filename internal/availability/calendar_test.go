package availability

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/models"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.Local)
}

func defaultSchedule() Schedule {
	return Schedule{BusinessHours: models.DefaultBusinessHours(), DateOverrides: map[string]models.DayConfig{}}
}

func TestSchedule_Resolve(t *testing.T) {
	s := defaultSchedule()
	s.DateOverrides["2026-03-02"] = models.DayConfig{IsOpen: true, Start: "12:00", End: "14:00"}
	delete(s.BusinessHours, 3)

	tests := []struct {
		name string
		date time.Time
		want models.DayConfig
	}{
		{"override wins", date(2026, 3, 2), models.DayConfig{IsOpen: true, Start: "12:00", End: "14:00"}},
		{"weekday fallback", date(2026, 3, 3), models.DayConfig{IsOpen: true, Start: "09:00", End: "20:00"}},
		{"sunday is weekday zero", date(2026, 3, 8), models.DayConfig{IsOpen: true, Start: "09:00", End: "17:00"}},
		{"missing weekday is closed", date(2026, 3, 4), models.ClosedDay()},
		{"friday closed", date(2026, 3, 6), models.DayConfig{IsOpen: false, Start: "09:00", End: "13:00"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.Resolve(tt.date))
		})
	}
}

func TestSchedule_OpenDates(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local) // Sunday, open

	dates := defaultSchedule().OpenDates(now, 90)

	require.NotEmpty(t, dates)
	assert.Equal(t, "2026-03-02", DateKey(dates[0]), "today is excluded")
	assert.Equal(t, "2026-05-28", DateKey(dates[len(dates)-1]))
	assert.Len(t, dates, 64)
	for _, d := range dates {
		assert.NotEqual(t, time.Friday, d.Weekday())
		assert.NotEqual(t, time.Saturday, d.Weekday())
	}
}

// inZone runs the rest of the test with time.Local set to name.
func inZone(t *testing.T, name string) {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	prev := time.Local
	time.Local = loc
	t.Cleanup(func() { time.Local = prev })
}

func openEveryDay() Schedule {
	hours := make(map[int]models.DayConfig, 7)
	for wd := 0; wd < 7; wd++ {
		hours[wd] = models.DayConfig{IsOpen: true, Start: "09:00", End: "17:00"}
	}
	return Schedule{BusinessHours: hours, DateOverrides: map[string]models.DayConfig{}}
}

func TestSchedule_OpenDatesAcrossDST(t *testing.T) {
	inZone(t, "America/New_York")

	tests := []struct {
		name string
		now  time.Time
		want []string
	}{
		{
			name: "spring forward",
			now:  time.Date(2026, 3, 7, 10, 0, 0, 0, time.Local),
			want: []string{"2026-03-08", "2026-03-09", "2026-03-10", "2026-03-11", "2026-03-12"},
		},
		{
			name: "fall back",
			now:  time.Date(2026, 10, 31, 23, 30, 0, 0, time.Local),
			want: []string{"2026-11-01", "2026-11-02", "2026-11-03", "2026-11-04", "2026-11-05"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dates := openEveryDay().OpenDates(tt.now, len(tt.want))

			keys := make([]string, len(dates))
			for i, d := range dates {
				keys[i] = DateKey(d)
				assert.Equal(t, 0, d.Hour(), "dates are local midnights")
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestParseDateTimeAcrossDST(t *testing.T) {
	inZone(t, "America/New_York")

	before, err := ParseDateTime("2026-03-07", "09:00")
	require.NoError(t, err)
	after, err := ParseDateTime("2026-03-09", "09:00")
	require.NoError(t, err)

	assert.Equal(t, 9, before.Hour())
	assert.Equal(t, 9, after.Hour())
	assert.Equal(t, 14, before.UTC().Hour(), "EST is UTC-5")
	assert.Equal(t, 13, after.UTC().Hour(), "EDT is UTC-4")
	assert.Equal(t, 47*time.Hour, after.Sub(before))
	assert.Equal(t, "2026-03-09", DateKey(after))
}

func TestSchedule_OpenDatesWithOverrides(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	s := defaultSchedule()
	s.DateOverrides["2026-03-02"] = models.ClosedDay()
	s.DateOverrides["2026-03-06"] = models.DayConfig{IsOpen: true, Start: "09:00", End: "12:00"}

	keys := make(map[string]bool)
	for _, d := range s.OpenDates(now, 7) {
		keys[DateKey(d)] = true
	}

	assert.False(t, keys["2026-03-02"], "closed override removes a working day")
	assert.True(t, keys["2026-03-06"], "open override adds a friday")
	assert.True(t, keys["2026-03-03"])
}

func TestSchedule_OpenDatesIsIdempotent(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)
	s := defaultSchedule()
	assert.Equal(t, s.OpenDates(now, 90), s.OpenDates(now, 90))
}

func TestGroupByMonth(t *testing.T) {
	dates := []time.Time{date(2026, 3, 30), date(2026, 3, 31), date(2026, 4, 1)}

	months := GroupByMonth(dates)

	require.Len(t, months, 2)
	assert.Equal(t, "2026-03", months[0].Key)
	assert.Equal(t, "March 2026", months[0].Label)
	assert.Equal(t, []string{"2026-03-30", "2026-03-31"}, months[0].Dates)
	assert.Equal(t, []string{"2026-04-01"}, months[1].Dates)
}

func TestParseDateTime(t *testing.T) {
	got, err := ParseDateTime("2026-03-02", "09:30")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 30, 0, 0, time.Local), got)

	_, err = ParseDateTime("02-03-2026", "09:30")
	assert.Error(t, err)

	_, err = ParseDateTime("2026-03-02", "9h30")
	assert.Error(t, err)
}

func TestParseClock(t *testing.T) {
	tests := []struct {
		in      string
		h, m    int
		wantErr bool
	}{
		{"09:00", 9, 0, false},
		{"20:30", 20, 30, false},
		{"24:00", 24, 0, false},
		{"25:00", 0, 0, true},
		{"10:75", 0, 0, true},
		{"1000", 0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			h, m, err := ParseClock(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.h, h)
			assert.Equal(t, tt.m, m)
		})
	}
}
