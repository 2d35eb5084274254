package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"salonbook/internal/models"
)

func TestAppointmentPatch_Apply(t *testing.T) {
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	a := models.Appointment{
		ID:                  "a1",
		Status:              models.StatusConfirmed,
		ConfirmedByClient:   true,
		ChangeProposal:      &models.ChangeProposal{PriceAtBooking: 10},
		IncomingSwapRequest: &models.SwapRequest{FromAppointmentID: "a2"},
	}

	AppointmentPatch{
		StartTime:           Ptr(start),
		EndTime:             Ptr(start.Add(time.Hour)),
		Status:              Ptr(models.StatusPending),
		ConfirmedByClient:   Ptr(false),
		ClearChangeProposal: true,
		ClearSwapRequest:    true,
	}.Apply(&a)

	assert.Equal(t, start, a.StartTime)
	assert.Equal(t, start.Add(time.Hour), a.EndTime)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.False(t, a.ConfirmedByClient)
	assert.Nil(t, a.ChangeProposal)
	assert.Nil(t, a.IncomingSwapRequest)
}

func TestAppointmentPatch_EmptyLeavesFields(t *testing.T) {
	a := models.Appointment{ID: "a1", Status: models.StatusPending, PriceAtBooking: 150}
	AppointmentPatch{}.Apply(&a)
	assert.Equal(t, models.StatusPending, a.Status)
	assert.Equal(t, 150.0, a.PriceAtBooking)
	assert.False(t, AppointmentPatch{}.MovesTime())
}

func TestClientPatch_Apply(t *testing.T) {
	c := models.Client{ID: "c1", Name: "old"}
	ClientPatch{Name: Ptr("new"), CanRescheduleConfirmed: Ptr(true)}.Apply(&c)
	assert.Equal(t, "new", c.Name)
	assert.True(t, c.CanRescheduleConfirmed)
}
