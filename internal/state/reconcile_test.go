package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

func TestReconcile_AdminKeepsConfiguration(t *testing.T) {
	local := models.NewDocument()
	local.Services[0].Price = 175
	local.DateOverrides["2026-03-10"] = models.ClosedDay()

	remote := models.NewDocument()
	remote.Services = remote.Services[:1]
	remote.Appointments = []models.Appointment{appointment("a1", "e1", monday9)}
	remote.Version = 7

	merged := Reconcile(local, remote, Identity{Role: models.RoleAdmin})

	assert.Equal(t, 175.0, merged.Services[0].Price)
	assert.Len(t, merged.Services, len(local.Services))
	assert.Contains(t, merged.DateOverrides, "2026-03-10")
	assert.NotNil(t, merged.FindAppointment("a1"))
	assert.Equal(t, int64(7), merged.Version)
}

func TestReconcile_ClientAdoptsRemote(t *testing.T) {
	local := models.NewDocument()
	local.Clients = []models.Client{{ID: "me", Name: "Dana", Phone: "050"}}
	local.Services[0].Price = 1

	remote := models.NewDocument()
	remote.Services[0].Price = 150
	remote.Clients = []models.Client{{ID: "other", Name: "Maya"}}
	remote.BusinessHours[5] = models.DayConfig{IsOpen: true, Start: "09:00", End: "13:00"}

	merged := Reconcile(local, remote, Identity{Role: models.RoleClient, ClientID: "me"})

	assert.Equal(t, 150.0, merged.Services[0].Price)
	assert.True(t, merged.BusinessHours[5].IsOpen)
	require.NotNil(t, merged.FindClient("me"), "own record survives until remote has it")
	assert.NotNil(t, merged.FindClient("other"))
}

func TestReconcile_FillsMissingCollections(t *testing.T) {
	remote := &models.Document{Appointments: []models.Appointment{appointment("a1", "e1", monday9)}}

	merged := Reconcile(nil, remote, Identity{Role: models.RoleClient})

	assert.Len(t, merged.Services, len(models.InitialServices()))
	assert.Len(t, merged.BusinessHours, 7)
	assert.Len(t, merged.Appointments, 1)
}

func TestReplay(t *testing.T) {
	remote := models.NewDocument()
	remote.Appointments = []models.Appointment{appointment("theirs", "e1", monday9)}

	intents := []domain.Intent{
		domain.AddAppointment{Appointment: appointment("clash", "e1", monday9.Add(30*time.Minute))},
		domain.AddAppointment{Appointment: appointment("theirs", "e1", monday9)},
		domain.AddAppointment{Appointment: appointment("ok", "e1", monday9.Add(time.Hour))},
		domain.UpdateAppointment{ID: "gone", Patch: domain.AppointmentPatch{Status: domain.Ptr(models.StatusConfirmed)}},
		domain.UpdateAppointment{ID: "ok", Patch: domain.AppointmentPatch{Status: domain.Ptr(models.StatusConfirmed)}},
	}

	kept, dropped := Replay(remote, intents)

	require.Len(t, dropped, 1)
	assert.Equal(t, "clash", dropped[0].ID)
	assert.Len(t, kept, 2)
	assert.Len(t, remote.Appointments, 2)
	assert.Equal(t, models.StatusConfirmed, remote.FindAppointment("ok").Status)
}
