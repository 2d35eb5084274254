// Package domain holds the mutation intents emitted by the scheduling core
// and the ports the state layer depends on.
package domain

import (
	"time"

	"salonbook/internal/models"
)

// Intent kinds double as event types on the bus.
const (
	KindAddAppointment             = "appointment.add"
	KindUpdateAppointment          = "appointment.update"
	KindUpdateClientNotifications  = "client.notifications"
	KindPushAdminNotification      = "admin.notification"
	KindMarkAdminNotificationsRead = "admin.notifications_read"
	KindAddClient                  = "client.add"
	KindUpdateClient               = "client.update"
	KindUpsertService              = "service.upsert"
	KindDeleteService              = "service.delete"
	KindUpsertEmployee             = "employee.upsert"
	KindDeleteEmployee             = "employee.delete"
	KindSetBusinessHours           = "schedule.business_hours"
	KindSetDateOverride            = "schedule.override_set"
	KindClearDateOverride          = "schedule.override_clear"
	KindReplaceDateOverrides       = "schedule.overrides_replace"
)

// Intent is a requested change to the shared document. The core never writes
// storage; it returns intents for the state layer to apply.
type Intent interface {
	Kind() string
}

// AddAppointment inserts a new appointment.
type AddAppointment struct {
	Appointment models.Appointment
}

// UpdateAppointment merges Patch into the appointment with ID.
type UpdateAppointment struct {
	ID    string
	Patch AppointmentPatch
}

// UpdateClientNotifications replaces a client's notification list.
type UpdateClientNotifications struct {
	ClientID      string
	Notifications []models.Notification
}

// PushAdminNotification prepends a notification to the admin feed.
type PushAdminNotification struct {
	Notification models.Notification
}

// MarkAdminNotificationsRead flags every admin notification as read.
type MarkAdminNotificationsRead struct{}

// AddClient registers a client.
type AddClient struct {
	Client models.Client
}

// UpdateClient merges Patch into the client with ID.
type UpdateClient struct {
	ID    string
	Patch ClientPatch
}

// UpsertService creates or replaces a service.
type UpsertService struct {
	Service models.Service
}

// DeleteService removes a service from the catalog.
type DeleteService struct {
	ID string
}

// UpsertEmployee creates or replaces an employee.
type UpsertEmployee struct {
	Employee models.Employee
}

// DeleteEmployee removes an employee from the roster.
type DeleteEmployee struct {
	ID string
}

// SetBusinessHours replaces one weekday of the weekly schedule.
type SetBusinessHours struct {
	Weekday time.Weekday
	Config  models.DayConfig
}

// SetDateOverride sets hours for a specific "YYYY-MM-DD" date.
type SetDateOverride struct {
	Date   string
	Config models.DayConfig
}

// ClearDateOverride removes a date override.
type ClearDateOverride struct {
	Date string
}

// ReplaceDateOverrides swaps the whole override table, used by schedule reloads.
type ReplaceDateOverrides struct {
	Overrides map[string]models.DayConfig
}

func (AddAppointment) Kind() string             { return KindAddAppointment }
func (UpdateAppointment) Kind() string          { return KindUpdateAppointment }
func (UpdateClientNotifications) Kind() string  { return KindUpdateClientNotifications }
func (PushAdminNotification) Kind() string      { return KindPushAdminNotification }
func (MarkAdminNotificationsRead) Kind() string { return KindMarkAdminNotificationsRead }
func (AddClient) Kind() string                  { return KindAddClient }
func (UpdateClient) Kind() string               { return KindUpdateClient }
func (UpsertService) Kind() string              { return KindUpsertService }
func (DeleteService) Kind() string              { return KindDeleteService }
func (UpsertEmployee) Kind() string             { return KindUpsertEmployee }
func (DeleteEmployee) Kind() string             { return KindDeleteEmployee }
func (SetBusinessHours) Kind() string           { return KindSetBusinessHours }
func (SetDateOverride) Kind() string            { return KindSetDateOverride }
func (ClearDateOverride) Kind() string          { return KindClearDateOverride }
func (ReplaceDateOverrides) Kind() string       { return KindReplaceDateOverrides }
