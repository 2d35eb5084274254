package reminders

import (
	"context"
	"time"
)

// ReminderType defines the type of reminder.
type ReminderType string

const (
	// ReminderTypeArrival asks the client to confirm they will come.
	ReminderTypeArrival ReminderType = "arrival_confirmation"
)

// Appointment is an appointment that may need a reminder.
type Appointment struct {
	ID        string
	ClientID  string
	StartTime time.Time
	// Summary describes the appointment for the message, e.g. "Gel manicure on 2026-03-02 at 10:00".
	Summary string
}

// key identifies one reminder. A moved appointment gets a fresh key.
func (a Appointment) key() string {
	return a.ID + "@" + a.StartTime.UTC().Format(time.RFC3339)
}

// AppointmentSource lists appointments awaiting arrival confirmation.
type AppointmentSource interface {
	// PendingArrivals returns confirmed appointments the client has not yet
	// confirmed that start within window from now.
	PendingArrivals(ctx context.Context, window time.Duration) ([]Appointment, error)
}

// Notifier delivers a reminder to the client.
type Notifier interface {
	SendReminder(ctx context.Context, apt Appointment) error
}

// Logger interface for logging.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}
