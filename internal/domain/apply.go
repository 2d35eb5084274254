package domain

import (
	"errors"
	"fmt"

	"salonbook/internal/models"
)

// ErrUnknownTarget is returned when an intent references a record that is
// not in the document. The document is left unchanged.
var ErrUnknownTarget = errors.New("intent target not found")

// Apply mutates doc according to in.
func Apply(doc *models.Document, in Intent) error {
	switch it := in.(type) {
	case AddAppointment:
		if doc.FindAppointment(it.Appointment.ID) != nil {
			return fmt.Errorf("appointment %q already exists", it.Appointment.ID)
		}
		doc.Appointments = append(doc.Appointments, it.Appointment)
	case UpdateAppointment:
		a := doc.FindAppointment(it.ID)
		if a == nil {
			return fmt.Errorf("appointment %q: %w", it.ID, ErrUnknownTarget)
		}
		it.Patch.Apply(a)
	case UpdateClientNotifications:
		c := doc.FindClient(it.ClientID)
		if c == nil {
			return fmt.Errorf("client %q: %w", it.ClientID, ErrUnknownTarget)
		}
		c.Notifications = append([]models.Notification(nil), it.Notifications...)
	case PushAdminNotification:
		doc.AdminNotifications = append([]models.Notification{it.Notification}, doc.AdminNotifications...)
	case MarkAdminNotificationsRead:
		for i := range doc.AdminNotifications {
			doc.AdminNotifications[i].Read = true
		}
	case AddClient:
		if doc.FindClient(it.Client.ID) != nil {
			return fmt.Errorf("client %q already exists", it.Client.ID)
		}
		doc.Clients = append(doc.Clients, it.Client)
	case UpdateClient:
		c := doc.FindClient(it.ID)
		if c == nil {
			return fmt.Errorf("client %q: %w", it.ID, ErrUnknownTarget)
		}
		it.Patch.Apply(c)
	case UpsertService:
		if s := doc.FindService(it.Service.ID); s != nil {
			*s = it.Service
		} else {
			doc.Services = append(doc.Services, it.Service)
		}
	case DeleteService:
		doc.Services = removeWhere(doc.Services, func(s models.Service) bool { return s.ID == it.ID })
	case UpsertEmployee:
		e := it.Employee
		e.Services = append([]string(nil), e.Services...)
		if cur := doc.FindEmployee(e.ID); cur != nil {
			*cur = e
		} else {
			doc.Employees = append(doc.Employees, e)
		}
	case DeleteEmployee:
		doc.Employees = removeWhere(doc.Employees, func(e models.Employee) bool { return e.ID == it.ID })
	case SetBusinessHours:
		if doc.BusinessHours == nil {
			doc.BusinessHours = make(map[int]models.DayConfig)
		}
		doc.BusinessHours[int(it.Weekday)] = it.Config
	case SetDateOverride:
		if doc.DateOverrides == nil {
			doc.DateOverrides = make(map[string]models.DayConfig)
		}
		doc.DateOverrides[it.Date] = it.Config
	case ClearDateOverride:
		delete(doc.DateOverrides, it.Date)
	case ReplaceDateOverrides:
		doc.DateOverrides = make(map[string]models.DayConfig, len(it.Overrides))
		for k, v := range it.Overrides {
			doc.DateOverrides[k] = v
		}
	default:
		return fmt.Errorf("unsupported intent %T", in)
	}
	return nil
}

// ApplyAll applies intents in order and returns the errors joined. Intents
// that fail are skipped; the rest still apply.
func ApplyAll(doc *models.Document, intents ...Intent) error {
	var errs []error
	for _, in := range intents {
		if err := Apply(doc, in); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.Kind(), err))
		}
	}
	return errors.Join(errs...)
}

func removeWhere[T any](list []T, match func(T) bool) []T {
	out := list[:0:0]
	for _, v := range list {
		if !match(v) {
			out = append(out, v)
		}
	}
	return out
}
