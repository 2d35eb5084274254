package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"

	"salonbook/internal/booking"
	"salonbook/internal/collision"
	"salonbook/internal/domain"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
	"salonbook/internal/negotiation"
	"salonbook/shared/access"
)

// Registration is a new client's sign-up data.
type Registration struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

// Session is returned by a successful login or registration.
type Session struct {
	ClientID string `json:"clientId"`
	Name     string `json:"name"`
	Token    string `json:"token"`
}

// RegisterClient creates a client with a unique phone number and logs it in.
// The document is pulled first so the phone check sees other replicas' sign-ups.
func (p *Portal) RegisterClient(ctx context.Context, reg Registration) (*Session, error) {
	if err := access.ValidateRegistration(reg.Name, reg.Phone, reg.Password); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
	}
	hash, err := p.access.HashPassword(reg.Password)
	if err != nil {
		return nil, err
	}
	p.state.Sync(ctx)

	phone := access.NormalizePhone(reg.Phone)
	client := models.Client{
		ID:            p.newID(),
		Name:          strings.TrimSpace(reg.Name),
		Phone:         phone,
		Password:      hash,
		Notes:         []string{},
		Notifications: []models.Notification{},
	}

	err = p.mutate(ctx, "register_client", func(doc *models.Document) ([]domain.Intent, error) {
		if findByPhone(doc, phone) != nil {
			return nil, access.ErrPhoneTaken
		}
		return []domain.Intent{domain.AddClient{Client: client}}, nil
	})
	if err != nil {
		return nil, err
	}

	p.logger.Info().Str("client_id", client.ID).Msg("client registered")
	token := p.access.Sessions().Issue(client.ID)
	return &Session{ClientID: client.ID, Name: client.Name, Token: token}, nil
}

// findByPhone matches normalized numbers so "050-123 4567" finds "0501234567".
func findByPhone(doc *models.Document, phone string) *models.Client {
	if c := doc.FindClientByPhone(phone); c != nil {
		return c
	}
	for i := range doc.Clients {
		if access.NormalizePhone(doc.Clients[i].Phone) == phone {
			return &doc.Clients[i]
		}
	}
	return nil
}

// Login checks a client's phone and password and opens a session.
func (p *Portal) Login(ctx context.Context, phone, password string) (*Session, error) {
	_, span := portalTracer.Start(ctx, "portal.login")
	defer span.End()

	doc := p.state.Snapshot()
	client := findByPhone(doc, access.NormalizePhone(phone))
	var id, stored, name string
	if client != nil {
		id, stored, name = client.ID, client.Password, client.Name
	}

	token, err := p.access.Login(id, stored, password)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return &Session{ClientID: id, Name: name, Token: token}, nil
}

// Book creates a pending appointment for the client.
func (p *Portal) Book(ctx context.Context, req booking.Request) (*models.Appointment, error) {
	var booked models.Appointment
	err := p.mutate(ctx, "book", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.engine.Book(doc, req, p.now())
		if err != nil {
			return nil, err
		}
		booked = res.Appointment
		return res.Intents, nil
	}, clientAttr(req.ClientID))
	metrics.IncBooking(resultLabel(err))
	if err != nil {
		return nil, err
	}

	p.logger.Info().
		Str("appointment_id", booked.ID).
		Str("client_id", booked.ClientID).
		Str("employee_id", booked.EmployeeID).
		Time("start", booked.StartTime).
		Msg("appointment booked")
	return &booked, nil
}

// HandleFlow advances the client's stepwise booking session. Completing the
// flow books the appointment.
func (p *Portal) HandleFlow(ctx context.Context, clientID string, in booking.Input) (*booking.View, error) {
	var view *booking.View
	err := p.mutate(ctx, "flow", func(doc *models.Document) ([]domain.Intent, error) {
		if doc.FindClient(clientID) == nil {
			return nil, booking.NotFound("client", clientID)
		}
		v, res, err := p.flow.Handle(doc, clientID, in, p.now())
		if err != nil {
			if _, ok := booking.IsRejection(err); ok || errors.Is(err, booking.ErrNotFound) {
				return nil, err
			}
			return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err.Error())
		}
		view = v
		if res == nil {
			return nil, nil
		}
		return res.Intents, nil
	}, clientAttr(clientID), attribute.String("salon.flow_action", in.Action))

	if in.Action == booking.ActionConfirm {
		metrics.IncBooking(resultLabel(err))
	}
	if err != nil {
		return nil, err
	}
	return view, nil
}

// ConfirmArrival marks a confirmed appointment as client-confirmed.
func (p *Portal) ConfirmArrival(ctx context.Context, clientID, appointmentID string) (*models.Appointment, error) {
	var out models.Appointment
	err := p.mutate(ctx, "confirm_arrival", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.engine.ConfirmArrival(doc, appointmentID, clientID, p.now())
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, clientAttr(clientID), appointmentAttr(appointmentID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Reschedule moves an appointment or, when the slot is taken, asks the
// holder for a swap.
func (p *Portal) Reschedule(ctx context.Context, req negotiation.RescheduleRequest) (*negotiation.RescheduleResult, error) {
	var result *negotiation.RescheduleResult
	err := p.mutate(ctx, "reschedule", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.negotiator.Reschedule(doc, req, p.now())
		if err != nil {
			return nil, err
		}
		result = res
		return res.Intents, nil
	}, clientAttr(req.ClientID), appointmentAttr(req.AppointmentID))
	if err != nil {
		metrics.IncReschedule(resultLabel(err))
		return nil, err
	}

	metrics.IncReschedule(string(result.Outcome))
	ev := p.logger.Info().Str("appointment_id", req.AppointmentID).Str("outcome", string(result.Outcome))
	if result.Target != nil {
		ev = ev.Str("target_id", result.Target.ID)
	}
	ev.Msg("reschedule handled")
	return result, nil
}

// AcceptSwap lets the holder of a requested slot exchange it with the requester.
func (p *Portal) AcceptSwap(ctx context.Context, clientID, targetID string) (*negotiation.SwapResult, error) {
	var result *negotiation.SwapResult
	err := p.mutate(ctx, "accept_swap", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.negotiator.AcceptSwap(doc, targetID, clientID, p.now())
		if err != nil {
			return nil, err
		}
		result = res
		return res.Intents, nil
	}, clientAttr(clientID), appointmentAttr(targetID))
	if err != nil {
		return nil, err
	}

	metrics.IncSwapAccepted()
	p.checkSwapOverlap(result)
	p.logger.Info().
		Str("requester_id", result.Requester.ID).
		Str("target_id", result.Target.ID).
		Msg("swap accepted")
	return result, nil
}

// checkSwapOverlap warns when swapped appointments of different lengths now
// run into a third appointment. The swap itself stands.
func (p *Portal) checkSwapOverlap(res *negotiation.SwapResult) {
	snap := p.state.Snapshot()
	pairs := [][2]models.Appointment{
		{res.Requester, res.Target},
		{res.Target, res.Requester},
	}
	for _, pair := range pairs {
		hits := collision.Conflicts(snap.Appointments, pair[0], pair[1].ID)
		if len(hits) == 0 {
			continue
		}
		metrics.IncSwapOverlap()
		ids := make([]string, len(hits))
		for i, h := range hits {
			ids[i] = h.ID
		}
		p.logger.Warn().
			Str("appointment_id", pair[0].ID).
			Strs("overlaps", ids).
			Msg("swapped appointment overlaps another booking")
	}
}

// ApproveChange accepts the salon's proposed time and price.
func (p *Portal) ApproveChange(ctx context.Context, clientID, appointmentID string) (*models.Appointment, error) {
	var out models.Appointment
	err := p.mutate(ctx, "approve_change", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.negotiator.ApproveChange(doc, appointmentID, clientID)
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, clientAttr(clientID), appointmentAttr(appointmentID))
	if err != nil {
		return nil, err
	}
	metrics.IncChangeApproval()
	return &out, nil
}

// RequestReceipt asks the salon for a receipt.
func (p *Portal) RequestReceipt(ctx context.Context, clientID, appointmentID string) (*models.Appointment, error) {
	var out models.Appointment
	err := p.mutate(ctx, "request_receipt", func(doc *models.Document) ([]domain.Intent, error) {
		res, err := p.engine.RequestReceipt(doc, appointmentID, clientID, p.now())
		if err != nil {
			return nil, err
		}
		out = res.Appointment
		return res.Intents, nil
	}, clientAttr(clientID), appointmentAttr(appointmentID))
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// AppointmentView is an appointment with the details a client screen needs.
type AppointmentView struct {
	models.Appointment
	ServiceName   string                `json:"serviceName"`
	EmployeeName  string                `json:"employeeName"`
	ClientName    string                `json:"clientName,omitempty"`
	ClientPhone   string                `json:"clientPhone,omitempty"`
	LockState     negotiation.LockState `json:"lockState"`
	CanReschedule bool                  `json:"canReschedule"`
	CanConfirm    bool                  `json:"canConfirmArrival"`
}

func (p *Portal) viewOf(doc *models.Document, apt models.Appointment) AppointmentView {
	client := doc.FindClient(apt.ClientID)
	v := AppointmentView{
		Appointment:   apt,
		ServiceName:   apt.ServiceID,
		EmployeeName:  apt.EmployeeID,
		LockState:     negotiation.LockStateOf(apt, client),
		CanReschedule: negotiation.CanReschedule(apt, client),
		CanConfirm:    p.engine.InArrivalWindow(apt, p.now()),
	}
	if svc := doc.FindService(apt.ServiceID); svc != nil {
		v.ServiceName = svc.Name
	}
	if emp := doc.FindEmployee(apt.EmployeeID); emp != nil {
		v.EmployeeName = emp.Name
	} else if apt.EmployeeID == models.DefaultEmployeeID {
		v.EmployeeName = models.DefaultEmployee().Name
	}
	return v
}

// ClientAppointments lists a client's appointments, soonest first.
func (p *Portal) ClientAppointments(clientID string) ([]AppointmentView, error) {
	doc := p.state.Snapshot()
	if doc.FindClient(clientID) == nil {
		return nil, booking.NotFound("client", clientID)
	}

	var out []AppointmentView
	for _, a := range doc.Appointments {
		if a.ClientID == clientID {
			out = append(out, p.viewOf(doc, a))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

// ClientNotifications returns a client's notifications, newest first.
func (p *Portal) ClientNotifications(clientID string) ([]models.Notification, error) {
	doc := p.state.Snapshot()
	client := doc.FindClient(clientID)
	if client == nil {
		return nil, booking.NotFound("client", clientID)
	}
	if client.Notifications == nil {
		return []models.Notification{}, nil
	}
	return client.Notifications, nil
}

// MarkClientNotificationsRead flags every notification of the client as read.
func (p *Portal) MarkClientNotificationsRead(ctx context.Context, clientID string) error {
	return p.mutate(ctx, "client_notifications_read", func(doc *models.Document) ([]domain.Intent, error) {
		client := doc.FindClient(clientID)
		if client == nil {
			return nil, booking.NotFound("client", clientID)
		}
		if client.UnreadCount() == 0 {
			return nil, nil
		}
		list := make([]models.Notification, len(client.Notifications))
		for i, n := range client.Notifications {
			n.Read = true
			list[i] = n
		}
		return []domain.Intent{domain.UpdateClientNotifications{ClientID: clientID, Notifications: list}}, nil
	}, clientAttr(clientID))
}
