package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"salonbook/internal/booking"
	"salonbook/internal/negotiation"
	"salonbook/internal/service"
)

type loginRequest struct {
	Phone    string `json:"phone"`
	Password string `json:"password"`
}

type slotRequest struct {
	Date string `json:"date"`
	Time string `json:"time"`
}

// POST /api/clients
func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req service.Registration
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.portal.RegisterClient(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

// POST /api/login
func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	sess, err := s.portal.Login(r.Context(), req.Phone, req.Password)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// POST /api/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	s.portal.Access().Logout(r.Header.Get(headerSession))
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/services
func (s *Server) services(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.Services())
}

// GET /api/services/{id}/employees
func (s *Server) employees(w http.ResponseWriter, r *http.Request) {
	list, err := s.portal.EmployeesForService(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// GET /api/availability/dates
func (s *Server) openDates(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.OpenMonths())
}

// GET /api/availability/slots?date=&serviceId=&employeeId=
func (s *Server) slots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.portal.Slots(q.Get("date"), q.Get("serviceId"), q.Get("employeeId"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) myAppointments(w http.ResponseWriter, r *http.Request) {
	list, err := s.portal.ClientAppointments(clientIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if list == nil {
		list = []service.AppointmentView{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) myNotifications(w http.ResponseWriter, r *http.Request) {
	list, err := s.portal.ClientNotifications(clientIDFrom(r.Context()))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) readMyNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.MarkClientNotificationsRead(r.Context(), clientIDFrom(r.Context())); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// POST /api/flow
func (s *Server) flow(w http.ResponseWriter, r *http.Request) {
	var in booking.Input
	if err := decode(r, &in); err != nil {
		s.writeError(w, err)
		return
	}
	view, err := s.portal.HandleFlow(r.Context(), clientIDFrom(r.Context()), in)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// POST /api/appointments
func (s *Server) book(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	req.ClientID = clientIDFrom(r.Context())
	apt, err := s.portal.Book(r.Context(), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, apt)
}

func (s *Server) confirmArrival(w http.ResponseWriter, r *http.Request) {
	apt, err := s.portal.ConfirmArrival(r.Context(), clientIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) reschedule(w http.ResponseWriter, r *http.Request) {
	var req slotRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	res, err := s.portal.Reschedule(r.Context(), negotiation.RescheduleRequest{
		AppointmentID: chi.URLParam(r, "id"),
		ClientID:      clientIDFrom(r.Context()),
		Date:          req.Date,
		Time:          req.Time,
	})
	if err != nil {
		s.writeError(w, err)
		return
	}

	status := http.StatusOK
	if res.Outcome == negotiation.OutcomeSwapProposed {
		status = http.StatusAccepted
	}
	writeJSON(w, status, map[string]any{
		"outcome":     res.Outcome,
		"appointment": res.Appointment,
	})
}

func (s *Server) acceptSwap(w http.ResponseWriter, r *http.Request) {
	res, err := s.portal.AcceptSwap(r.Context(), clientIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": res.Target})
}

func (s *Server) approveChange(w http.ResponseWriter, r *http.Request) {
	apt, err := s.portal.ApproveChange(r.Context(), clientIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) requestReceipt(w http.ResponseWriter, r *http.Request) {
	apt, err := s.portal.RequestReceipt(r.Context(), clientIDFrom(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}
