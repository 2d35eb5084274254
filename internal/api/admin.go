package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"salonbook/internal/models"
	"salonbook/internal/service"
	"salonbook/shared/audit"
)

type statusRequest struct {
	Status models.AppointmentStatus `json:"status"`
}

type proposalRequest struct {
	Date  string  `json:"date"`
	Time  string  `json:"time"`
	Price float64 `json:"price"`
}

type receiptRequest struct {
	Image string `json:"image"`
}

type overrideRequest struct {
	Allowed bool `json:"allowed"`
}

func (s *Server) adminAppointments(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.Appointments())
}

func (s *Server) stats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.Stats())
}

// GET /api/admin/export?month=YYYY-MM, defaulting to the previous month.
func (s *Server) export(w http.ResponseWriter, r *http.Request) {
	if s.exporter == nil {
		writeMessage(w, http.StatusNotImplemented, "export is not configured")
		return
	}

	month := audit.PreviousMonth(s.now())
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := time.ParseInLocation("2006-01", raw, time.Local)
		if err != nil {
			writeMessage(w, http.StatusBadRequest, fmt.Sprintf("invalid month %q, expected YYYY-MM", raw))
			return
		}
		month = m
	}

	data, filename, err := s.exporter.Export(r.Context(), month)
	if err != nil {
		s.writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = bytes.NewReader(data).WriteTo(w)
}

func (s *Server) setStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if req.Status != models.StatusConfirmed && req.Status != models.StatusCancelled && req.Status != models.StatusPending {
		writeMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", req.Status))
		return
	}
	apt, err := s.portal.SetStatus(r.Context(), chi.URLParam(r, "id"), req.Status)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) proposeChange(w http.ResponseWriter, r *http.Request) {
	var req proposalRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	apt, err := s.portal.ProposeChange(r.Context(), chi.URLParam(r, "id"), req.Date, req.Time, req.Price)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) attachReceipt(w http.ResponseWriter, r *http.Request) {
	var req receiptRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	apt, err := s.portal.AttachReceipt(r.Context(), chi.URLParam(r, "id"), req.Image)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, apt)
}

func (s *Server) upsertService(w http.ResponseWriter, r *http.Request) {
	var svc models.Service
	if err := decode(r, &svc); err != nil {
		s.writeError(w, err)
		return
	}
	svc.ID = chi.URLParam(r, "id")
	out, err := s.portal.UpsertService(r.Context(), svc)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteService(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.DeleteService(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) upsertEmployee(w http.ResponseWriter, r *http.Request) {
	var emp models.Employee
	if err := decode(r, &emp); err != nil {
		s.writeError(w, err)
		return
	}
	emp.ID = chi.URLParam(r, "id")
	out, err := s.portal.UpsertEmployee(r.Context(), emp)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.DeleteEmployee(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func weekdayParam(r *http.Request) (int, error) {
	wd, err := strconv.Atoi(chi.URLParam(r, "weekday"))
	if err != nil || wd < 0 || wd > 6 {
		return 0, fmt.Errorf("%w: weekday must be 0-6 (0=Sun)", service.ErrInvalidInput)
	}
	return wd, nil
}

func (s *Server) businessHours(w http.ResponseWriter, r *http.Request) {
	wd, err := weekdayParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s.portal.BusinessHours(time.Weekday(wd)))
}

func (s *Server) setBusinessHours(w http.ResponseWriter, r *http.Request) {
	wd, err := weekdayParam(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	var day models.DayConfig
	if err := decode(r, &day); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.portal.SetBusinessHours(r.Context(), wd, day); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, day)
}

func (s *Server) toggleOverride(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.portal.ToggleDateOverride(r.Context(), chi.URLParam(r, "date"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"override": cfg})
}

func (s *Server) setOverride(w http.ResponseWriter, r *http.Request) {
	var day models.DayConfig
	if err := decode(r, &day); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.portal.SetDateOverride(r.Context(), chi.URLParam(r, "date"), day); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"override": day})
}

func (s *Server) rescheduleOverride(w http.ResponseWriter, r *http.Request) {
	var req overrideRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.portal.SetRescheduleOverride(r.Context(), chi.URLParam(r, "id"), req.Allowed); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) adminNotifications(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.portal.AdminNotifications())
}

func (s *Server) readAdminNotifications(w http.ResponseWriter, r *http.Request) {
	if err := s.portal.MarkAdminNotificationsRead(r.Context()); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
