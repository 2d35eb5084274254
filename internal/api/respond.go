package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"salonbook/internal/booking"
	"salonbook/internal/service"
	"salonbook/shared/access"
)

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// writeError maps portal errors to HTTP statuses.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var denied *access.AccessDeniedError
	switch {
	case errors.As(err, &denied):
		status := http.StatusUnauthorized
		if denied.Forbidden {
			status = http.StatusForbidden
		}
		writeMessage(w, status, denied.Reason)
	case errors.Is(err, booking.ErrNotFound):
		writeMessage(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidInput):
		writeMessage(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, access.ErrPhoneTaken):
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error(), Reason: "phone_taken"})
	default:
		if rej, ok := booking.IsRejection(err); ok {
			writeJSON(w, http.StatusConflict, errorResponse{Error: rej.Error(), Reason: string(rej.Reason)})
			return
		}
		s.logger.Error().Err(err).Msg("request failed")
		writeMessage(w, http.StatusInternalServerError, "internal error")
	}
}

// decode reads a JSON body into v.
func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %s", service.ErrInvalidInput, err.Error())
	}
	return nil
}
