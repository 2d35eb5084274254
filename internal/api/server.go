// Package api serves the portal over HTTP JSON.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"salonbook/internal/service"
)

const (
	headerSession = "X-Session-Token"
	headerAPIKey  = "X-Api-Key"
)

// Exporter renders a month of appointments as a workbook.
type Exporter interface {
	Export(ctx context.Context, month time.Time) ([]byte, string, error)
}

// Config holds HTTP limits.
type Config struct {
	RatePerSecond float64
	Burst         int
}

// Server routes requests to the portal.
type Server struct {
	portal   *service.Portal
	exporter Exporter
	limiter  *callerLimiter
	logger   zerolog.Logger
	now      func() time.Time
}

// NewServer creates the API server. exporter may be nil, which disables the
// export endpoint.
func NewServer(portal *service.Portal, exporter Exporter, cfg Config, logger *zerolog.Logger) *Server {
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 10
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 20
	}
	return &Server{
		portal:   portal,
		exporter: exporter,
		limiter:  newCallerLimiter(cfg.RatePerSecond, cfg.Burst),
		logger:   logger.With().Str("component", "api").Logger(),
		now:      time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.rateLimit)

	r.Route("/api", func(r chi.Router) {
		r.Post("/clients", s.register)
		r.Post("/login", s.login)
		r.Get("/services", s.services)
		r.Get("/services/{id}/employees", s.employees)
		r.Get("/availability/dates", s.openDates)
		r.Get("/availability/slots", s.slots)

		r.Group(func(r chi.Router) {
			r.Use(s.requireClient)
			r.Post("/logout", s.logout)
			r.Get("/me/appointments", s.myAppointments)
			r.Get("/me/notifications", s.myNotifications)
			r.Post("/me/notifications/read", s.readMyNotifications)
			r.Post("/flow", s.flow)
			r.Post("/appointments", s.book)
			r.Route("/appointments/{id}", func(r chi.Router) {
				r.Post("/arrival", s.confirmArrival)
				r.Post("/reschedule", s.reschedule)
				r.Post("/swap/accept", s.acceptSwap)
				r.Post("/proposal/approve", s.approveChange)
				r.Post("/receipt-request", s.requestReceipt)
			})
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Get("/appointments", s.adminAppointments)
			r.Get("/stats", s.stats)
			r.Get("/export", s.export)
			r.Post("/appointments/{id}/status", s.setStatus)
			r.Post("/appointments/{id}/proposal", s.proposeChange)
			r.Post("/appointments/{id}/receipt", s.attachReceipt)
			r.Put("/services/{id}", s.upsertService)
			r.Delete("/services/{id}", s.deleteService)
			r.Put("/employees/{id}", s.upsertEmployee)
			r.Delete("/employees/{id}", s.deleteEmployee)
			r.Get("/business-hours/{weekday}", s.businessHours)
			r.Put("/business-hours/{weekday}", s.setBusinessHours)
			r.Post("/overrides/{date}/toggle", s.toggleOverride)
			r.Put("/overrides/{date}", s.setOverride)
			r.Put("/clients/{id}/reschedule-override", s.rescheduleOverride)
			r.Get("/notifications", s.adminNotifications)
			r.Post("/notifications/read", s.readAdminNotifications)
		})
	})

	return r
}

// Sweep drops idle rate limiters and expired sessions.
func (s *Server) Sweep() {
	removed := s.limiter.sweep(10 * time.Minute)
	removed += s.portal.CleanupSessions()
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("idle callers swept")
	}
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *Server) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}
