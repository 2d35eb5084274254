// Package service is the portal application layer: it runs the booking and
// negotiation engines against the shared state and records the outcome.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"salonbook/internal/booking"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/negotiation"
	"salonbook/internal/state"
	"salonbook/shared/access"
)

var portalTracer = otel.Tracer("salonbook.internal.service")

// ErrInvalidInput marks malformed request data.
var ErrInvalidInput = errors.New("invalid input")

// Option customizes a Portal.
type Option func(*Portal)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(p *Portal) { p.now = now }
}

// WithFlowTimeout sets how long an idle booking flow session lives.
func WithFlowTimeout(d time.Duration) Option {
	return func(p *Portal) { p.flowTimeout = d }
}

// Portal exposes client and admin operations.
type Portal struct {
	state      *state.Service
	engine     *booking.Engine
	negotiator *negotiation.Negotiator
	flow       *booking.Flow
	sessions   *booking.SessionStore
	access     *access.Service
	logger     zerolog.Logger
	now        func() time.Time
	newID      domain.IDGenerator

	flowTimeout time.Duration
}

// NewPortal wires the engines to the state service.
func NewPortal(st *state.Service, engine *booking.Engine, acc *access.Service, logger *zerolog.Logger, opts ...Option) *Portal {
	p := &Portal{
		state:      st,
		engine:     engine,
		negotiator: negotiation.New(engine),
		access:     acc,
		logger:     logger.With().Str("component", "portal").Logger(),
		now:        time.Now,
		newID:      engine.IDs(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.sessions = booking.NewSessionStore(p.flowTimeout)
	p.flow = booking.NewFlow(engine, p.sessions)
	return p
}

// Access returns the credential service.
func (p *Portal) Access() *access.Service {
	return p.access
}

// Snapshot returns a copy of the current document.
func (p *Portal) Snapshot() *models.Document {
	return p.state.Snapshot()
}

// CleanupSessions drops idle booking flow and login sessions.
func (p *Portal) CleanupSessions() int {
	n := p.sessions.Cleanup()
	if p.access != nil {
		n += p.access.Sessions().Cleanup()
	}
	return n
}

// mutate runs fn under the state write lock inside a span named after op.
func (p *Portal) mutate(ctx context.Context, op string, fn func(doc *models.Document) ([]domain.Intent, error), attrs ...attribute.KeyValue) error {
	_, span := portalTracer.Start(ctx, "portal."+op, trace.WithAttributes(attrs...))
	defer span.End()

	err := p.state.Mutate(fn)
	if err != nil {
		p.record(span, op, err)
	}
	return err
}

// record logs a failed operation. Rule violations and missing records are
// expected outcomes and logged at info.
func (p *Portal) record(span trace.Span, op string, err error) {
	span.RecordError(err)

	if rej, ok := booking.IsRejection(err); ok {
		span.SetAttributes(attribute.String("salon.rejection", string(rej.Reason)))
		p.logger.Info().Str("op", op).Str("reason", string(rej.Reason)).Msg(rej.Error())
		return
	}
	if errors.Is(err, booking.ErrNotFound) || errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, access.ErrPhoneTaken) || access.IsAccessDenied(err) {
		p.logger.Info().Str("op", op).Err(err).Msg("request declined")
		return
	}

	span.SetStatus(codes.Error, err.Error())
	p.logger.Error().Str("op", op).Err(err).Msg("operation failed")
}

// resultLabel turns an operation error into a metric label.
func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if rej, ok := booking.IsRejection(err); ok {
		return string(rej.Reason)
	}
	if errors.Is(err, booking.ErrNotFound) {
		return "not_found"
	}
	return "error"
}

func clientAttr(id string) attribute.KeyValue {
	return attribute.String("salon.client_id", id)
}

func appointmentAttr(id string) attribute.KeyValue {
	return attribute.String("salon.appointment_id", id)
}
