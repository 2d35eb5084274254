// Package state holds the in-memory shared document, applies mutation
// intents to it and keeps it in sync with the persistent store.
package state

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/metrics"
	"salonbook/internal/models"
)

// Event types published besides the intent kinds.
const (
	EventSynced         = "document.synced"
	EventBookingDropped = "appointment.dropped"
)

// Config controls persistence timing.
type Config struct {
	// PollInterval is how often the remote document is pulled.
	PollInterval time.Duration
	// Debounce delays a save after the last local change.
	Debounce time.Duration
	// Guard suppresses incoming syncs for this long after a local change.
	Guard time.Duration
	// CompareAndSwap saves with the loaded version and replays local
	// changes on conflict. Without it the last writer wins.
	CompareAndSwap bool
}

// DefaultConfig returns the standard timings.
func DefaultConfig() Config {
	return Config{
		PollInterval: 5 * time.Second,
		Debounce:     500 * time.Millisecond,
		Guard:        5 * time.Second,
	}
}

// Option customizes a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIDGenerator sets the generator used for conflict notices.
func WithIDGenerator(gen domain.IDGenerator) Option {
	return func(s *Service) { s.newID = gen }
}

// Service is the application state: one shared document, read through
// snapshots and changed only through intents.
type Service struct {
	store  domain.DocumentStore
	bus    *events.EventBus
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
	newID  domain.IDGenerator

	// writeMu serializes read-validate-apply cycles and sync swaps.
	writeMu sync.Mutex

	mu        sync.RWMutex
	doc       *models.Document
	identity  Identity
	lastLocal time.Time
	pending   []domain.Intent
	dirty     bool

	persistMu sync.Mutex
	timerMu   sync.Mutex
	timer     *time.Timer
}

// NewService creates a state service seeded with the default document.
func NewService(store domain.DocumentStore, bus *events.EventBus, id Identity, cfg Config, logger *zerolog.Logger, opts ...Option) *Service {
	def := DefaultConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = def.Debounce
	}
	if cfg.Guard < 0 {
		cfg.Guard = def.Guard
	}
	if bus == nil {
		bus = events.NewEventBus()
	}

	s := &Service{
		store:    store,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.With().Str("component", "state").Logger(),
		now:      time.Now,
		newID:    domain.NewUUID,
		doc:      models.NewDocument(),
		identity: id,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bus returns the event bus applied intents are published on.
func (s *Service) Bus() *events.EventBus {
	return s.bus
}

// Snapshot returns a deep copy of the current document.
func (s *Service) Snapshot() *models.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

// Identity returns who the replica acts for.
func (s *Service) Identity() Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// SetIdentity changes who the replica acts for.
func (s *Service) SetIdentity(id Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = id
}

// Load pulls the stored document once at startup. When nothing is stored
// the seed document is written. Failures are logged and the local seed kept.
func (s *Service) Load(ctx context.Context) {
	remote, err := s.store.Load(ctx)
	switch {
	case errors.Is(err, domain.ErrNoDocument):
		s.logger.Info().Msg("no stored document, seeding defaults")
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("seed document not saved")
		}
		return
	case err != nil:
		metrics.IncSyncPull("error")
		s.logger.Warn().Err(err).Msg("initial load failed, using local document")
		return
	}

	remote.FillDefaults()
	s.writeMu.Lock()
	s.mu.Lock()
	s.doc = remote
	s.mu.Unlock()
	s.writeMu.Unlock()

	metrics.IncSyncPull("ok")
	s.logger.Info().
		Int("appointments", len(remote.Appointments)).
		Int("clients", len(remote.Clients)).
		Int64("version", remote.Version).
		Msg("document loaded")
}

// Mutate runs fn on a snapshot and applies the intents it returns. Calls
// are serialized so validation sees the state the intents land on.
func (s *Service) Mutate(fn func(doc *models.Document) ([]domain.Intent, error)) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	intents, err := fn(s.Snapshot())
	if err != nil {
		return err
	}
	return s.apply(intents)
}

// Apply applies intents to the local document immediately and schedules a
// debounced save. Intents that reference missing records are skipped.
func (s *Service) Apply(intents ...domain.Intent) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.apply(intents)
}

func (s *Service) apply(intents []domain.Intent) error {
	if len(intents) == 0 {
		return nil
	}

	var (
		applied []domain.Intent
		errs    []error
	)
	s.mu.Lock()
	for _, in := range intents {
		if err := domain.Apply(s.doc, in); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", in.Kind(), err))
			continue
		}
		applied = append(applied, in)
	}
	if len(applied) > 0 {
		s.pending = append(s.pending, applied...)
		s.lastLocal = s.now()
		s.dirty = true
	}
	s.mu.Unlock()

	for _, in := range applied {
		if err := s.bus.PublishJSON(in.Kind(), in); err != nil {
			s.logger.Error().Err(err).Str("kind", in.Kind()).Msg("publish intent")
		}
	}
	if len(applied) > 0 {
		s.schedulePersist()
	}
	return errors.Join(errs...)
}

func (s *Service) schedulePersist() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.cfg.Debounce, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("debounced save failed, will retry on next sync")
		}
	})
}

func (s *Service) stopTimer() {
	s.timerMu.Lock()
	defer s.timerMu.Unlock()
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// Dirty reports whether local changes are waiting to be saved.
func (s *Service) Dirty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dirty
}

// Flush saves local changes now. On failure the local document is kept and
// the changes stay pending for the next attempt.
func (s *Service) Flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.RLock()
	if !s.dirty {
		s.mu.RUnlock()
		return nil
	}
	snap := s.doc.Clone()
	flushed := len(s.pending)
	s.mu.RUnlock()

	if !s.cfg.CompareAndSwap {
		snap.Version = 0
	}

	err := s.store.Save(ctx, snap)
	switch {
	case err == nil:
		s.markSaved(snap.Version, flushed)
		metrics.IncSyncPush("ok")
		return nil
	case errors.Is(err, domain.ErrVersionConflict) && s.cfg.CompareAndSwap:
		metrics.IncPersistConflict()
		s.logger.Warn().Int64("version", snap.Version).Msg("document changed remotely, replaying local changes")
		return s.resolveConflict(ctx)
	default:
		metrics.IncSyncPush("error")
		return fmt.Errorf("save document: %w", err)
	}
}

func (s *Service) markSaved(version int64, flushed int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc.Version = version
	if flushed > len(s.pending) {
		flushed = len(s.pending)
	}
	s.pending = s.pending[flushed:]
	s.dirty = len(s.pending) > 0
}

// resolveConflict reloads the remote document, replays the unsaved intents
// on top of it and saves once more.
func (s *Service) resolveConflict(ctx context.Context) error {
	remote, err := s.store.Load(ctx)
	if err != nil {
		metrics.IncSyncPull("error")
		return fmt.Errorf("reload after conflict: %w", err)
	}
	remote.FillDefaults()

	s.writeMu.Lock()
	s.mu.Lock()
	kept, dropped := Replay(remote, s.pending)
	for _, apt := range dropped {
		notice := domain.PushAdminNotification{Notification: models.Notification{
			ID:        s.newID(),
			Message:   fmt.Sprintf("A booking for %s was dropped: the slot was taken by a concurrent booking", apt.StartTime.Format("2006-01-02 15:04")),
			Timestamp: s.now(),
			Type:      models.NotificationAlert,
		}}
		if err := domain.Apply(remote, notice); err == nil {
			kept = append(kept, notice)
		}
	}
	s.doc = remote
	s.pending = kept
	s.dirty = true
	snap := remote.Clone()
	flushed := len(kept)
	s.mu.Unlock()
	s.writeMu.Unlock()

	for _, apt := range dropped {
		metrics.IncDroppedBooking()
		s.logger.Warn().
			Str("appointment_id", apt.ID).
			Str("client_id", apt.ClientID).
			Time("start", apt.StartTime).
			Msg("booking dropped on conflict replay")
		if err := s.bus.PublishJSON(EventBookingDropped, apt); err != nil {
			s.logger.Error().Err(err).Msg("publish dropped booking")
		}
	}

	if err := s.store.Save(ctx, snap); err != nil {
		metrics.IncSyncPush("error")
		s.schedulePersist()
		return fmt.Errorf("save after replay: %w", err)
	}
	s.markSaved(snap.Version, flushed)
	metrics.IncSyncPush("ok")
	return nil
}

// Sync pulls the remote document and reconciles it into the local one.
// It does nothing while local changes are unsaved or younger than the
// guard window. Pull failures keep the local document.
func (s *Service) Sync(ctx context.Context) bool {
	if s.guarded() {
		metrics.IncSyncPull("skipped")
		return false
	}

	s.mu.RLock()
	started := s.lastLocal
	s.mu.RUnlock()

	remote, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNoDocument) {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		if err := s.Flush(ctx); err != nil {
			s.logger.Warn().Err(err).Msg("seed document not saved")
		}
		return false
	}
	if err != nil {
		metrics.IncSyncPull("error")
		s.logger.Warn().Err(err).Msg("sync pull failed, keeping local document")
		return false
	}

	s.writeMu.Lock()
	s.mu.Lock()
	if !s.lastLocal.Equal(started) || s.dirty {
		s.mu.Unlock()
		s.writeMu.Unlock()
		metrics.IncSyncPull("skipped")
		return false
	}
	s.doc = Reconcile(s.doc, remote, s.identity)
	version := s.doc.Version
	s.mu.Unlock()
	s.writeMu.Unlock()

	metrics.IncSyncPull("ok")
	s.bus.Publish(events.Event{Type: EventSynced, Data: version})
	return true
}

func (s *Service) guarded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.dirty {
		return true
	}
	return !s.lastLocal.IsZero() && s.now().Sub(s.lastLocal) < s.cfg.Guard
}

// Run loads the document and polls until ctx is done.
func (s *Service) Run(ctx context.Context) {
	s.Load(ctx)
	s.Poll(ctx)
}

// Poll syncs on every tick until ctx is done, retrying unsaved changes
// first. Pending changes are flushed on exit.
func (s *Service) Poll(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.stopTimer()
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := s.Flush(flushCtx); err != nil {
				s.logger.Error().Err(err).Msg("final save failed")
			}
			cancel()
			return
		case <-ticker.C:
			if s.Dirty() {
				if err := s.Flush(ctx); err != nil {
					s.logger.Warn().Err(err).Msg("retry save failed")
				}
			}
			s.Sync(ctx)
		}
	}
}
