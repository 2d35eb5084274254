package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"salonbook/internal/domain"
	"salonbook/internal/models"
)

const recoveryInterval = time.Minute

// FailoverStore uses a primary store and mirrors every successful save into
// a local fallback. While the primary is failing, reads and writes go to the
// fallback; the primary is retried once per recovery interval.
type FailoverStore struct {
	primary  domain.DocumentStore
	fallback domain.DocumentStore
	logger   *zerolog.Logger

	isDown    atomic.Bool
	mu        sync.Mutex
	lastCheck time.Time
}

// NewFailoverStore wraps primary with a fallback.
func NewFailoverStore(primary, fallback domain.DocumentStore, logger *zerolog.Logger) *FailoverStore {
	return &FailoverStore{primary: primary, fallback: fallback, logger: logger}
}

// Down reports whether the primary is considered unavailable.
func (f *FailoverStore) Down() bool {
	return f.isDown.Load()
}

func (f *FailoverStore) usePrimary() bool {
	if !f.isDown.Load() {
		return true
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if time.Since(f.lastCheck) > recoveryInterval {
		f.lastCheck = time.Now()
		return true
	}
	return false
}

func (f *FailoverStore) markDown(err error) {
	if !f.isDown.Swap(true) {
		f.logger.Warn().Err(err).Msg("primary document store failed, switching to fallback")
	}
	f.mu.Lock()
	f.lastCheck = time.Now()
	f.mu.Unlock()
}

func (f *FailoverStore) markUp() {
	if f.isDown.Swap(false) {
		f.logger.Info().Msg("primary document store recovered")
	}
}

// soft errors are answers from a healthy primary.
func soft(err error) bool {
	return errors.Is(err, domain.ErrNoDocument) || errors.Is(err, domain.ErrVersionConflict)
}

// Load reads from the primary, falling back on failure.
func (f *FailoverStore) Load(ctx context.Context) (*models.Document, error) {
	if f.usePrimary() {
		doc, err := f.primary.Load(ctx)
		if err == nil || soft(err) {
			f.markUp()
			return doc, err
		}
		f.markDown(err)
	}
	return f.fallback.Load(ctx)
}

// ErrPrimaryUnavailable is returned by Save when only the fallback was
// written. Callers should keep their changes and retry.
var ErrPrimaryUnavailable = errors.New("primary document store unavailable")

// Save writes to the primary and mirrors to the fallback. When the primary
// fails the fallback alone is written and ErrPrimaryUnavailable returned.
func (f *FailoverStore) Save(ctx context.Context, doc *models.Document) error {
	if f.usePrimary() {
		err := f.primary.Save(ctx, doc)
		if err == nil {
			f.markUp()
			f.mirror(ctx, doc)
			return nil
		}
		if soft(err) {
			return err
		}
		f.markDown(err)
	}
	f.mirror(ctx, doc)
	return ErrPrimaryUnavailable
}

// mirror writes an unconditional copy to the fallback, keeping doc.Version
// tied to the primary.
func (f *FailoverStore) mirror(ctx context.Context, doc *models.Document) {
	cp := doc.Clone()
	cp.Version = 0
	if err := f.fallback.Save(ctx, cp); err != nil {
		f.logger.Error().Err(err).Msg("fallback document save failed")
	}
}
