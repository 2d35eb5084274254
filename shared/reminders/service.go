// Package reminders asks clients to confirm arrival once a confirmed
// appointment enters the arrival window.
package reminders

import (
	"context"
	"sync"
	"time"
)

// Config holds configuration for the reminder service.
type Config struct {
	// CheckInterval is how often to check for upcoming appointments.
	// Default: 15 minutes.
	CheckInterval time.Duration

	// Window is how long before the start a reminder is due.
	// Default: 48 hours.
	Window time.Duration

	// MaxConcurrentNotifications limits parallel notification sends.
	// Default: 10.
	MaxConcurrentNotifications int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		CheckInterval:              15 * time.Minute,
		Window:                     48 * time.Hour,
		MaxConcurrentNotifications: 10,
	}
}

// Service sends arrival-confirmation reminders.
type Service struct {
	config *Config
	source AppointmentSource
	sender *Sender
	logger Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	sentMu sync.Mutex
	sent   map[string]struct{}
}

// NewService creates a new reminder service.
func NewService(config *Config, source AppointmentSource, sender *Sender, logger Logger) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.CheckInterval == 0 {
		config.CheckInterval = 15 * time.Minute
	}
	if config.Window == 0 {
		config.Window = 48 * time.Hour
	}
	if config.MaxConcurrentNotifications == 0 {
		config.MaxConcurrentNotifications = 10
	}

	return &Service{
		config: config,
		source: source,
		sender: sender,
		logger: logger,
		stopCh: make(chan struct{}),
		sent:   make(map[string]struct{}),
	}
}

// Start begins the reminder check loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop()

	if s.logger != nil {
		s.logger.Info("Reminder service started",
			"check_interval", s.config.CheckInterval,
			"window", s.config.Window,
		)
	}
}

// Stop gracefully stops the reminder service.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.mu.Unlock()

	close(s.stopCh)
	s.wg.Wait()

	if s.logger != nil {
		s.logger.Info("Reminder service stopped")
	}
}

func (s *Service) loop() {
	defer s.wg.Done()

	// Run immediately on start
	s.CheckNow(context.Background())

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.CheckNow(context.Background())
		}
	}
}

// CheckNow sends due reminders and returns how many were delivered.
func (s *Service) CheckNow(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	due, err := s.source.PendingArrivals(ctx, s.config.Window)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("Failed to get upcoming appointments", "error", err)
		}
		return 0
	}
	s.forgetMissing(due)

	if len(due) == 0 {
		return 0
	}

	if s.logger != nil {
		s.logger.Debug("Found appointments to check for reminders", "count", len(due))
	}

	// Use semaphore to limit concurrent notifications
	sem := make(chan struct{}, s.config.MaxConcurrentNotifications)
	var (
		wg        sync.WaitGroup
		deliverMu sync.Mutex
		delivered int
	)

	for _, apt := range due {
		if !s.claim(apt) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{} // acquire

		go func(a Appointment) {
			defer wg.Done()
			defer func() { <-sem }() // release

			if err := s.sender.Send(ctx, a); err != nil {
				s.release(a)
				if s.logger != nil {
					s.logger.Error("Failed to send reminder",
						"appointment_id", a.ID,
						"client_id", a.ClientID,
						"error", err,
					)
				}
				return
			}

			deliverMu.Lock()
			delivered++
			deliverMu.Unlock()

			if s.logger != nil {
				s.logger.Info("Reminder sent",
					"appointment_id", a.ID,
					"client_id", a.ClientID,
				)
			}
		}(apt)
	}

	wg.Wait()
	return delivered
}

// claim marks a reminder as in flight; false means it was already sent.
func (s *Service) claim(a Appointment) bool {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	if _, ok := s.sent[a.key()]; ok {
		return false
	}
	s.sent[a.key()] = struct{}{}
	return true
}

func (s *Service) release(a Appointment) {
	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	delete(s.sent, a.key())
}

// forgetMissing drops dedup keys of appointments that are no longer due.
func (s *Service) forgetMissing(due []Appointment) {
	keep := make(map[string]struct{}, len(due))
	for _, a := range due {
		keep[a.key()] = struct{}{}
	}

	s.sentMu.Lock()
	defer s.sentMu.Unlock()
	for k := range s.sent {
		if _, ok := keep[k]; !ok {
			delete(s.sent, k)
		}
	}
}
