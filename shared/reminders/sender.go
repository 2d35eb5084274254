package reminders

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// RetryConfig holds configuration for retry logic.
type RetryConfig struct {
	MaxRetries  int
	RetryDelays []time.Duration
}

// DefaultRetryConfig returns the default retry configuration.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		RetryDelays: []time.Duration{
			1 * time.Second,
			5 * time.Second,
			30 * time.Second,
		},
	}
}

// TemporaryError marks a delivery failure that may succeed later.
type TemporaryError struct {
	Err        error
	RetryAfter time.Duration // overrides the configured delay when set
}

func (e *TemporaryError) Error() string {
	return fmt.Sprintf("temporary delivery failure: %v", e.Err)
}

func (e *TemporaryError) Unwrap() error {
	return e.Err
}

// IsTemporary checks if the error is worth retrying.
func IsTemporary(err error) (*TemporaryError, bool) {
	var tmp *TemporaryError
	if errors.As(err, &tmp) {
		return tmp, true
	}
	return nil, false
}

// Sender delivers reminders with rate limiting and retries.
type Sender struct {
	notifier    Notifier
	rateLimiter *RateLimiter
	retryConfig RetryConfig
	metrics     *Metrics
	logger      Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewSender creates a sender. limiter and metrics may be nil.
func NewSender(notifier Notifier, limiter *RateLimiter, retry RetryConfig, metrics *Metrics, logger Logger) *Sender {
	return &Sender{
		notifier:    notifier,
		rateLimiter: limiter,
		retryConfig: retry,
		metrics:     metrics,
		logger:      logger,
		sleep:       sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send delivers one reminder, retrying temporary failures.
func (s *Sender) Send(ctx context.Context, apt Appointment) error {
	started := time.Now()
	var lastErr error

	for attempt := 0; attempt <= s.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.IncRetries()
			if err := s.sleep(ctx, s.retryDelay(attempt, lastErr)); err != nil {
				return err
			}
		}

		if s.rateLimiter != nil {
			if err := s.rateLimiter.Wait(ctx); err != nil {
				return err
			}
		}

		lastErr = s.notifier.SendReminder(ctx, apt)
		if lastErr == nil {
			s.metrics.IncSent("sent", ReminderTypeArrival)
			s.metrics.ObserveSendDuration(time.Since(started).Seconds())
			return nil
		}
		if _, ok := IsTemporary(lastErr); !ok {
			break
		}
		if s.logger != nil {
			s.logger.Debug("Reminder delivery failed, retrying",
				"appointment_id", apt.ID,
				"attempt", attempt+1,
				"error", lastErr,
			)
		}
	}

	s.metrics.IncSent("failed", ReminderTypeArrival)
	return fmt.Errorf("send reminder for %s: %w", apt.ID, lastErr)
}

func (s *Sender) retryDelay(attempt int, err error) time.Duration {
	if tmp, ok := IsTemporary(err); ok && tmp.RetryAfter > 0 {
		return tmp.RetryAfter
	}
	if len(s.retryConfig.RetryDelays) == 0 {
		return time.Second
	}
	idx := attempt - 1
	if idx >= len(s.retryConfig.RetryDelays) {
		idx = len(s.retryConfig.RetryDelays) - 1
	}
	return s.retryConfig.RetryDelays[idx]
}
