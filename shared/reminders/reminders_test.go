package reminders

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockSource struct {
	mock.Mock
}

func (m *MockSource) PendingArrivals(ctx context.Context, window time.Duration) ([]Appointment, error) {
	args := m.Called(ctx, window)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Appointment), args.Error(1)
}

type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	fails map[string][]error
}

func (n *recordingNotifier) SendReminder(_ context.Context, apt Appointment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if queue := n.fails[apt.ID]; len(queue) > 0 {
		n.fails[apt.ID] = queue[1:]
		return queue[0]
	}
	n.sent = append(n.sent, apt.ID)
	return nil
}

func (n *recordingNotifier) count(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, s := range n.sent {
		if s == id {
			c++
		}
	}
	return c
}

func newTestSender(n Notifier, m *Metrics) *Sender {
	s := NewSender(n, nil, RetryConfig{MaxRetries: 2, RetryDelays: []time.Duration{time.Millisecond}}, m, nil)
	s.sleep = func(context.Context, time.Duration) error { return nil }
	return s
}

var start = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func TestReminderDeduplication(t *testing.T) {
	src := new(MockSource)
	due := []Appointment{{ID: "a1", ClientID: "c1", StartTime: start}, {ID: "a2", ClientID: "c2", StartTime: start}}
	src.On("PendingArrivals", mock.Anything, 48*time.Hour).Return(due, nil)

	n := &recordingNotifier{}
	svc := NewService(nil, src, newTestSender(n, nil), nil)

	assert.Equal(t, 2, svc.CheckNow(context.Background()))
	assert.Equal(t, 0, svc.CheckNow(context.Background()))
	assert.Equal(t, 1, n.count("a1"))
	assert.Equal(t, 1, n.count("a2"))
	src.AssertExpectations(t)
}

func TestReminderSentAgainAfterMove(t *testing.T) {
	src := new(MockSource)
	moved := start.Add(24 * time.Hour)
	src.On("PendingArrivals", mock.Anything, mock.Anything).Return([]Appointment{{ID: "a1", StartTime: start}}, nil).Once()
	src.On("PendingArrivals", mock.Anything, mock.Anything).Return([]Appointment{}, nil).Once()
	src.On("PendingArrivals", mock.Anything, mock.Anything).Return([]Appointment{{ID: "a1", StartTime: moved}}, nil).Once()

	n := &recordingNotifier{}
	svc := NewService(nil, src, newTestSender(n, nil), nil)

	assert.Equal(t, 1, svc.CheckNow(context.Background()))
	assert.Equal(t, 0, svc.CheckNow(context.Background()))
	assert.Equal(t, 1, svc.CheckNow(context.Background()))
	assert.Equal(t, 2, n.count("a1"))
}

func TestFailedReminderIsRetriedNextCheck(t *testing.T) {
	src := new(MockSource)
	src.On("PendingArrivals", mock.Anything, mock.Anything).Return([]Appointment{{ID: "a1", StartTime: start}}, nil)

	n := &recordingNotifier{fails: map[string][]error{"a1": {errors.New("chat not found")}}}
	svc := NewService(nil, src, newTestSender(n, nil), nil)

	assert.Equal(t, 0, svc.CheckNow(context.Background()))
	assert.Equal(t, 1, svc.CheckNow(context.Background()))
}

func TestSourceErrorSendsNothing(t *testing.T) {
	src := new(MockSource)
	src.On("PendingArrivals", mock.Anything, mock.Anything).Return(nil, errors.New("boom"))

	n := &recordingNotifier{}
	svc := NewService(nil, src, newTestSender(n, nil), nil)
	assert.Equal(t, 0, svc.CheckNow(context.Background()))
}

func TestSender_RetriesTemporaryErrors(t *testing.T) {
	m := newMetrics(promauto.With(prometheus.NewRegistry()), "test")
	n := &recordingNotifier{fails: map[string][]error{
		"a1": {&TemporaryError{Err: errors.New("429")}, &TemporaryError{Err: errors.New("429"), RetryAfter: time.Second}},
	}}
	s := newTestSender(n, m)

	var delays []time.Duration
	s.sleep = func(_ context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	require.NoError(t, s.Send(context.Background(), Appointment{ID: "a1"}))
	assert.Equal(t, []time.Duration{time.Millisecond, time.Second}, delays)
	assert.Equal(t, float64(2), testutil.ToFloat64(m.ReminderRetries))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.RemindersSentTotal.WithLabelValues("sent", string(ReminderTypeArrival))))
}

func TestSender_GivesUp(t *testing.T) {
	tmp := &TemporaryError{Err: errors.New("timeout")}
	n := &recordingNotifier{fails: map[string][]error{"a1": {tmp, tmp, tmp, tmp}}}
	s := newTestSender(n, nil)

	err := s.Send(context.Background(), Appointment{ID: "a1"})
	require.Error(t, err)
	_, ok := IsTemporary(err)
	assert.True(t, ok)
	assert.Equal(t, 0, n.count("a1"))
}

func TestSender_PermanentErrorNotRetried(t *testing.T) {
	n := &recordingNotifier{fails: map[string][]error{"a1": {errors.New("blocked"), nil}}}
	s := newTestSender(n, nil)

	calls := 0
	s.sleep = func(context.Context, time.Duration) error {
		calls++
		return nil
	}
	assert.Error(t, s.Send(context.Background(), Appointment{ID: "a1"}))
	assert.Zero(t, calls)
}

func TestRateLimiter_TryAcquire(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 2})
	assert.True(t, rl.TryAcquire())
	assert.True(t, rl.TryAcquire())
	assert.False(t, rl.TryAcquire())
}

func TestRateLimiter_WaitHonorsContext(t *testing.T) {
	rl := NewRateLimiter(RateLimiterConfig{Rate: 0.001, Burst: 1})
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.Error(t, rl.Wait(ctx))
}
