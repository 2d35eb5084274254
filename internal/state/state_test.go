package state

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"
)

type memStore struct {
	mu      sync.Mutex
	doc     *models.Document
	version int64
	saveErr error
	loadErr error
	saves   int
}

func (m *memStore) Load(_ context.Context) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadErr != nil {
		return nil, m.loadErr
	}
	if m.doc == nil {
		return nil, domain.ErrNoDocument
	}
	c := m.doc.Clone()
	c.Version = m.version
	return c, nil
}

func (m *memStore) Save(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	if doc.Version != 0 && doc.Version != m.version {
		return domain.ErrVersionConflict
	}
	m.version++
	doc.Version = m.version
	m.doc = doc.Clone()
	m.saves++
	return nil
}

// write simulates another replica saving.
func (m *memStore) write(fn func(doc *models.Document)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		m.doc = models.NewDocument()
	}
	fn(m.doc)
	m.version++
}

func (m *memStore) snapshot() *models.Document {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.doc.Clone()
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService(t *testing.T, store *memStore, id Identity, cfg Config) (*Service, *fakeClock) {
	t.Helper()
	logger := zerolog.New(io.Discard)
	clock := &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)}
	if cfg.Debounce == 0 {
		cfg.Debounce = time.Hour
	}
	if cfg.Guard == 0 {
		cfg.Guard = 5 * time.Second
	}
	return NewService(store, events.NewEventBus(), id, cfg, &logger, WithClock(clock.Now)), clock
}

func appointment(id, employee string, start time.Time) models.Appointment {
	return models.Appointment{
		ID: id, ClientID: "c1", ServiceID: "1", EmployeeID: employee,
		StartTime: start, EndTime: start.Add(time.Hour), Status: models.StatusPending,
	}
}

var monday9 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.Local)

func TestService_LoadSeedsEmptyStore(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{})

	svc.Load(context.Background())

	require.NotNil(t, store.snapshot())
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.snapshot().Services, len(models.InitialServices()))
	assert.False(t, svc.Dirty())
}

func TestService_LoadFailureKeepsLocal(t *testing.T) {
	store := &memStore{loadErr: errors.New("network down")}
	svc, _ := newTestService(t, store, Identity{Role: models.RoleClient}, Config{})

	svc.Load(context.Background())

	assert.Len(t, svc.Snapshot().Services, len(models.InitialServices()))
}

func TestService_ApplyIsLocalFirst(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{})

	var published []string
	svc.Bus().Subscribe(events.TypeAll, func(e events.Event) error {
		published = append(published, e.Type)
		return nil
	})

	require.NoError(t, svc.Apply(domain.AddAppointment{Appointment: appointment("a1", "e1", monday9)}))

	assert.NotNil(t, svc.Snapshot().FindAppointment("a1"))
	assert.Nil(t, store.doc, "save is debounced")
	assert.True(t, svc.Dirty())
	assert.Equal(t, []string{domain.KindAddAppointment}, published)

	require.NoError(t, svc.Flush(context.Background()))
	assert.NotNil(t, store.snapshot().FindAppointment("a1"))
	assert.False(t, svc.Dirty())
}

func TestService_SnapshotIsIsolated(t *testing.T) {
	svc, _ := newTestService(t, &memStore{}, Identity{Role: models.RoleAdmin}, Config{})

	snap := svc.Snapshot()
	snap.Services[0].Name = "mutated"

	assert.NotEqual(t, "mutated", svc.Snapshot().Services[0].Name)
}

func TestService_ApplyReportsUnknownTargets(t *testing.T) {
	svc, _ := newTestService(t, &memStore{}, Identity{Role: models.RoleAdmin}, Config{})

	err := svc.Apply(
		domain.UpdateAppointment{ID: "missing"},
		domain.PushAdminNotification{Notification: models.Notification{ID: "n1"}},
	)
	assert.ErrorIs(t, err, domain.ErrUnknownTarget)
	assert.Len(t, svc.Snapshot().AdminNotifications, 1)
}

func TestService_MutateSeesLatestState(t *testing.T) {
	svc, _ := newTestService(t, &memStore{}, Identity{Role: models.RoleAdmin}, Config{})

	add := func(id string) error {
		return svc.Mutate(func(doc *models.Document) ([]domain.Intent, error) {
			if len(doc.Appointments) > 0 {
				return nil, errors.New("taken")
			}
			return []domain.Intent{domain.AddAppointment{Appointment: appointment(id, "e1", monday9)}}, nil
		})
	}

	require.NoError(t, add("a1"))
	assert.EqualError(t, add("a2"), "taken")
	assert.Len(t, svc.Snapshot().Appointments, 1)
}

func TestService_DebouncedSave(t *testing.T) {
	store := &memStore{}
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{Debounce: 20 * time.Millisecond})

	for i := 0; i < 3; i++ {
		require.NoError(t, svc.Apply(domain.PushAdminNotification{Notification: models.Notification{ID: string(rune('a' + i))}}))
	}

	assert.Eventually(t, func() bool { return !svc.Dirty() }, time.Second, 5*time.Millisecond)
	store.mu.Lock()
	defer store.mu.Unlock()
	assert.Equal(t, 1, store.saves)
	assert.Len(t, store.doc.AdminNotifications, 3)
}

func TestService_SyncGuard(t *testing.T) {
	store := &memStore{}
	store.write(func(doc *models.Document) {})
	svc, clock := newTestService(t, store, Identity{Role: models.RoleClient, ClientID: "c1"}, Config{})
	ctx := context.Background()
	svc.Load(ctx)

	require.NoError(t, svc.Apply(domain.PushAdminNotification{Notification: models.Notification{ID: "local"}}))
	require.NoError(t, svc.Flush(ctx))

	store.write(func(doc *models.Document) {
		doc.Appointments = append(doc.Appointments, appointment("remote", "e2", monday9))
	})

	clock.Advance(2 * time.Second)
	assert.False(t, svc.Sync(ctx), "recent local change suppresses sync")
	assert.Nil(t, svc.Snapshot().FindAppointment("remote"))

	clock.Advance(4 * time.Second)
	assert.True(t, svc.Sync(ctx))
	assert.NotNil(t, svc.Snapshot().FindAppointment("remote"))
}

func TestService_PersistFailureKeepsLocal(t *testing.T) {
	store := &memStore{}
	store.write(func(doc *models.Document) {})
	svc, clock := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{})
	ctx := context.Background()
	svc.Load(ctx)

	store.saveErr = errors.New("503")
	require.NoError(t, svc.Apply(domain.AddAppointment{Appointment: appointment("a1", "e1", monday9)}))
	assert.Error(t, svc.Flush(ctx))

	assert.NotNil(t, svc.Snapshot().FindAppointment("a1"))
	assert.True(t, svc.Dirty())

	clock.Advance(time.Minute)
	assert.False(t, svc.Sync(ctx), "unsaved changes are never overwritten by a pull")

	store.saveErr = nil
	require.NoError(t, svc.Flush(ctx))
	assert.NotNil(t, store.snapshot().FindAppointment("a1"))
}

func TestService_LastWriterWinsWithoutCAS(t *testing.T) {
	store := &memStore{}
	store.write(func(doc *models.Document) {})
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{})
	ctx := context.Background()
	svc.Load(ctx)

	store.write(func(doc *models.Document) {
		doc.Appointments = append(doc.Appointments, appointment("theirs", "e1", monday9))
	})

	require.NoError(t, svc.Apply(domain.AddAppointment{Appointment: appointment("mine", "e1", monday9)}))
	require.NoError(t, svc.Flush(ctx))

	remote := store.snapshot()
	assert.NotNil(t, remote.FindAppointment("mine"))
	assert.Nil(t, remote.FindAppointment("theirs"), "concurrent write is overwritten")
}

func TestService_CompareAndSwapReplay(t *testing.T) {
	store := &memStore{}
	store.write(func(doc *models.Document) {})
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{CompareAndSwap: true})
	ctx := context.Background()
	svc.Load(ctx)

	var dropped []string
	svc.Bus().Subscribe(EventBookingDropped, func(e events.Event) error {
		dropped = append(dropped, e.Data.(models.Appointment).ID)
		return nil
	})

	store.write(func(doc *models.Document) {
		doc.Appointments = append(doc.Appointments, appointment("theirs", "e1", monday9))
	})

	require.NoError(t, svc.Apply(
		domain.AddAppointment{Appointment: appointment("clash", "e1", monday9.Add(30*time.Minute))},
		domain.AddAppointment{Appointment: appointment("free", "e2", monday9)},
	))
	require.NoError(t, svc.Flush(ctx))

	remote := store.snapshot()
	assert.NotNil(t, remote.FindAppointment("theirs"))
	assert.NotNil(t, remote.FindAppointment("free"))
	assert.Nil(t, remote.FindAppointment("clash"))
	require.NotEmpty(t, remote.AdminNotifications)
	assert.Equal(t, models.NotificationAlert, remote.AdminNotifications[0].Type)

	local := svc.Snapshot()
	assert.Nil(t, local.FindAppointment("clash"))
	assert.Equal(t, store.version, local.Version)
	assert.Equal(t, []string{"clash"}, dropped)
	assert.False(t, svc.Dirty())
}

func TestService_RunFlushesOnShutdown(t *testing.T) {
	store := &memStore{}
	store.write(func(doc *models.Document) {})
	svc, _ := newTestService(t, store, Identity{Role: models.RoleAdmin}, Config{PollInterval: time.Hour})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		svc.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return svc.Snapshot().Version == 1
	}, time.Second, 5*time.Millisecond)
	require.NoError(t, svc.Apply(domain.PushAdminNotification{Notification: models.Notification{ID: "n1"}}))
	cancel()
	<-done

	assert.Len(t, store.snapshot().AdminNotifications, 1)
}
