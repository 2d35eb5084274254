package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"salonbook/internal/booking"
	"salonbook/internal/domain"
	"salonbook/internal/models"
	"salonbook/internal/service"
	"salonbook/internal/state"
	"salonbook/shared/access"
	"salonbook/shared/audit"
)

const adminKey = "test-admin-key"

// Sunday; Monday 2026-03-02 is open 09:00-20:00.
var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.Local)

type memStore struct {
	mu  sync.Mutex
	doc *models.Document
}

func (m *memStore) Load(_ context.Context) (*models.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.doc == nil {
		return nil, domain.ErrNoDocument
	}
	return m.doc.Clone(), nil
}

func (m *memStore) Save(_ context.Context, doc *models.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.doc = doc.Clone()
	return nil
}

type harness struct {
	t      *testing.T
	server *httptest.Server
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	logger := zerolog.New(io.Discard)
	clock := func() time.Time { return now }

	st := state.NewService(&memStore{}, nil, state.Identity{Role: models.RoleAdmin},
		state.Config{PollInterval: time.Hour, Debounce: time.Hour, Guard: 5 * time.Second}, &logger,
		state.WithClock(clock))
	acc := access.NewService(adminKey, access.NewSessionStore(time.Hour), logger)
	portal := service.NewPortal(st, booking.NewEngine(booking.DefaultConfig(), nil), acc, &logger, service.WithClock(clock))
	exporter := audit.NewService(nil, portal, nil, nil, nil)

	srv := NewServer(portal, exporter, cfg, &logger)
	srv.now = clock
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &harness{t: t, server: ts}
}

func (h *harness) do(method, path string, headers map[string]string, body any) *http.Response {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(raw)
	}
	req, err := http.NewRequest(method, h.server.URL+path, rdr)
	require.NoError(h.t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	h.t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (h *harness) register(name, phone string) string {
	h.t.Helper()
	resp := h.do(http.MethodPost, "/api/clients", nil, map[string]string{
		"name": name, "phone": phone, "password": "secret",
	})
	require.Equal(h.t, http.StatusCreated, resp.StatusCode)
	var sess service.Session
	require.NoError(h.t, json.NewDecoder(resp.Body).Decode(&sess))
	return sess.Token
}

func session(token string) map[string]string {
	return map[string]string{headerSession: token}
}

func admin() map[string]string {
	return map[string]string{headerAPIKey: adminKey}
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func TestAPI_RegisterLoginAndAuth(t *testing.T) {
	h := newHarness(t, Config{})
	h.register("Dana", "0501111111")

	resp := h.do(http.MethodPost, "/api/clients", nil, map[string]string{
		"name": "Dup", "phone": "050-111-1111", "password": "secret",
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/login", nil, map[string]string{"phone": "0501111111", "password": "nope"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/login", nil, map[string]string{"phone": "0501111111", "password": "secret"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	sess := decodeBody[service.Session](t, resp)

	resp = h.do(http.MethodGet, "/api/me/appointments", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/me/appointments", session(sess.Token), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/admin/stats", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/admin/stats", map[string]string{headerAPIKey: "wrong"}, nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/login", nil, map[string]string{"phone": "0501111111", "unknown": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_CatalogAndSlots(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.do(http.MethodGet, "/api/services", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.Service](t, resp), 4)

	resp = h.do(http.MethodGet, "/api/services/3/employees", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	staff := decodeBody[[]models.Employee](t, resp)
	require.Len(t, staff, 1)
	assert.Equal(t, "e1", staff[0].ID)

	resp = h.do(http.MethodGet, "/api/services/99/employees", nil, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/availability/dates", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	months := decodeBody[[]map[string]any](t, resp)
	require.NotEmpty(t, months)
	assert.Equal(t, "2026-03", months[0]["key"])

	resp = h.do(http.MethodGet, "/api/availability/slots?date=2026-03-02&serviceId=1&employeeId=e1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	slots := decodeBody[[]map[string]any](t, resp)
	require.NotEmpty(t, slots)
	assert.Equal(t, "09:00", slots[0]["time"])

	resp = h.do(http.MethodGet, "/api/availability/slots?date=bad&serviceId=1", nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_BookingLifecycle(t *testing.T) {
	h := newHarness(t, Config{})
	dana := h.register("Dana", "0501111111")
	maya := h.register("Maya", "0502222222")

	req := map[string]string{"serviceId": "1", "employeeId": "e1", "date": "2026-03-02", "time": "10:00"}
	resp := h.do(http.MethodPost, "/api/appointments", session(dana), req)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	apt := decodeBody[models.Appointment](t, resp)
	assert.Equal(t, models.StatusPending, apt.Status)

	resp = h.do(http.MethodPost, "/api/appointments", session(maya), req)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, "slot_occupied", decodeBody[errorResponse](t, resp).Reason)

	resp = h.do(http.MethodPost, "/api/appointments/"+apt.ID+"/arrival", session(maya), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/admin/appointments/"+apt.ID+"/status", admin(), map[string]string{"status": "confirmed"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/appointments/"+apt.ID+"/arrival", session(dana), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[models.Appointment](t, resp).ConfirmedByClient)

	resp = h.do(http.MethodPost, "/api/appointments/"+apt.ID+"/reschedule", session(dana), map[string]string{"date": "2026-03-03", "time": "10:00"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/admin/stats", admin(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	stats := decodeBody[service.Stats](t, resp)
	assert.Equal(t, 1, stats.Week)
	assert.Equal(t, 150.0, stats.MonthRevenue)

	resp = h.do(http.MethodGet, "/api/admin/notifications", admin(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decodeBody[[]models.Notification](t, resp))

	resp = h.do(http.MethodPost, "/api/admin/notifications/read", admin(), nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
}

func TestAPI_SwapFlow(t *testing.T) {
	h := newHarness(t, Config{})
	dana := h.register("Dana", "0501111111")
	maya := h.register("Maya", "0502222222")

	resp := h.do(http.MethodPost, "/api/appointments", session(dana),
		map[string]string{"serviceId": "1", "employeeId": "e1", "date": "2026-03-02", "time": "10:00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	first := decodeBody[models.Appointment](t, resp)

	resp = h.do(http.MethodPost, "/api/appointments", session(maya),
		map[string]string{"serviceId": "1", "employeeId": "e1", "date": "2026-03-02", "time": "14:00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	second := decodeBody[models.Appointment](t, resp)

	resp = h.do(http.MethodPost, "/api/appointments/"+first.ID+"/reschedule", session(dana),
		map[string]string{"date": "2026-03-02", "time": "14:00"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/me/notifications", session(maya), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	notes := decodeBody[[]models.Notification](t, resp)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotificationAlert, notes[0].Type)

	resp = h.do(http.MethodPost, "/api/appointments/"+second.ID+"/swap/accept", session(maya), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/me/appointments", session(maya), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	mine := decodeBody[[]service.AppointmentView](t, resp)
	require.Len(t, mine, 1)
	assert.Equal(t, 10, mine[0].StartTime.In(time.Local).Hour())
}

func TestAPI_AdminConfiguration(t *testing.T) {
	h := newHarness(t, Config{})

	resp := h.do(http.MethodPut, "/api/admin/services/5", admin(),
		map[string]any{"name": "Brow shaping", "duration": 30, "price": 80, "category": "facial"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodPut, "/api/admin/employees/e3", admin(), map[string]any{"name": "Tal"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[models.Employee](t, resp).Services, 5)

	resp = h.do(http.MethodDelete, "/api/admin/employees/e9", admin(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = h.do(http.MethodPut, "/api/admin/business-hours/5", admin(),
		map[string]any{"isOpen": true, "start": "08:00", "end": "12:00"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/admin/business-hours/5", admin(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, decodeBody[models.DayConfig](t, resp).IsOpen)

	resp = h.do(http.MethodPut, "/api/admin/business-hours/9", admin(), map[string]any{"isOpen": false})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = h.do(http.MethodPost, "/api/admin/overrides/2026-03-02/toggle", admin(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/availability/slots?date=2026-03-02&serviceId=1", nil, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, decodeBody[[]map[string]any](t, resp))

	resp = h.do(http.MethodPut, "/api/admin/clients/nobody/reschedule-override", admin(), map[string]bool{"allowed": true})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_Export(t *testing.T) {
	h := newHarness(t, Config{})
	dana := h.register("Dana", "0501111111")
	resp := h.do(http.MethodPost, "/api/appointments", session(dana),
		map[string]string{"serviceId": "1", "date": "2026-03-02", "time": "10:00"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = h.do(http.MethodGet, "/api/admin/export?month=2026-03", admin(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "appointments_2026-03.xlsx")

	f, err := excelize.OpenReader(resp.Body)
	require.NoError(t, err)
	defer f.Close()
	rows, err := f.GetRows("March 2026")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Dana", rows[1][2])

	resp = h.do(http.MethodGet, "/api/admin/export?month=March", admin(), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_RateLimit(t *testing.T) {
	h := newHarness(t, Config{RatePerSecond: 0.001, Burst: 2})

	for i := 0; i < 2; i++ {
		resp := h.do(http.MethodGet, "/api/services", nil, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
	resp := h.do(http.MethodGet, "/api/services", nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)

	// Another caller has its own bucket.
	resp = h.do(http.MethodGet, "/api/services", admin(), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_RateLimitIgnoresUnverifiedCredentials(t *testing.T) {
	h := newHarness(t, Config{RatePerSecond: 0.001, Burst: 3})
	token := h.register("Dana", "0501111111")

	limited := 0
	for i := 0; i < 10; i++ {
		headers := map[string]string{
			headerSession: fmt.Sprintf("bogus-%d", i),
			headerAPIKey:  fmt.Sprintf("wrong-%d", i),
		}
		resp := h.do(http.MethodPost, "/api/login", headers, map[string]string{"phone": "0501111111", "password": "guess"})
		if resp.StatusCode == http.StatusTooManyRequests {
			limited++
		}
	}
	// registration used one token of the address bucket
	assert.Equal(t, 8, limited)

	// a live session is limited on its own bucket
	resp := h.do(http.MethodGet, "/api/me/appointments", session(token), nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
