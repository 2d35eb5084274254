package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"salonbook/internal/domain"
	"salonbook/internal/events"
	"salonbook/internal/models"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	args := m.Called(c)
	return tgbotapi.Message{}, args.Error(0)
}

func messageTo(chatID int64, fragment string) interface{} {
	return mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		msg, ok := c.(tgbotapi.MessageConfig)
		return ok && msg.ChatID == chatID && strings.Contains(msg.Text, fragment)
	})
}

var notice = models.Notification{
	ID:        "n1",
	Message:   "New appointment: Dana booked Gel manicure",
	Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	Type:      models.NotificationInfo,
}

func TestTelegramForwarder_Forward(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := new(MockSender)
	sender.On("Send", messageTo(1, "Dana booked")).Return(errors.New("chat not found"))
	sender.On("Send", messageTo(2, "Dana booked")).Return(nil)

	f := NewTelegramForwarder(sender, []int64{1, 2}, &logger)
	err := f.Forward(context.Background(), notice)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 1")
	sender.AssertNumberOfCalls(t, "Send", 2)
}

func TestTelegramForwarder_AttachForwardsAdminNotifications(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := new(MockSender)
	sent := make(chan struct{})
	sender.On("Send", messageTo(7, "01.03.2026 10:00")).Return(nil).Once().
		Run(func(mock.Arguments) { close(sent) })

	bus := events.NewEventBus()
	f := NewTelegramForwarder(sender, []int64{7}, &logger)
	f.Attach(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go f.Run(ctx)

	require.NoError(t, bus.PublishJSON(domain.KindPushAdminNotification, domain.PushAdminNotification{Notification: notice}))
	require.NoError(t, bus.PublishJSON(domain.KindAddClient, domain.AddClient{}))

	select {
	case <-sent:
	case <-time.After(time.Second):
		t.Fatal("notification was not forwarded")
	}
	sender.AssertExpectations(t)
}

func TestTelegramForwarder_SendDocument(t *testing.T) {
	logger := zerolog.New(io.Discard)
	sender := new(MockSender)
	sender.On("Send", mock.MatchedBy(func(c tgbotapi.Chattable) bool {
		doc, ok := c.(tgbotapi.DocumentConfig)
		if !ok {
			return false
		}
		file, ok := doc.File.(tgbotapi.FileBytes)
		return ok && doc.ChatID == 3 && doc.Caption == "report" && file.Name == "a.xlsx" && string(file.Bytes) == "xlsx"
	})).Return(nil)

	f := NewTelegramForwarder(sender, []int64{3}, &logger)
	require.NoError(t, f.SendDocument(context.Background(), "a.xlsx", bytes.NewReader([]byte("xlsx")), "report"))
	sender.AssertExpectations(t)
}

func sampleDocument() *models.Document {
	doc := models.NewDocument()
	doc.Clients = []models.Client{{ID: "c1", Name: "Dana", Phone: "0501234567"}}
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.Local)
	doc.Appointments = []models.Appointment{
		{ID: "a2", ClientID: "c1", ServiceID: "2", EmployeeID: "e2", StartTime: start.Add(24 * time.Hour), EndTime: start.Add(25*time.Hour + 30*time.Minute), Status: models.StatusPending, PriceAtBooking: 200},
		{ID: "a1", ClientID: "c1", ServiceID: "1", EmployeeID: models.DefaultEmployeeID, StartTime: start, EndTime: start.Add(time.Hour), Status: models.StatusConfirmed, ConfirmedByClient: true, PriceAtBooking: 150},
	}
	return doc
}

func TestAppointmentRows(t *testing.T) {
	rows := AppointmentRows(sampleDocument())
	require.Len(t, rows, 2)

	assert.Equal(t, []interface{}{
		"a1", "2026-03-02", "10:00", "11:00", "Dana", "0501234567",
		models.InitialServices()[0].Name, "General staff", "confirmed", "yes", float64(150),
	}, rows[0])
	assert.Equal(t, "a2", rows[1][0])
	assert.Equal(t, "no", rows[1][9])
}

type fakeSheets struct {
	mu      sync.Mutex
	cleared bool
	updated sheets.ValueRange
	query   string
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, ":clear"):
		f.cleared = true
	case r.Method == http.MethodPut:
		f.query = r.URL.RawQuery
		_ = json.NewDecoder(r.Body).Decode(&f.updated)
	default:
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{}`))
}

func TestSheetsMirror_Write(t *testing.T) {
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	svc, err := sheets.NewService(context.Background(), option.WithEndpoint(srv.URL+"/"), option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	logger := zerolog.New(io.Discard)
	m := NewSheetsMirrorWithService(svc, "sheet-1", "", &logger)
	require.NoError(t, m.Write(context.Background(), sampleDocument()))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	assert.True(t, fake.cleared)
	assert.Contains(t, fake.query, "valueInputOption=RAW")
	require.Len(t, fake.updated.Values, 3)
	assert.Equal(t, "ID", fake.updated.Values[0][0])
	assert.Equal(t, "a1", fake.updated.Values[1][0])
}

func TestSheetsMirror_RequestCollapses(t *testing.T) {
	logger := zerolog.New(io.Discard)
	m := NewSheetsMirrorWithService(nil, "sheet-1", "", &logger)

	bus := events.NewEventBus()
	m.Attach(bus, "document.synced")
	bus.Publish(events.Event{Type: "document.synced"})
	bus.Publish(events.Event{Type: "document.synced"})

	assert.Len(t, m.trigger, 1)
}
