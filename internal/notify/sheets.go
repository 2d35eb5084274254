package notify

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"salonbook/internal/events"
	"salonbook/internal/models"
)

// SheetHeader is the first row of the mirrored table.
var SheetHeader = []interface{}{"ID", "Date", "Start", "End", "Client", "Phone", "Service", "Employee", "Status", "Arrival", "Price"}

// SheetsMirror writes the appointment table to a spreadsheet.
type SheetsMirror struct {
	svc           *sheets.Service
	spreadsheetID string
	sheetName     string
	logger        zerolog.Logger
	trigger       chan struct{}
}

// NewSheetsMirror authenticates with a service account credentials file.
func NewSheetsMirror(ctx context.Context, credentialsFile, spreadsheetID, sheetName string, logger *zerolog.Logger) (*SheetsMirror, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("parse credentials: %w", err)
	}
	svc, err := sheets.NewService(ctx, option.WithCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("sheets client: %w", err)
	}
	return NewSheetsMirrorWithService(svc, spreadsheetID, sheetName, logger), nil
}

// NewSheetsMirrorWithService wraps an existing Sheets client.
func NewSheetsMirrorWithService(svc *sheets.Service, spreadsheetID, sheetName string, logger *zerolog.Logger) *SheetsMirror {
	if sheetName == "" {
		sheetName = "Appointments"
	}
	return &SheetsMirror{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		sheetName:     sheetName,
		logger:        logger.With().Str("component", "sheets").Logger(),
		trigger:       make(chan struct{}, 1),
	}
}

// Attach requests a rewrite whenever eventType is published.
func (m *SheetsMirror) Attach(bus *events.EventBus, eventType string) {
	bus.Subscribe(eventType, func(events.Event) error {
		m.Request()
		return nil
	})
}

// Request schedules a rewrite. Requests made while one is queued collapse.
func (m *SheetsMirror) Request() {
	select {
	case m.trigger <- struct{}{}:
	default:
	}
}

// Run rewrites the sheet from snapshot on every request until ctx is done.
func (m *SheetsMirror) Run(ctx context.Context, snapshot func() *models.Document) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-m.trigger:
			writeCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := m.Write(writeCtx, snapshot()); err != nil {
				m.logger.Warn().Err(err).Msg("mirror appointments")
			}
			cancel()
		}
	}
}

// Write replaces the sheet contents with the document's appointments.
func (m *SheetsMirror) Write(ctx context.Context, doc *models.Document) error {
	rows := AppointmentRows(doc)
	values := make([][]interface{}, 0, len(rows)+1)
	values = append(values, SheetHeader)
	values = append(values, rows...)

	fullRange := m.sheetName + "!A:K"
	if _, err := m.svc.Spreadsheets.Values.Clear(m.spreadsheetID, fullRange, &sheets.ClearValuesRequest{}).Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear sheet: %w", err)
	}

	vr := &sheets.ValueRange{Values: values}
	_, err := m.svc.Spreadsheets.Values.Update(m.spreadsheetID, m.sheetName+"!A1", vr).
		ValueInputOption("RAW").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("update sheet: %w", err)
	}

	m.logger.Debug().Int("rows", len(rows)).Msg("appointments mirrored")
	return nil
}

// AppointmentRows renders appointments ordered by start time.
func AppointmentRows(doc *models.Document) [][]interface{} {
	apts := append([]models.Appointment(nil), doc.Appointments...)
	sort.SliceStable(apts, func(i, j int) bool {
		return apts[i].StartTime.Before(apts[j].StartTime)
	})

	rows := make([][]interface{}, 0, len(apts))
	for i := range apts {
		rows = append(rows, appointmentRowValues(doc, &apts[i]))
	}
	return rows
}

func appointmentRowValues(doc *models.Document, a *models.Appointment) []interface{} {
	var clientName, phone, serviceName, employeeName string
	if c := doc.FindClient(a.ClientID); c != nil {
		clientName, phone = c.Name, c.Phone
	}
	if s := doc.FindService(a.ServiceID); s != nil {
		serviceName = s.Name
	}
	if e := doc.FindEmployee(a.EmployeeID); e != nil {
		employeeName = e.Name
	} else if a.EmployeeID == models.DefaultEmployeeID {
		employeeName = models.DefaultEmployee().Name
	}

	arrival := "no"
	if a.ConfirmedByClient {
		arrival = "yes"
	}

	start := a.StartTime.Local()
	return []interface{}{
		a.ID,
		start.Format("2006-01-02"),
		start.Format("15:04"),
		a.EndTime.Local().Format("15:04"),
		clientName,
		phone,
		serviceName,
		employeeName,
		string(a.Status),
		arrival,
		a.PriceAtBooking,
	}
}
