// Package audit exports a month of appointments to an Excel workbook.
package audit

import (
	"context"
	"fmt"
	"io"
	"time"
)

// Row is one appointment line of the report.
type Row struct {
	Date     string // "2026-03-02"
	Time     string // "10:00"
	Client   string
	Phone    string
	Service  string
	Employee string
	Status   string
	Price    float64
}

// Columns are the report headers, in Row field order.
var Columns = []string{"Date", "Time", "Client", "Phone", "Service", "Employee", "Status", "Price"}

func (r Row) values() []interface{} {
	return []interface{}{r.Date, r.Time, r.Client, r.Phone, r.Service, r.Employee, r.Status, r.Price}
}

// RowSource lists appointments starting in [from, to).
type RowSource interface {
	AppointmentRows(ctx context.Context, from, to time.Time) ([]Row, error)
}

// ExcelWriter writes data to Excel format.
type ExcelWriter interface {
	// AddSheet adds a new sheet with the given name.
	AddSheet(name string) error

	// WriteHeader writes column headers to current sheet.
	WriteHeader(columns []string) error

	// WriteRow writes a data row to current sheet.
	WriteRow(row []interface{}) error

	// Save writes the Excel file to the writer.
	Save(w io.Writer) error

	// Close releases resources.
	Close() error
}

// Notifier sends audit reports to managers.
type Notifier interface {
	// SendDocument sends a document to managers.
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// Logger for audit operations.
type Logger interface {
	Info(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Debug(msg string, fields ...interface{})
}

// MonthRange returns local midnight of the first day of t's month and of the next month.
func MonthRange(t time.Time) (from, to time.Time) {
	from = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return from, from.AddDate(0, 1, 0)
}

// GenerateFilename creates a filename like "appointments_2026-01.xlsx".
func GenerateFilename(t time.Time) string {
	return fmt.Sprintf("appointments_%s.xlsx", t.Format("2006-01"))
}

// PreviousMonth returns the first day of the month before t.
func PreviousMonth(t time.Time) time.Time {
	first, _ := MonthRange(t)
	return first.AddDate(0, -1, 0)
}
