package audit

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Config holds configuration for the audit service.
type Config struct {
	// OutputDir receives reports when no notifier is configured.
	OutputDir string

	// ExportOnStart if true, runs export immediately on service start.
	ExportOnStart bool

	// Title names the salon in report captions.
	Title string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		OutputDir: "data/audit",
		Title:     "salon",
	}
}

// Service handles monthly appointment exports.
type Service struct {
	config   *Config
	source   RowSource
	writer   func() ExcelWriter // factory for creating new Excel writers
	notifier Notifier
	logger   Logger
	now      func() time.Time
	stopCh   chan struct{}
	wg       sync.WaitGroup
	mu       sync.Mutex
	running  bool
}

// NewService creates a new audit service. notifier may be nil.
func NewService(
	config *Config,
	source RowSource,
	writerFactory func() ExcelWriter,
	notifier Notifier,
	logger Logger,
) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	if config.OutputDir == "" {
		config.OutputDir = DefaultConfig().OutputDir
	}
	if writerFactory == nil {
		writerFactory = NewExcelizeWriter
	}

	return &Service{
		config:   config,
		source:   source,
		writer:   writerFactory,
		notifier: notifier,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the audit scheduler.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.mu.Unlock()

	if s.config.ExportOnStart {
		go s.RunMonthly()
	}

	s.wg.Add(1)
	go s.loop()

	if s.logger != nil {
		s.logger.Info("Audit service started", "output_dir", s.config.OutputDir)
	}
}

// Stop gracefully stops the audit service.
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
		s.logger.Info("Audit service stopped")
	}
}

func (s *Service) loop() {
	defer s.wg.Done()

	nextRun := NextRun(s.now())
	timer := time.NewTimer(time.Until(nextRun))
	defer timer.Stop()

	if s.logger != nil {
		s.logger.Info("Next audit scheduled", "time", nextRun)
	}

	for {
		select {
		case <-s.stopCh:
			return
		case <-timer.C:
			s.RunMonthly()

			nextRun = NextRun(s.now())
			timer.Reset(time.Until(nextRun))

			if s.logger != nil {
				s.logger.Info("Next audit scheduled", "time", nextRun)
			}
		}
	}
}

// NextRun returns 00:01 on the first day of the month after t.
func NextRun(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month()+1, 1, 0, 1, 0, 0, t.Location())
}

// RunMonthly exports the previous month and delivers the report.
func (s *Service) RunMonthly() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	if _, err := s.Deliver(ctx, PreviousMonth(s.now())); err != nil && s.logger != nil {
		s.logger.Error("Failed to export audit data", "error", err)
	}
}

// Export builds the workbook for the month containing month.
func (s *Service) Export(ctx context.Context, month time.Time) ([]byte, string, error) {
	if s.source == nil {
		return nil, "", fmt.Errorf("row source not configured")
	}

	from, to := MonthRange(month)
	rows, err := s.source.AppointmentRows(ctx, from, to)
	if err != nil {
		return nil, "", fmt.Errorf("load appointment rows: %w", err)
	}

	excel := s.writer()
	if excel == nil {
		return nil, "", fmt.Errorf("failed to create excel writer")
	}
	defer excel.Close()

	if err := excel.AddSheet(from.Format("January 2006")); err != nil {
		return nil, "", err
	}
	if err := excel.WriteHeader(Columns); err != nil {
		return nil, "", fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		if err := excel.WriteRow(r.values()); err != nil {
			return nil, "", fmt.Errorf("write row: %w", err)
		}
	}

	var buf bytes.Buffer
	if err := excel.Save(&buf); err != nil {
		return nil, "", fmt.Errorf("save excel: %w", err)
	}

	if s.logger != nil {
		s.logger.Debug("Exported appointments", "month", from.Format("2006-01"), "rows", len(rows))
	}
	return buf.Bytes(), GenerateFilename(from), nil
}

// Deliver exports a month and sends it to managers, or writes it under
// OutputDir when no notifier is configured. It returns where the report went.
func (s *Service) Deliver(ctx context.Context, month time.Time) (string, error) {
	data, filename, err := s.Export(ctx, month)
	if err != nil {
		return "", err
	}

	if s.notifier != nil {
		caption := fmt.Sprintf("Monthly report %s: %s", s.config.Title, month.Format("January 2006"))
		if err := s.notifier.SendDocument(ctx, filename, bytes.NewReader(data), caption); err != nil {
			return "", fmt.Errorf("send document: %w", err)
		}
		if s.logger != nil {
			s.logger.Info("Audit report sent", "filename", filename)
		}
		return filename, nil
	}

	if err := os.MkdirAll(s.config.OutputDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}
	path := filepath.Join(s.config.OutputDir, filename)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	if s.logger != nil {
		s.logger.Info("Audit report saved", "path", path)
	}
	return path, nil
}
