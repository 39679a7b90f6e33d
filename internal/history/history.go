package history

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"rereminder/internal/events"
	"rereminder/shared/reminders"
)

// SheetName is the worksheet holding exported records.
const SheetName = "History"

var columns = []string{"ID", "Fired at", "Next at", "Notification", "Vibration", "Sound", "Speech", "Errors"}

var columnWidths = []float64{38, 20, 20, 14, 12, 10, 10, 60}

// Recorder stores every reminder.fired event.
type Recorder struct {
	repo   *Repository
	logger reminders.Logger
}

func NewRecorder(repo *Repository, logger reminders.Logger) *Recorder {
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Recorder{repo: repo, logger: logger}
}

// Attach subscribes the recorder to bus.
func (r *Recorder) Attach(bus *events.EventBus) {
	bus.Subscribe(reminders.EventFired, r.handle)
}

func (r *Recorder) handle(ev events.Event) error {
	var rec reminders.FireRecord
	if err := ev.Decode(&rec); err != nil {
		return fmt.Errorf("decode fire record: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.repo.Insert(ctx, rec); err != nil {
		return err
	}
	r.logger.Debug("fire recorded", "id", rec.ID)
	return nil
}

// Export writes records fired in [since, until) as an xlsx workbook and
// returns the number of rows written.
func Export(ctx context.Context, repo *Repository, w io.Writer, since, until time.Time, loc *time.Location) (int, error) {
	records, err := repo.List(ctx, since, until)
	if err != nil {
		return 0, fmt.Errorf("list history: %w", err)
	}
	if loc == nil {
		loc = time.Local
	}

	sheet := newSheetWriter()
	defer sheet.Close()

	if err := sheet.NameSheet(SheetName); err != nil {
		return 0, err
	}
	if err := sheet.WriteHeader(columns, columnWidths); err != nil {
		return 0, err
	}
	for _, rec := range records {
		if err := sheet.WriteRow(recordRow(rec, loc)); err != nil {
			return 0, fmt.Errorf("write row %s: %w", rec.ID, err)
		}
	}
	if err := sheet.Save(w); err != nil {
		return 0, fmt.Errorf("save workbook: %w", err)
	}
	return len(records), nil
}

func recordRow(rec reminders.FireRecord, loc *time.Location) []interface{} {
	var errs []string
	for _, e := range []struct {
		name string
		out  reminders.EffectOutcome
	}{
		{reminders.EffectNotification, rec.Notification},
		{reminders.EffectVibration, rec.Vibration},
		{reminders.EffectSound, rec.Sound},
		{reminders.EffectSpeech, rec.Speech},
	} {
		if e.out.Error != "" {
			errs = append(errs, e.name+": "+e.out.Error)
		}
	}

	next := ""
	if !rec.NextAt.IsZero() {
		next = rec.NextAt.In(loc).Format("2006-01-02 15:04:05")
	}
	return []interface{}{
		rec.ID,
		rec.FiredAt.In(loc).Format("2006-01-02 15:04:05"),
		next,
		string(rec.Notification.Status),
		string(rec.Vibration.Status),
		string(rec.Sound.Status),
		string(rec.Speech.Status),
		strings.Join(errs, "; "),
	}
}

// Filename returns the report name for the month containing t, e.g.
// "rereminder_2025-03.xlsx".
func Filename(t time.Time) string {
	return fmt.Sprintf("rereminder_%s.xlsx", t.Format("2006-01"))
}

// DocumentSender delivers a finished report.
type DocumentSender interface {
	SendDocument(ctx context.Context, filename string, data io.Reader, caption string) error
}

// ServiceConfig controls retention and monthly reports.
type ServiceConfig struct {
	RetentionDays int
	// MonthlyReport sends the previous month's workbook on the 1st.
	MonthlyReport bool
	Location      *time.Location
}

// Service prunes old records daily and optionally mails a monthly report.
type Service struct {
	config ServiceConfig
	repo   *Repository
	sender DocumentSender
	logger reminders.Logger
	now    func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

func NewService(cfg ServiceConfig, repo *Repository, sender DocumentSender, logger reminders.Logger) *Service {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 90
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if logger == nil {
		logger = reminders.NopLogger()
	}
	return &Service{
		config: cfg,
		repo:   repo,
		sender: sender,
		logger: logger,
		now:    time.Now,
	}
}

// Start runs the maintenance loop.
func (s *Service) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(stopCh)

	s.logger.Info("history service started",
		"retention_days", s.config.RetentionDays,
		"monthly_report", s.config.MonthlyReport && s.sender != nil)
}

// Stop stops the loop and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("history service stopped")
}

func (s *Service) loop(stopCh <-chan struct{}) {
	defer s.wg.Done()

	next := s.nextMidnight()
	timer := time.NewTimer(time.Until(next))
	defer timer.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-timer.C:
			s.RunMaintenance()
			next = s.nextMidnight()
			timer.Reset(time.Until(next))
		}
	}
}

func (s *Service) nextMidnight() time.Time {
	now := s.now().In(s.config.Location)
	return time.Date(now.Year(), now.Month(), now.Day()+1, 0, 1, 0, 0, s.config.Location)
}

// RunMaintenance sends the monthly report when due and prunes old records.
func (s *Service) RunMaintenance() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if s.config.MonthlyReport && s.sender != nil && s.now().In(s.config.Location).Day() == 1 {
		if err := s.SendMonthlyReport(ctx); err != nil {
			s.logger.Error("failed to send monthly report", "error", err)
		}
	}

	deleted, err := s.repo.Prune(ctx, time.Duration(s.config.RetentionDays)*24*time.Hour)
	if err != nil {
		s.logger.Error("failed to prune history", "error", err)
		return
	}
	s.logger.Info("history pruned",
		"deleted_count", deleted,
		"retention_days", s.config.RetentionDays)
}

// SendMonthlyReport exports the previous calendar month and sends it.
func (s *Service) SendMonthlyReport(ctx context.Context) error {
	if s.sender == nil {
		return fmt.Errorf("no document sender configured")
	}

	now := s.now().In(s.config.Location)
	end := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, s.config.Location)
	start := end.AddDate(0, -1, 0)

	var buf bytes.Buffer
	count, err := Export(ctx, s.repo, &buf, start, end, s.config.Location)
	if err != nil {
		return err
	}

	filename := Filename(start)
	caption := fmt.Sprintf("Reminder history %s: %d reminders", start.Format("January 2006"), count)
	if err := s.sender.SendDocument(ctx, filename, &buf, caption); err != nil {
		return fmt.Errorf("send document: %w", err)
	}
	s.logger.Info("monthly report sent", "filename", filename, "records", count)
	return nil
}
