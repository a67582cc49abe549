package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"shgbook/internal/log"
	"shgbook/internal/store"
)

// ReasonScheduled marks ledger saved messages sent by the scheduler.
const ReasonScheduled = "scheduled"

// ExportSchedulerConfig holds configuration for the export scheduler
type ExportSchedulerConfig struct {
	// PollInterval is how often modified years are announced (default: 15m)
	PollInterval time.Duration

	// SweepInterval is how often every year is announced regardless of
	// modification time (default: 24h)
	SweepInterval time.Duration
}

// DefaultExportSchedulerConfig returns sensible defaults
func DefaultExportSchedulerConfig() ExportSchedulerConfig {
	return ExportSchedulerConfig{
		PollInterval:  15 * time.Minute,
		SweepInterval: 24 * time.Hour,
	}
}

// ExportScheduler periodically republishes ledger saved messages so the
// spreadsheet converges even when a message was lost.
type ExportScheduler struct {
	repo   *store.Repository
	events Publisher
	config ExportSchedulerConfig
	logger *log.Logger
	now    func() time.Time

	// Lifecycle management
	mu       sync.Mutex
	running  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
	lastPoll time.Time
}

func NewExportScheduler(repo *store.Repository, events Publisher, config ExportSchedulerConfig, logger *log.Logger) *ExportScheduler {
	if logger == nil {
		logger = log.Discard()
	}
	defaults := DefaultExportSchedulerConfig()
	if config.PollInterval <= 0 {
		config.PollInterval = defaults.PollInterval
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = defaults.SweepInterval
	}
	return &ExportScheduler{
		repo:   repo,
		events: events,
		config: config,
		logger: logger.WithComponent(log.ComponentScheduler),
		now:    time.Now,
	}
}

// Start begins the scheduling loop. Returns an error if already running.
func (s *ExportScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("export scheduler is already running")
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	s.mu.Unlock()

	go s.runLoop(ctx)

	s.logger.InfoContext(ctx, "Export scheduler started",
		"poll_interval", s.config.PollInterval,
		"sweep_interval", s.config.SweepInterval)
	return nil
}

// Stop gracefully stops the scheduler and waits for completion.
func (s *ExportScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		s.logger.InfoContext(ctx, "Export scheduler stopped gracefully")
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Export scheduler stop timed out")
		return ctx.Err()
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	return nil
}

// IsRunning returns whether the scheduler is currently running
func (s *ExportScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *ExportScheduler) runLoop(ctx context.Context) {
	defer close(s.doneCh)

	pollTicker := time.NewTicker(s.config.PollInterval)
	defer pollTicker.Stop()
	sweepTicker := time.NewTicker(s.config.SweepInterval)
	defer sweepTicker.Stop()

	// Announce everything once on startup
	s.Sweep(ctx)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		case <-pollTicker.C:
			s.Poll(ctx)
		case <-sweepTicker.C:
			s.Sweep(ctx)
		}
	}
}

// Poll announces the years modified since the previous poll or sweep.
func (s *ExportScheduler) Poll(ctx context.Context) int {
	s.mu.Lock()
	since := s.lastPoll
	s.mu.Unlock()
	return s.announce(ctx, since)
}

// Sweep announces every stored year.
func (s *ExportScheduler) Sweep(ctx context.Context) int {
	return s.announce(ctx, time.Time{})
}

func (s *ExportScheduler) announce(ctx context.Context, since time.Time) int {
	started := s.now()
	years, err := s.repo.Years(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list years", log.FieldError, err)
		return 0
	}

	sent := 0
	for _, y := range years {
		select {
		case <-ctx.Done():
			return sent
		default:
		}
		if !since.IsZero() && !y.ModifiedOn.After(since) {
			continue
		}
		if err := s.events.PublishLedgerSaved(ctx, s.repo.GroupID(), y.Year, ReasonScheduled); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish scheduled export",
				log.FieldYear, y.Year, log.FieldError, err)
			// Leave lastPoll alone so the next poll retries.
			return sent
		}
		sent++
	}

	s.mu.Lock()
	s.lastPoll = started
	s.mu.Unlock()

	if sent > 0 {
		s.logger.InfoContext(ctx, "Scheduled exports published", "count", sent, "total", len(years))
	}
	return sent
}
