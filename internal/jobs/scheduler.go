// Package jobs runs recurring background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"assofin/internal/categorize"
	"assofin/internal/log"

	"github.com/robfig/cron/v3"
)

// Categorizer runs a bulk categorization; nil ids means every uncategorized
// transaction.
type Categorizer interface {
	Apply(ctx context.Context, ids []string) (categorize.Result, error)
}

type Config struct {
	Schedule   string // standard five-field cron expression
	Location   *time.Location
	JobTimeout time.Duration
}

// CategorizeScheduler periodically categorizes the transactions still
// without a category.
type CategorizeScheduler struct {
	categorizer Categorizer
	config      Config
	logger      *log.Logger

	mu      sync.Mutex
	running bool
	cron    *cron.Cron
	entry   cron.EntryID
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewCategorizeScheduler(c Categorizer, cfg Config, logger *log.Logger) *CategorizeScheduler {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 30 * time.Minute
	}
	return &CategorizeScheduler{
		categorizer: c,
		config:      cfg,
		logger:      logger.WithComponent(log.ComponentScheduler),
	}
}

// Start registers the job and starts the cron loop. Runs never overlap: a
// tick that fires while the previous run is still busy is skipped.
func (s *CategorizeScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return fmt.Errorf("categorize scheduler is already running")
	}

	c := cron.New(
		cron.WithLocation(s.config.Location),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	s.ctx, s.cancel = context.WithCancel(ctx)
	id, err := c.AddFunc(s.config.Schedule, func() { s.RunOnce(s.ctx) })
	if err != nil {
		s.cancel()
		return fmt.Errorf("schedule categorize job %q: %w", s.config.Schedule, err)
	}
	c.Start()

	s.cron, s.entry, s.running = c, id, true
	s.logger.InfoContext(ctx, "Categorize scheduler started",
		"schedule", s.config.Schedule,
		"timezone", s.config.Location.String(),
		"next_run", c.Entry(id).Next.Format(time.RFC3339))
	return nil
}

// Stop cancels a run in progress and waits for it, or for ctx.
func (s *CategorizeScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	c := s.cron
	s.running = false
	s.mu.Unlock()

	s.cancel()
	done := c.Stop()
	select {
	case <-done.Done():
		s.logger.InfoContext(ctx, "Categorize scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Categorize scheduler stop timed out")
		return ctx.Err()
	}
}

func (s *CategorizeScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// NextRun is the time of the next scheduled run, zero when stopped.
func (s *CategorizeScheduler) NextRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return time.Time{}
	}
	return s.cron.Entry(s.entry).Next
}

// RunOnce performs one bulk run over the uncategorized transactions.
func (s *CategorizeScheduler) RunOnce(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	start := time.Now()
	s.logger.InfoContext(ctx, "Starting scheduled categorization",
		"at", start.In(s.config.Location).Format(time.RFC3339))

	res, err := s.categorizer.Apply(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Scheduled categorization failed",
			log.FieldError, err,
			log.FieldUpdated, res.Updated)
		return
	}
	s.logger.InfoContext(ctx, "Scheduled categorization completed",
		log.FieldCandidates, res.Candidates,
		log.FieldUpdated, res.Updated,
		log.FieldFailed, res.Failed,
		log.FieldDuration, time.Since(start).Milliseconds())
}
