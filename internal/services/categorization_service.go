package services

import (
	"context"
	"fmt"

	"assofin/internal/amqp"
	"assofin/internal/categorize"
	"assofin/internal/core"
	"assofin/internal/log"
	"assofin/internal/ports"
)

// CategorizationStore is what a bulk run reads and writes.
type CategorizationStore interface {
	ports.RuleReader
	ports.CategoryAssigner
	GetTransactionsByIDs(ctx context.Context, ids []string) ([]core.Transaction, error)
	ListUncategorized(ctx context.Context) ([]core.Transaction, error)
}

// CategorizationService runs the rules over stored transactions.
type CategorizationService struct {
	store   CategorizationStore
	jobs    JobPublisher
	events  EventPublisher
	reports Invalidator
	logger  *log.Logger
}

func NewCategorizationService(store CategorizationStore, jobs JobPublisher, reports Invalidator) *CategorizationService {
	if reports == nil {
		reports = noopInvalidator{}
	}
	return &CategorizationService{
		store:   store,
		jobs:    jobs,
		reports: reports,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentCategorize),
	}
}

// WithEvents announces every category a run assigns, so the ledger export
// sees bulk changes too. A nil publisher disables it.
func (s *CategorizationService) WithEvents(p EventPublisher) *CategorizationService {
	s.events = p
	return s
}

func (s *CategorizationService) WithLogger(l *log.Logger) *CategorizationService {
	s.logger = l.WithComponent(log.ComponentCategorize)
	return s
}

// Apply categorizes the given transactions, or every uncategorized one when
// ids is empty. Explicitly selected transactions are re-categorized even if
// they already have a category. Rules and candidates are read fresh on each
// call; a failure to read them aborts the run.
func (s *CategorizationService) Apply(ctx context.Context, ids []string) (categorize.Result, error) {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		return categorize.Result{}, fmt.Errorf("load rules: %w", err)
	}

	mode := "uncategorized"
	var candidates []core.Transaction
	if len(ids) > 0 {
		mode = "selected"
		candidates, err = s.store.GetTransactionsByIDs(ctx, ids)
	} else {
		candidates, err = s.store.ListUncategorized(ctx)
	}
	if err != nil {
		return categorize.Result{}, fmt.Errorf("load candidates: %w", err)
	}

	res, err := categorize.BulkApply(ctx, rules, candidates, s.store)
	if res.Updated > 0 {
		s.reports.Invalidate()
	}
	s.publishUpdated(ctx, res.UpdatedIDs)

	fields := log.NewFields().
		WithOperation(log.OpCategorize).
		WithBulkResult(mode, res.Candidates, res.Updated, res.Skipped, res.Failed).
		WithError(err)
	if err != nil || res.Failed > 0 {
		s.logger.WarnFields(ctx, "Bulk categorization finished with errors", fields)
	} else {
		s.logger.InfoFields(ctx, "Bulk categorization finished", fields)
	}

	if err != nil {
		return res, fmt.Errorf("bulk categorize: %w", err)
	}
	return res, nil
}

// publishUpdated is best effort: a broker failure never fails the run.
func (s *CategorizationService) publishUpdated(ctx context.Context, ids []string) {
	if s.events == nil {
		return
	}
	for _, id := range ids {
		if err := s.events.PublishTransactionEvent(ctx, id, amqp.EventUpdated); err != nil {
			s.logger.WarnContext(ctx, "Failed to publish transaction event",
				log.FieldTransaction, id, "event", amqp.EventUpdated, log.FieldError, err)
		}
	}
}

// Enqueue hands the run to the worker and returns the job ID.
func (s *CategorizationService) Enqueue(ctx context.Context, ids []string) (string, error) {
	if s.jobs == nil {
		return "", ErrAsyncUnavailable
	}
	jobID, err := s.jobs.PublishCategorizeJob(ctx, ids)
	if err != nil {
		return "", fmt.Errorf("queue categorize job: %w", err)
	}
	s.logger.InfoContext(ctx, "Categorize job queued", "job_id", jobID, log.FieldCandidates, len(ids))
	return jobID, nil
}
