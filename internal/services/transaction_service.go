package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"assofin/internal/amqp"
	"assofin/internal/categorize"
	"assofin/internal/core"
	"assofin/internal/log"
	"assofin/internal/ports"
)

const defaultListLimit = 100

// TransactionStore is the persistence surface used by TransactionService.
type TransactionStore interface {
	ports.TransactionReader
	ports.TransactionWriter
	ports.RuleReader
	ports.CategoryReader
	RecomputeBalance(ctx context.Context, accountID string) error
}

// TransactionService creates and edits transactions, categorizing new ones
// from the rules and keeping account balances in step.
type TransactionService struct {
	store   TransactionStore
	events  EventPublisher
	reports Invalidator
	logger  *log.Logger
}

func NewTransactionService(store TransactionStore, events EventPublisher, reports Invalidator) *TransactionService {
	if reports == nil {
		reports = noopInvalidator{}
	}
	return &TransactionService{
		store:   store,
		events:  events,
		reports: reports,
		logger:  log.New(log.DefaultConfig()).WithComponent(log.ComponentTransaction),
	}
}

// WithLogger replaces the service logger.
func (s *TransactionService) WithLogger(l *log.Logger) *TransactionService {
	s.logger = l.WithComponent(log.ComponentTransaction)
	return s
}

// TransactionInput is a new transaction as entered by a user or an import.
type TransactionInput struct {
	AccountID   string
	Amount      core.Money
	Type        core.TransactionType
	CategoryID  string
	Description string
	Date        core.Date
}

// Create stores a transaction. Without a category and with a description it
// takes the category of the first matching rule; a supplied category is
// never replaced.
func (s *TransactionService) Create(ctx context.Context, in TransactionInput) (core.Transaction, error) {
	t := core.Transaction{
		AccountID:   strings.TrimSpace(in.AccountID),
		Amount:      in.Amount,
		Type:        in.Type,
		CategoryID:  strings.TrimSpace(in.CategoryID),
		Description: strings.TrimSpace(in.Description),
		Date:        in.Date,
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	if t.IsCategorized() {
		if err := s.checkCategory(ctx, t.CategoryID, t.Type); err != nil {
			return core.Transaction{}, err
		}
	} else if t.Description != "" {
		t.CategoryID = s.autoCategory(ctx, t.Description, t.Type)
	}

	created, err := s.store.CreateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	s.afterWrite(ctx, amqp.EventCreated, created.ID, created.AccountID)
	s.logger.InfoFields(ctx, "Transaction created", log.NewFields().
		WithOperation(log.OpCreate).
		WithTransaction(created.ID, created.AccountID, string(created.Type), created.Amount.Cents, created.CategoryID))
	return created, nil
}

// autoCategory returns the matching category or "" when no rule matches or
// the rules cannot be read. A rule read failure never blocks creation.
func (s *TransactionService) autoCategory(ctx context.Context, description string, typ core.TransactionType) string {
	rules, err := s.store.ListRules(ctx)
	if err != nil {
		s.logger.WarnContext(ctx, "Rules unavailable, creating transaction uncategorized", log.FieldError, err)
		return ""
	}
	categoryID, _ := categorize.Match(description, typ, rules)
	return categoryID
}

func (s *TransactionService) checkCategory(ctx context.Context, categoryID string, typ core.TransactionType) error {
	c, err := s.store.GetCategory(ctx, categoryID)
	if err != nil {
		return fmt.Errorf("category %s: %w", categoryID, err)
	}
	if c.Type != typ {
		return core.ErrCategoryTypeMismatch
	}
	return nil
}

// TransactionPatch holds the fields to change; nil fields are kept.
// An empty CategoryID clears the category.
type TransactionPatch struct {
	AccountID   *string
	Amount      *core.Money
	Type        *core.TransactionType
	CategoryID  *string
	Description *string
	Date        *core.Date
}

func (s *TransactionService) Update(ctx context.Context, id string, p TransactionPatch) (core.Transaction, error) {
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load transaction: %w", err)
	}

	t := old
	if p.AccountID != nil {
		t.AccountID = strings.TrimSpace(*p.AccountID)
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Type != nil {
		t.Type = *p.Type
	}
	if p.CategoryID != nil {
		t.CategoryID = strings.TrimSpace(*p.CategoryID)
	}
	if p.Description != nil {
		t.Description = strings.TrimSpace(*p.Description)
	}
	if p.Date != nil {
		t.Date = *p.Date
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if t.IsCategorized() && (p.CategoryID != nil || p.Type != nil) {
		if err := s.checkCategory(ctx, t.CategoryID, t.Type); err != nil {
			return core.Transaction{}, err
		}
	}

	updated, err := s.store.UpdateTransaction(ctx, t)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction: %w", err)
	}

	if old.AccountID != updated.AccountID {
		s.recompute(ctx, old.AccountID)
	}
	s.afterWrite(ctx, amqp.EventUpdated, updated.ID, updated.AccountID)
	return updated, nil
}

func (s *TransactionService) Delete(ctx context.Context, id string) error {
	old, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return fmt.Errorf("load transaction: %w", err)
	}
	if err := s.store.DeleteTransaction(ctx, id); err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	s.afterWrite(ctx, amqp.EventDeleted, id, old.AccountID)
	return nil
}

func (s *TransactionService) Get(ctx context.Context, id string) (core.Transaction, error) {
	return s.store.GetTransaction(ctx, id)
}

// List returns transactions by date descending, at most 100 unless the
// filter sets another limit.
func (s *TransactionService) List(ctx context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	if f.Limit <= 0 {
		f.Limit = defaultListLimit
	}
	out, err := s.store.ListTransactions(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return out, nil
}

// afterWrite runs the best-effort follow-ups of a successful write.
func (s *TransactionService) afterWrite(ctx context.Context, event amqp.TransactionEvent, id, accountID string) {
	s.recompute(ctx, accountID)
	s.reports.Invalidate()

	if s.events == nil {
		return
	}
	if err := s.events.PublishTransactionEvent(ctx, id, event); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish transaction event",
			log.FieldTransaction, id, "event", event, log.FieldError, err)
	}
}

func (s *TransactionService) recompute(ctx context.Context, accountID string) {
	if err := s.store.RecomputeBalance(ctx, accountID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		s.logger.ErrorContext(ctx, "Failed to recompute account balance",
			log.FieldAccountID, accountID, log.FieldError, err)
	}
}
