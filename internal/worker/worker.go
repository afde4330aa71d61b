// Package worker handles the messages consumed from the job queue.
package worker

import (
	"context"
	"errors"
	"fmt"

	"assofin/internal/amqp"
	"assofin/internal/categorize"
	"assofin/internal/core"
	"assofin/internal/log"
	"assofin/internal/ports"
	"assofin/internal/sheets"
)

type Categorizer interface {
	Apply(ctx context.Context, ids []string) (categorize.Result, error)
}

// Source resolves the names written next to a transaction in the ledger.
type Source interface {
	GetTransaction(ctx context.Context, id string) (core.Transaction, error)
	GetAccount(ctx context.Context, id string) (core.Account, error)
	GetCategory(ctx context.Context, id string) (core.Category, error)
}

// Worker runs queued categorize jobs and mirrors transaction events into
// the ledger. A nil ledger disables the mirroring.
type Worker struct {
	categorizer Categorizer
	source      Source
	ledger      sheets.Ledger
	logger      *log.Logger
}

func New(c Categorizer, source Source, ledger sheets.Ledger, logger *log.Logger) *Worker {
	return &Worker{
		categorizer: c,
		source:      source,
		ledger:      ledger,
		logger:      logger.WithComponent(log.ComponentWorker),
	}
}

// Handle dispatches one envelope. It matches amqp.Handler; a returned error
// makes the consumer requeue the message once.
func (w *Worker) Handle(ctx context.Context, env *amqp.Envelope) error {
	switch env.Type {
	case amqp.TypeCategorizeJob:
		return w.HandleCategorizeJob(ctx, env.Categorize)
	case amqp.TypeTransactionEvent:
		return w.HandleTransactionEvent(ctx, env.Transaction)
	default:
		return fmt.Errorf("unknown message type %q", env.Type)
	}
}

func (w *Worker) HandleCategorizeJob(ctx context.Context, msg *amqp.CategorizeJobMessage) error {
	w.logger.InfoContext(ctx, "Processing categorize job",
		"job_id", msg.JobID,
		log.FieldCandidates, len(msg.TransactionIDs))

	res, err := w.categorizer.Apply(ctx, msg.TransactionIDs)
	if err != nil {
		return fmt.Errorf("categorize job %s: %w", msg.JobID, err)
	}
	w.logger.InfoContext(ctx, "Categorize job done",
		"job_id", msg.JobID,
		log.FieldUpdated, res.Updated,
		log.FieldFailed, res.Failed)
	return nil
}

func (w *Worker) HandleTransactionEvent(ctx context.Context, msg *amqp.TransactionEventMessage) error {
	if w.ledger == nil {
		w.logger.DebugContext(ctx, "No ledger configured, skipping transaction event",
			log.FieldTransaction, msg.TransactionID)
		return nil
	}

	if msg.Event == amqp.EventDeleted {
		if err := w.ledger.Delete(ctx, msg.TransactionID); err != nil {
			return fmt.Errorf("delete ledger row: %w", err)
		}
		w.logger.InfoContext(ctx, "Removed transaction from ledger", log.FieldTransaction, msg.TransactionID)
		return nil
	}

	t, err := w.source.GetTransaction(ctx, msg.TransactionID)
	if errors.Is(err, ports.ErrNotFound) {
		// Deleted before the event was consumed; its delete event follows.
		w.logger.DebugContext(ctx, "Transaction gone, skipping export", log.FieldTransaction, msg.TransactionID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("get transaction: %w", err)
	}

	ref, err := w.ledger.Upsert(ctx, sheets.NewLedgerRow(t, w.accountName(ctx, t.AccountID), w.categoryName(ctx, t.CategoryID)))
	if err != nil {
		return fmt.Errorf("export transaction: %w", err)
	}
	w.logger.InfoContext(ctx, "Exported transaction to ledger",
		log.FieldTransaction, t.ID,
		"event", string(msg.Event),
		"sheets_ref", ref)
	return nil
}

func (w *Worker) accountName(ctx context.Context, id string) string {
	a, err := w.source.GetAccount(ctx, id)
	if err != nil {
		w.logger.WarnContext(ctx, "Account lookup failed", log.FieldAccountID, id, log.FieldError, err)
		return id
	}
	return a.Name
}

func (w *Worker) categoryName(ctx context.Context, id string) string {
	if id == "" {
		return core.Uncategorized
	}
	c, err := w.source.GetCategory(ctx, id)
	if err != nil {
		w.logger.WarnContext(ctx, "Category lookup failed", log.FieldCategoryID, id, log.FieldError, err)
		return core.Uncategorized
	}
	return c.Name
}
