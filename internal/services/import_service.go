package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"assofin/internal/core"
	"assofin/internal/importer"
	"assofin/internal/log"
)

var ErrNoImportRows = errors.New("no usable rows in statement")

// TransactionCreator is the creation path imports go through, so imported
// rows are auto-categorized like manual entries.
type TransactionCreator interface {
	Create(ctx context.Context, in TransactionInput) (core.Transaction, error)
}

type ImportService struct {
	transactions TransactionCreator
	now          func() time.Time
	logger       *log.Logger
}

func NewImportService(transactions TransactionCreator) *ImportService {
	return &ImportService{
		transactions: transactions,
		now:          time.Now,
		logger:       log.New(log.DefaultConfig()).WithComponent(log.ComponentImport),
	}
}

// Preview parses the statement and returns its first rows.
func (s *ImportService) Preview(r io.Reader) (importer.Result, error) {
	res, err := importer.Parse(r, s.now())
	if err != nil {
		return importer.Result{}, err
	}
	if len(res.Rows) == 0 {
		return importer.Result{}, ErrNoImportRows
	}
	res.Rows = res.Preview()
	return res, nil
}

// ImportResult counts created rows; row errors do not stop the import.
type ImportResult struct {
	Imported int      `json:"imported"`
	Failed   int      `json:"failed"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// Import creates one transaction per usable row in accountID.
func (s *ImportService) Import(ctx context.Context, accountID string, r io.Reader) (ImportResult, error) {
	if accountID == "" {
		return ImportResult{}, core.ErrEmptyAccount
	}
	parsed, err := importer.Parse(r, s.now())
	if err != nil {
		return ImportResult{}, err
	}
	if len(parsed.Rows) == 0 {
		return ImportResult{}, ErrNoImportRows
	}

	res := ImportResult{Skipped: parsed.Skipped}
	for _, row := range parsed.Rows {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		_, err := s.transactions.Create(ctx, TransactionInput{
			AccountID:   accountID,
			Amount:      row.Amount,
			Type:        row.Type,
			Description: row.Description,
			Date:        row.Date,
		})
		if err != nil {
			res.Failed++
			res.Errors = append(res.Errors, fmt.Sprintf("line %d: %v", row.Line, err))
			continue
		}
		res.Imported++
	}

	s.logger.InfoContext(ctx, "Statement imported",
		log.FieldOperation, log.OpImport,
		log.FieldAccountID, accountID,
		"imported", res.Imported,
		log.FieldFailed, res.Failed,
		log.FieldSkipped, res.Skipped)
	return res, nil
}

func (s *ImportService) Template(w io.Writer) error {
	return importer.WriteTemplate(w)
}
