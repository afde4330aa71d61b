// Package sheets describes the spreadsheet ledger the worker mirrors
// transactions into.
package sheets

import (
	"context"

	"assofin/internal/core"
)

// Header is the first row of the ledger sheet, in column order.
var Header = []string{"ID", "Date", "Compte", "Type", "Catégorie", "Description", "Montant"}

// LedgerRow is one transaction as written to the ledger. Amount is signed:
// expenses are negative.
type LedgerRow struct {
	TransactionID string
	Date          core.Date
	Account       string
	Type          core.TransactionType
	Category      string
	Description   string
	Amount        core.Money
}

// NewLedgerRow flattens a transaction with its resolved account and
// category names.
func NewLedgerRow(t core.Transaction, account, category string) LedgerRow {
	return LedgerRow{
		TransactionID: t.ID,
		Date:          t.Date,
		Account:       account,
		Type:          t.Type,
		Category:      category,
		Description:   t.Description,
		Amount:        core.Money{Cents: t.Signed()},
	}
}

// Values renders the row in Header order.
func (r LedgerRow) Values() []any {
	return []any{r.TransactionID, r.Date.String(), r.Account, string(r.Type), r.Category, r.Description, r.Amount.Euros()}
}

// Ports for outbound adapters.
type (
	LedgerWriter interface {
		// Upsert writes the row, replacing an existing row with the same
		// transaction ID. It returns a reference to the written range.
		Upsert(ctx context.Context, row LedgerRow) (rowRef string, err error)
	}

	LedgerDeleter interface {
		// Delete clears the row of the transaction. Unknown IDs are ignored.
		Delete(ctx context.Context, transactionID string) error
	}

	Ledger interface {
		LedgerWriter
		LedgerDeleter
	}
)
