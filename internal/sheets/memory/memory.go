// Package memory is an in-process sheets.Ledger for tests and for running
// the worker without a spreadsheet.
package memory

import (
	"context"
	"fmt"
	"sync"

	"assofin/internal/sheets"
)

type Ledger struct {
	mu    sync.Mutex
	rows  []sheets.LedgerRow
	index map[string]int
}

var _ sheets.Ledger = (*Ledger)(nil)

func New() *Ledger {
	return &Ledger{index: map[string]int{}}
}

// Upsert stores the row and returns a synthetic row reference.
func (l *Ledger) Upsert(_ context.Context, row sheets.LedgerRow) (string, error) {
	if row.TransactionID == "" {
		return "", fmt.Errorf("ledger row without transaction ID")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[row.TransactionID]; ok {
		l.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1), nil
	}
	l.rows = append(l.rows, row)
	l.index[row.TransactionID] = len(l.rows) - 1
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// Delete blanks the row in place so later references stay valid, as
// clearing a spreadsheet row does.
func (l *Ledger) Delete(_ context.Context, transactionID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if i, ok := l.index[transactionID]; ok {
		l.rows[i] = sheets.LedgerRow{}
		delete(l.index, transactionID)
	}
	return nil
}

// Rows returns the non-deleted rows in insertion order.
func (l *Ledger) Rows() []sheets.LedgerRow {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]sheets.LedgerRow, 0, len(l.index))
	for _, r := range l.rows {
		if r.TransactionID != "" {
			out = append(out, r)
		}
	}
	return out
}
