package categorize

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"assofin/internal/core"
	"assofin/internal/ports"
)

// Result reports the outcome of a bulk run. Failed rows are not retried.
type Result struct {
	Candidates int `json:"candidates"`
	Updated    int `json:"updated"`
	Skipped    int `json:"skipped"`   // empty description
	Unmatched  int `json:"unmatched"` // no rule matched
	Failed     int `json:"failed"`    // persistence error

	// UpdatedIDs lists the transactions written, in input order.
	UpdatedIDs []string `json:"-"`
}

// Message is the user-facing summary of the run.
func (r Result) Message() string {
	if r.Updated == 0 {
		return "no transactions to categorize"
	}
	if r.Updated == 1 {
		return "1 transaction categorized"
	}
	return fmt.Sprintf("%d transactions categorized", r.Updated)
}

// BulkApply runs the rules over candidates in order and persists every match
// through assigner, one write per transaction. A failed write is logged and
// skipped. The run stops early only when ctx is done, returning the counts so
// far together with the context error.
func BulkApply(ctx context.Context, rules []core.CategorizationRule, candidates []core.Transaction, assigner ports.CategoryAssigner) (Result, error) {
	res := Result{Candidates: len(candidates)}
	if len(candidates) == 0 {
		return res, nil
	}
	m := NewMatcher(rules)

	for _, tx := range candidates {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if strings.TrimSpace(tx.Description) == "" {
			res.Skipped++
			continue
		}
		categoryID, ok := m.Match(tx.Description, tx.Type)
		if !ok {
			res.Unmatched++
			continue
		}
		if err := assigner.SetTransactionCategory(ctx, tx.ID, categoryID); err != nil {
			slog.WarnContext(ctx, "Failed to assign category, skipping transaction",
				"transaction_id", tx.ID,
				"category_id", categoryID,
				"error", err)
			res.Failed++
			continue
		}
		res.Updated++
		res.UpdatedIDs = append(res.UpdatedIDs, tx.ID)
	}

	return res, nil
}
