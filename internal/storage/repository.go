// Package storage is the SQLite implementation of ports.Store.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"assofin/internal/core"
	"assofin/internal/ports"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const (
	dateLayout = "2006-01-02"
	// Fixed width so that timestamps sort lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

type SQLiteRepository struct {
	db      *sql.DB
	queries *Queries
	now     func() time.Time
}

var _ ports.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	slog.Info("SQLite store ready", "path", dbPath, "schema_version", version)

	return &SQLiteRepository{
		db:      db,
		queries: New(db),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping is used by the readiness probe.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *SQLiteRepository) inTx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(r.queries.WithTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ports.ErrNotFound
	}
	return err
}

func expectRow(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Accounts

func (r *SQLiteRepository) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.CreatedAt = r.now()
	a.Balance = core.Money{}
	if err := r.queries.CreateAccount(ctx, AccountRow{
		ID: a.ID, Name: a.Name, Type: string(a.Type), CreatedAt: a.CreatedAt.Format(timeLayout),
	}); err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	return a, nil
}

func (r *SQLiteRepository) GetAccount(ctx context.Context, id string) (core.Account, error) {
	row, err := r.queries.GetAccount(ctx, id)
	if err != nil {
		return core.Account{}, fmt.Errorf("get account %s: %w", id, notFound(err))
	}
	return accountFromRow(row)
}

func (r *SQLiteRepository) ListAccounts(ctx context.Context) ([]core.Account, error) {
	rows, err := r.queries.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]core.Account, 0, len(rows))
	for _, row := range rows {
		a, err := accountFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (r *SQLiteRepository) DeleteAccount(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteTransactionsByAccount(ctx, id); err != nil {
			return err
		}
		return expectRow(q.DeleteAccount(ctx, id))
	})
	if err != nil {
		return fmt.Errorf("delete account %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) RecomputeBalance(ctx context.Context, accountID string) error {
	if err := expectRow(r.queries.RecomputeBalance(ctx, accountID)); err != nil {
		return fmt.Errorf("recompute balance of %s: %w", accountID, err)
	}
	return nil
}

// Categories

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if err := r.queries.CreateCategory(ctx, CategoryRow{ID: c.ID, Name: c.Name, Type: string(c.Type)}); err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id string) (core.Category, error) {
	row, err := r.queries.GetCategory(ctx, id)
	if err != nil {
		return core.Category{}, fmt.Errorf("get category %s: %w", id, notFound(err))
	}
	return categoryFromRow(row)
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.queries.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	out := make([]core.Category, 0, len(rows))
	for _, row := range rows {
		c, err := categoryFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// DeleteCategory removes the category with its rules and clears it from
// transactions.
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id string) error {
	err := r.inTx(ctx, func(q *Queries) error {
		if err := q.DeleteRulesByCategory(ctx, id); err != nil {
			return err
		}
		if err := q.ClearCategory(ctx, id); err != nil {
			return err
		}
		return expectRow(q.DeleteCategory(ctx, id))
	})
	if err != nil {
		return fmt.Errorf("delete category %s: %w", id, err)
	}
	return nil
}

// Rules

func (r *SQLiteRepository) CreateRule(ctx context.Context, rule core.CategorizationRule) (core.CategorizationRule, error) {
	rule.Keywords = core.NormalizeKeywords(rule.Keywords)
	if err := rule.Validate(); err != nil {
		return core.CategorizationRule{}, err
	}
	cat, err := r.GetCategory(ctx, rule.CategoryID)
	if err != nil {
		return core.CategorizationRule{}, err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	rule.CreatedAt = r.now()
	rule.CategoryName = cat.Name

	kw, err := json.Marshal(rule.Keywords)
	if err != nil {
		return core.CategorizationRule{}, fmt.Errorf("encode keywords: %w", err)
	}
	if err := r.queries.CreateRule(ctx, RuleRow{
		ID:              rule.ID,
		CategoryID:      rule.CategoryID,
		Keywords:        string(kw),
		TransactionType: string(rule.TransactionType),
		Priority:        int64(rule.Priority),
		CreatedAt:       rule.CreatedAt.Format(timeLayout),
	}); err != nil {
		return core.CategorizationRule{}, fmt.Errorf("create rule: %w", err)
	}
	return rule, nil
}

func (r *SQLiteRepository) DeleteRule(ctx context.Context, id string) error {
	if err := expectRow(r.queries.DeleteRule(ctx, id)); err != nil {
		return fmt.Errorf("delete rule %s: %w", id, err)
	}
	return nil
}

func (r *SQLiteRepository) ListRules(ctx context.Context) ([]core.CategorizationRule, error) {
	rows, err := r.queries.ListRules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	out := make([]core.CategorizationRule, 0, len(rows))
	for _, row := range rows {
		rule, err := ruleFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, rule)
	}
	return out, nil
}

// Transactions

func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := r.checkRefs(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := r.now()
	t.CreatedAt, t.UpdatedAt = now, now
	if err := r.queries.CreateTransaction(ctx, transactionToRow(t)); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	return t, nil
}

func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	old, err := r.GetTransaction(ctx, t.ID)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := r.checkRefs(ctx, t); err != nil {
		return core.Transaction{}, err
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = r.now()
	if err := expectRow(r.queries.UpdateTransaction(ctx, transactionToRow(t))); err != nil {
		return core.Transaction{}, fmt.Errorf("update transaction %s: %w", t.ID, err)
	}
	return t, nil
}

func (r *SQLiteRepository) checkRefs(ctx context.Context, t core.Transaction) error {
	if _, err := r.GetAccount(ctx, t.AccountID); err != nil {
		return err
	}
	if t.CategoryID != "" {
		if _, err := r.GetCategory(ctx, t.CategoryID); err != nil {
			return err
		}
	}
	return nil
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id string) error {
	if err := expectRow(r.queries.DeleteTransaction(ctx, id)); err != nil {
		return fmt.Errorf("delete transaction %s: %w", id, err)
	}
	return nil
}

// SetTransactionCategory writes only category_id and updated_at.
func (r *SQLiteRepository) SetTransactionCategory(ctx context.Context, transactionID, categoryID string) error {
	if _, err := r.GetCategory(ctx, categoryID); err != nil {
		return err
	}
	n, err := r.queries.SetTransactionCategory(ctx, transactionID, categoryID, r.now().Format(timeLayout))
	if err := expectRow(n, err); err != nil {
		return fmt.Errorf("set category of %s: %w", transactionID, err)
	}
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id string) (core.Transaction, error) {
	row, err := r.queries.GetTransaction(ctx, id)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction %s: %w", id, notFound(err))
	}
	return transactionFromRow(row)
}

func (r *SQLiteRepository) GetTransactionsByIDs(ctx context.Context, ids []string) ([]core.Transaction, error) {
	rows, err := r.queries.GetTransactionsByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get transactions by ids: %w", err)
	}
	byID := make(map[string]core.Transaction, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		byID[t.ID] = t
	}
	out := make([]core.Transaction, 0, len(byID))
	for _, id := range ids {
		if t, ok := byID[id]; ok {
			out = append(out, t)
			delete(byID, id)
		}
	}
	return out, nil
}

func (r *SQLiteRepository) ListUncategorized(ctx context.Context) ([]core.Transaction, error) {
	return r.ListTransactions(ctx, ports.TransactionFilter{Uncategorized: true})
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	p := ListTransactionsParams{
		AccountID:     f.AccountID,
		Type:          string(f.Type),
		Uncategorized: f.Uncategorized,
		Limit:         -1,
	}
	if !f.Since.IsZero() {
		p.Since = f.Since.Format(dateLayout)
	}
	if f.Limit > 0 {
		p.Limit = int64(f.Limit)
	}
	rows, err := r.queries.ListTransactions(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	out := make([]core.Transaction, 0, len(rows))
	for _, row := range rows {
		t, err := transactionFromRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// Row conversion. Unknown enum values and malformed columns are rejected here.

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Parse(time.RFC3339Nano, s)
	}
	return t, nil
}

func accountFromRow(row AccountRow) (core.Account, error) {
	typ, err := core.ParseAccountType(row.Type)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s: %w", row.ID, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Account{}, fmt.Errorf("account %s created_at: %w", row.ID, err)
	}
	return core.Account{
		ID:        row.ID,
		Name:      row.Name,
		Type:      typ,
		Balance:   core.Money{Cents: row.BalanceCents},
		CreatedAt: created,
	}, nil
}

func categoryFromRow(row CategoryRow) (core.Category, error) {
	typ, err := core.ParseTransactionType(row.Type)
	if err != nil {
		return core.Category{}, fmt.Errorf("category %s: %w", row.ID, err)
	}
	return core.Category{ID: row.ID, Name: row.Name, Type: typ}, nil
}

func ruleFromRow(row RuleRow) (core.CategorizationRule, error) {
	typ, err := core.ParseTransactionType(row.TransactionType)
	if err != nil {
		return core.CategorizationRule{}, fmt.Errorf("rule %s: %w", row.ID, err)
	}
	var kw []string
	if err := json.Unmarshal([]byte(row.Keywords), &kw); err != nil {
		return core.CategorizationRule{}, fmt.Errorf("rule %s keywords: %w", row.ID, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.CategorizationRule{}, fmt.Errorf("rule %s created_at: %w", row.ID, err)
	}
	return core.CategorizationRule{
		ID:              row.ID,
		CategoryID:      row.CategoryID,
		CategoryName:    row.CategoryName,
		Keywords:        core.NormalizeKeywords(kw),
		TransactionType: typ,
		Priority:        int(row.Priority),
		CreatedAt:       created,
	}, nil
}

func transactionToRow(t core.Transaction) TransactionRow {
	return TransactionRow{
		ID:          t.ID,
		AccountID:   t.AccountID,
		AmountCents: t.Amount.Cents,
		Type:        string(t.Type),
		CategoryID:  sql.NullString{String: t.CategoryID, Valid: t.CategoryID != ""},
		Description: t.Description,
		Date:        t.Date.Format(dateLayout),
		CreatedAt:   t.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:   t.UpdatedAt.UTC().Format(timeLayout),
	}
}

func transactionFromRow(row TransactionRow) (core.Transaction, error) {
	typ, err := core.ParseTransactionType(row.Type)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", row.ID, err)
	}
	day, err := time.Parse(dateLayout, row.Date)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s date: %w", row.ID, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s created_at: %w", row.ID, err)
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("transaction %s updated_at: %w", row.ID, err)
	}
	return core.Transaction{
		ID:          row.ID,
		AccountID:   row.AccountID,
		Amount:      core.Money{Cents: row.AmountCents},
		Type:        typ,
		CategoryID:  row.CategoryID.String,
		Description: row.Description,
		Date:        core.DateOf(day),
		CreatedAt:   created,
		UpdatedAt:   updated,
	}, nil
}
