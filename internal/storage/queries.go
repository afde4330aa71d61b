package storage

import (
	"context"
	"database/sql"
	"strings"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(context.Context, string, ...any) (sql.Result, error)
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
	QueryRowContext(context.Context, string, ...any) *sql.Row
}

// Queries holds the SQL of the repository. Rows are returned in their column
// form and converted to core types by the repository.
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type AccountRow struct {
	ID           string
	Name         string
	Type         string
	BalanceCents int64
	CreatedAt    string
}

type CategoryRow struct {
	ID   string
	Name string
	Type string
}

type TransactionRow struct {
	ID          string
	AccountID   string
	AmountCents int64
	Type        string
	CategoryID  sql.NullString
	Description string
	Date        string
	CreatedAt   string
	UpdatedAt   string
}

type RuleRow struct {
	ID              string
	CategoryID      string
	CategoryName    string
	Keywords        string
	TransactionType string
	Priority        int64
	CreatedAt       string
}

// Accounts

const createAccount = `INSERT INTO accounts (id, name, type, balance_cents, created_at) VALUES (?, ?, ?, 0, ?)`

func (q *Queries) CreateAccount(ctx context.Context, a AccountRow) error {
	_, err := q.db.ExecContext(ctx, createAccount, a.ID, a.Name, a.Type, a.CreatedAt)
	return err
}

const selectAccount = `SELECT id, name, type, balance_cents, created_at FROM accounts`

func scanAccount(sc interface{ Scan(...any) error }) (AccountRow, error) {
	var a AccountRow
	err := sc.Scan(&a.ID, &a.Name, &a.Type, &a.BalanceCents, &a.CreatedAt)
	return a, err
}

func (q *Queries) GetAccount(ctx context.Context, id string) (AccountRow, error) {
	return scanAccount(q.db.QueryRowContext(ctx, selectAccount+` WHERE id = ?`, id))
}

func (q *Queries) ListAccounts(ctx context.Context) ([]AccountRow, error) {
	rows, err := q.db.QueryContext(ctx, selectAccount+` ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []AccountRow
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteAccount(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM accounts WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteTransactionsByAccount(ctx context.Context, accountID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE account_id = ?`, accountID)
	return err
}

const recomputeBalance = `UPDATE accounts SET balance_cents = COALESCE((
    SELECT SUM(CASE WHEN type = 'income' THEN amount_cents ELSE -amount_cents END)
    FROM transactions WHERE account_id = accounts.id
), 0) WHERE id = ?`

func (q *Queries) RecomputeBalance(ctx context.Context, accountID string) (int64, error) {
	res, err := q.db.ExecContext(ctx, recomputeBalance, accountID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Categories

func (q *Queries) CreateCategory(ctx context.Context, c CategoryRow) error {
	_, err := q.db.ExecContext(ctx, `INSERT INTO categories (id, name, type) VALUES (?, ?, ?)`, c.ID, c.Name, c.Type)
	return err
}

func (q *Queries) GetCategory(ctx context.Context, id string) (CategoryRow, error) {
	var c CategoryRow
	err := q.db.QueryRowContext(ctx, `SELECT id, name, type FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Type)
	return c, err
}

func (q *Queries) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name, type FROM categories ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []CategoryRow
	for rows.Next() {
		var c CategoryRow
		if err := rows.Scan(&c.ID, &c.Name, &c.Type); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (q *Queries) DeleteCategory(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteRulesByCategory(ctx context.Context, categoryID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE category_id = ?`, categoryID)
	return err
}

func (q *Queries) ClearCategory(ctx context.Context, categoryID string) error {
	_, err := q.db.ExecContext(ctx, `UPDATE transactions SET category_id = NULL WHERE category_id = ?`, categoryID)
	return err
}

// Rules

const createRule = `INSERT INTO categorization_rules (id, category_id, keywords, transaction_type, priority, created_at)
VALUES (?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateRule(ctx context.Context, r RuleRow) error {
	_, err := q.db.ExecContext(ctx, createRule, r.ID, r.CategoryID, r.Keywords, r.TransactionType, r.Priority, r.CreatedAt)
	return err
}

func (q *Queries) DeleteRule(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM categorization_rules WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const listRules = `SELECT r.id, r.category_id, c.name, r.keywords, r.transaction_type, r.priority, r.created_at
FROM categorization_rules r
JOIN categories c ON c.id = r.category_id
ORDER BY r.priority DESC, r.id ASC`

func (q *Queries) ListRules(ctx context.Context) ([]RuleRow, error) {
	rows, err := q.db.QueryContext(ctx, listRules)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []RuleRow
	for rows.Next() {
		var r RuleRow
		if err := rows.Scan(&r.ID, &r.CategoryID, &r.CategoryName, &r.Keywords, &r.TransactionType, &r.Priority, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Transactions

const createTransaction = `INSERT INTO transactions
(id, account_id, amount_cents, type, category_id, description, date, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

func (q *Queries) CreateTransaction(ctx context.Context, t TransactionRow) error {
	_, err := q.db.ExecContext(ctx, createTransaction,
		t.ID, t.AccountID, t.AmountCents, t.Type, t.CategoryID, t.Description, t.Date, t.CreatedAt, t.UpdatedAt)
	return err
}

const updateTransaction = `UPDATE transactions
SET account_id = ?, amount_cents = ?, type = ?, category_id = ?, description = ?, date = ?, updated_at = ?
WHERE id = ?`

func (q *Queries) UpdateTransaction(ctx context.Context, t TransactionRow) (int64, error) {
	res, err := q.db.ExecContext(ctx, updateTransaction,
		t.AccountID, t.AmountCents, t.Type, t.CategoryID, t.Description, t.Date, t.UpdatedAt, t.ID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) SetTransactionCategory(ctx context.Context, id, categoryID, updatedAt string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, updated_at = ? WHERE id = ?`, categoryID, updatedAt, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteTransaction(ctx context.Context, id string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const selectTransaction = `SELECT id, account_id, amount_cents, type, category_id, description, date, created_at, updated_at
FROM transactions`

func scanTransaction(sc interface{ Scan(...any) error }) (TransactionRow, error) {
	var t TransactionRow
	err := sc.Scan(&t.ID, &t.AccountID, &t.AmountCents, &t.Type, &t.CategoryID, &t.Description, &t.Date, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func (q *Queries) GetTransaction(ctx context.Context, id string) (TransactionRow, error) {
	return scanTransaction(q.db.QueryRowContext(ctx, selectTransaction+` WHERE id = ?`, id))
}

// idsPerQuery keeps each IN list well under SQLite's bound variable limit.
const idsPerQuery = 500

// GetTransactionsByIDs runs one query per idsPerQuery ids. Rows come back in
// no particular order.
func (q *Queries) GetTransactionsByIDs(ctx context.Context, ids []string) ([]TransactionRow, error) {
	var out []TransactionRow
	for start := 0; start < len(ids); start += idsPerQuery {
		chunk := ids[start:min(start+idsPerQuery, len(ids))]
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}
		marks := strings.TrimSuffix(strings.Repeat("?,", len(chunk)), ",")
		rows, err := q.queryTransactions(ctx, selectTransaction+` WHERE id IN (`+marks+`)`, args...)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ListTransactionsParams uses empty strings and zero to disable a filter.
type ListTransactionsParams struct {
	AccountID     string
	Type          string
	Uncategorized bool
	Since         string
	Limit         int64 // -1 for no limit
}

const listTransactions = selectTransaction + `
WHERE (? = '' OR account_id = ?)
  AND (? = '' OR type = ?)
  AND (? = 0 OR category_id IS NULL)
  AND (? = '' OR date >= ?)
ORDER BY date DESC, created_at DESC, id ASC
LIMIT ?`

func (q *Queries) ListTransactions(ctx context.Context, p ListTransactionsParams) ([]TransactionRow, error) {
	uncategorized := 0
	if p.Uncategorized {
		uncategorized = 1
	}
	return q.queryTransactions(ctx, listTransactions,
		p.AccountID, p.AccountID,
		p.Type, p.Type,
		uncategorized,
		p.Since, p.Since,
		p.Limit)
}

func (q *Queries) queryTransactions(ctx context.Context, query string, args ...any) ([]TransactionRow, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []TransactionRow
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
