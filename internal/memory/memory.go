// Package memory is an in-process ports.Store used for tests and the demo
// backend. All data is lost when the process exits.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"assofin/internal/core"
	"assofin/internal/ports"

	"github.com/google/uuid"
)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]core.Account
	categories   map[string]core.Category
	transactions map[string]core.Transaction
	rules        map[string]core.CategorizationRule
	now          func() time.Time
}

var _ ports.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:     map[string]core.Account{},
		categories:   map[string]core.Category{},
		transactions: map[string]core.Transaction{},
		rules:        map[string]core.CategorizationRule{},
		now:          time.Now,
	}
}

func (s *Store) Close() error { return nil }

// Accounts

func (s *Store) CreateAccount(_ context.Context, a core.Account) (core.Account, error) {
	if err := a.Validate(); err != nil {
		return core.Account{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	a.Balance = core.Money{}
	a.CreatedAt = s.now()
	s.accounts[a.ID] = a
	return a, nil
}

func (s *Store) GetAccount(_ context.Context, id string) (core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[id]
	if !ok {
		return core.Account{}, ports.ErrNotFound
	}
	return a, nil
}

// ListAccounts returns accounts newest first.
func (s *Store) ListAccounts(_ context.Context) ([]core.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Account, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteAccount removes the account and its transactions.
func (s *Store) DeleteAccount(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.accounts, id)
	for tid, t := range s.transactions {
		if t.AccountID == id {
			delete(s.transactions, tid)
		}
	}
	return nil
}

func (s *Store) RecomputeBalance(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[accountID]
	if !ok {
		return ports.ErrNotFound
	}
	var cents int64
	for _, t := range s.transactions {
		if t.AccountID == accountID {
			cents += t.Signed()
		}
	}
	a.Balance = core.Money{Cents: cents}
	s.accounts[accountID] = a
	return nil
}

// Categories

func (s *Store) CreateCategory(_ context.Context, c core.Category) (core.Category, error) {
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) GetCategory(_ context.Context, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, ports.ErrNotFound
	}
	return c, nil
}

// ListCategories returns categories ordered by name.
func (s *Store) ListCategories(_ context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Category, 0, len(s.categories))
	for _, c := range s.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// DeleteCategory removes the category, the rules targeting it and clears it
// from transactions.
func (s *Store) DeleteCategory(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.categories[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.categories, id)
	for rid, r := range s.rules {
		if r.CategoryID == id {
			delete(s.rules, rid)
		}
	}
	for tid, t := range s.transactions {
		if t.CategoryID == id {
			t.CategoryID = ""
			s.transactions[tid] = t
		}
	}
	return nil
}

// Rules

func (s *Store) CreateRule(_ context.Context, r core.CategorizationRule) (core.CategorizationRule, error) {
	r.Keywords = core.NormalizeKeywords(r.Keywords)
	if err := r.Validate(); err != nil {
		return core.CategorizationRule{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[r.CategoryID]
	if !ok {
		return core.CategorizationRule{}, ports.ErrNotFound
	}
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	r.CreatedAt = s.now()
	r.CategoryName = c.Name
	s.rules[r.ID] = r
	return r, nil
}

func (s *Store) DeleteRule(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.rules[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.rules, id)
	return nil
}

// ListRules returns rules by priority descending, then ID ascending.
func (s *Store) ListRules(_ context.Context) ([]core.CategorizationRule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.CategorizationRule, 0, len(s.rules))
	for _, r := range s.rules {
		r.Keywords = append([]string(nil), r.Keywords...)
		if c, ok := s.categories[r.CategoryID]; ok {
			r.CategoryName = c.Name
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Transactions

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[t.AccountID]; !ok {
		return core.Transaction{}, ports.ErrNotFound
	}
	if t.CategoryID != "" {
		if _, ok := s.categories[t.CategoryID]; !ok {
			return core.Transaction{}, ports.ErrNotFound
		}
	}
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	now := s.now()
	t.CreatedAt, t.UpdatedAt = now, now
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) (core.Transaction, error) {
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	old, ok := s.transactions[t.ID]
	if !ok {
		return core.Transaction{}, ports.ErrNotFound
	}
	if _, ok := s.accounts[t.AccountID]; !ok {
		return core.Transaction{}, ports.ErrNotFound
	}
	if t.CategoryID != "" {
		if _, ok := s.categories[t.CategoryID]; !ok {
			return core.Transaction{}, ports.ErrNotFound
		}
	}
	t.CreatedAt = old.CreatedAt
	t.UpdatedAt = s.now()
	s.transactions[t.ID] = t
	return t, nil
}

func (s *Store) DeleteTransaction(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[id]; !ok {
		return ports.ErrNotFound
	}
	delete(s.transactions, id)
	return nil
}

// SetTransactionCategory writes only the category of an existing transaction.
func (s *Store) SetTransactionCategory(_ context.Context, transactionID, categoryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[transactionID]
	if !ok {
		return ports.ErrNotFound
	}
	if _, ok := s.categories[categoryID]; !ok {
		return ports.ErrNotFound
	}
	t.CategoryID = categoryID
	t.UpdatedAt = s.now()
	s.transactions[transactionID] = t
	return nil
}

func (s *Store) GetTransaction(_ context.Context, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok {
		return core.Transaction{}, ports.ErrNotFound
	}
	return t, nil
}

func (s *Store) GetTransactionsByIDs(_ context.Context, ids []string) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]core.Transaction, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if t, ok := s.transactions[id]; ok {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *Store) ListUncategorized(ctx context.Context) ([]core.Transaction, error) {
	return s.ListTransactions(ctx, ports.TransactionFilter{Uncategorized: true})
}

// ListTransactions returns matching transactions by date descending, most
// recently created first within a day.
func (s *Store) ListTransactions(_ context.Context, f ports.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, t := range s.transactions {
		if f.AccountID != "" && t.AccountID != f.AccountID {
			continue
		}
		if f.Type != "" && t.Type != f.Type {
			continue
		}
		if f.Uncategorized && t.IsCategorized() {
			continue
		}
		if !f.Since.IsZero() && t.Date.Before(f.Since.Time) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}
