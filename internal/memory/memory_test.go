package memory

import (
	"context"
	"errors"
	"testing"

	"assofin/internal/core"
	"assofin/internal/ports"
)

func seedStore(t *testing.T) (*Store, core.Account, core.Category) {
	t.Helper()
	ctx := context.Background()
	s := New()
	acc, err := s.CreateAccount(ctx, core.Account{Name: "Compte courant", Type: core.AccountBank})
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	cat, err := s.CreateCategory(ctx, core.Category{Name: "Courses", Type: core.Expense})
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	return s, acc, cat
}

func TestTransactionsAndBalance(t *testing.T) {
	ctx := context.Background()
	s, acc, cat := seedStore(t)

	in, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID: acc.ID, Amount: core.Money{Cents: 10000}, Type: core.Income,
		Description: "cotisation", Date: core.NewDate(2024, 3, 1),
	})
	if err != nil {
		t.Fatalf("create income: %v", err)
	}
	if _, err := s.CreateTransaction(ctx, core.Transaction{
		AccountID: acc.ID, Amount: core.Money{Cents: 2550}, Type: core.Expense, CategoryID: cat.ID,
		Description: "carrefour", Date: core.NewDate(2024, 3, 2),
	}); err != nil {
		t.Fatalf("create expense: %v", err)
	}

	if err := s.RecomputeBalance(ctx, acc.ID); err != nil {
		t.Fatalf("recompute: %v", err)
	}
	got, _ := s.GetAccount(ctx, acc.ID)
	if got.Balance.Cents != 7450 {
		t.Fatalf("balance = %d, want 7450", got.Balance.Cents)
	}

	list, _ := s.ListTransactions(ctx, ports.TransactionFilter{})
	if len(list) != 2 || list[0].Description != "carrefour" {
		t.Fatalf("expected date descending order, got %+v", list)
	}

	unc, _ := s.ListUncategorized(ctx)
	if len(unc) != 1 || unc[0].ID != in.ID {
		t.Fatalf("uncategorized = %+v", unc)
	}
}

func TestCreateTransactionRejectsUnknownAccount(t *testing.T) {
	s, _, _ := seedStore(t)
	_, err := s.CreateTransaction(context.Background(), core.Transaction{
		AccountID: "nope", Amount: core.Money{Cents: 1}, Type: core.Expense, Date: core.NewDate(2024, 1, 1),
	})
	if !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetTransactionCategoryOnlyTouchesCategory(t *testing.T) {
	ctx := context.Background()
	s, acc, cat := seedStore(t)
	tx, _ := s.CreateTransaction(ctx, core.Transaction{
		AccountID: acc.ID, Amount: core.Money{Cents: 300}, Type: core.Expense,
		Description: "CB CARREFOUR", Date: core.NewDate(2024, 5, 5),
	})

	if err := s.SetTransactionCategory(ctx, tx.ID, cat.ID); err != nil {
		t.Fatalf("set category: %v", err)
	}
	got, _ := s.GetTransaction(ctx, tx.ID)
	if got.CategoryID != cat.ID || got.Description != tx.Description || got.Amount != tx.Amount {
		t.Fatalf("unexpected transaction after assign: %+v", got)
	}

	if err := s.SetTransactionCategory(ctx, "missing", cat.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown transaction, got %v", err)
	}
}

func TestRulesOrderAndCategoryCascade(t *testing.T) {
	ctx := context.Background()
	s, acc, cat := seedStore(t)

	mk := func(id string, prio int) {
		t.Helper()
		if _, err := s.CreateRule(ctx, core.CategorizationRule{
			ID: id, CategoryID: cat.ID, Keywords: []string{" Carrefour ", "carrefour"},
			TransactionType: core.Expense, Priority: prio,
		}); err != nil {
			t.Fatalf("create rule %s: %v", id, err)
		}
	}
	mk("b", 5)
	mk("a", 5)
	mk("c", 9)

	rules, _ := s.ListRules(ctx)
	if len(rules) != 3 || rules[0].ID != "c" || rules[1].ID != "a" || rules[2].ID != "b" {
		t.Fatalf("unexpected rule order: %+v", rules)
	}
	if len(rules[0].Keywords) != 1 || rules[0].Keywords[0] != "carrefour" {
		t.Fatalf("keywords not normalized: %v", rules[0].Keywords)
	}
	if rules[0].CategoryName != "Courses" {
		t.Fatalf("category name not joined: %q", rules[0].CategoryName)
	}

	tx, _ := s.CreateTransaction(ctx, core.Transaction{
		AccountID: acc.ID, Amount: core.Money{Cents: 300}, Type: core.Expense, CategoryID: cat.ID,
		Description: "x", Date: core.NewDate(2024, 5, 5),
	})
	if err := s.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	rules, _ = s.ListRules(ctx)
	if len(rules) != 0 {
		t.Fatalf("rules should be removed with their category, got %d", len(rules))
	}
	got, _ := s.GetTransaction(ctx, tx.ID)
	if got.CategoryID != "" {
		t.Fatalf("transaction still references deleted category")
	}
}

func TestCreateRuleRejectsEmptyKeywords(t *testing.T) {
	s, _, cat := seedStore(t)
	_, err := s.CreateRule(context.Background(), core.CategorizationRule{
		CategoryID: cat.ID, Keywords: []string{" ", ""}, TransactionType: core.Expense, Priority: 1,
	})
	if !errors.Is(err, core.ErrEmptyKeywords) {
		t.Fatalf("expected ErrEmptyKeywords, got %v", err)
	}
}

func TestGetTransactionsByIDsKeepsOrder(t *testing.T) {
	ctx := context.Background()
	s, acc, _ := seedStore(t)
	var ids []string
	for i := 0; i < 3; i++ {
		tx, _ := s.CreateTransaction(ctx, core.Transaction{
			AccountID: acc.ID, Amount: core.Money{Cents: 100}, Type: core.Expense, Date: core.NewDate(2024, 1, i+1),
		})
		ids = append(ids, tx.ID)
	}

	got, err := s.GetTransactionsByIDs(ctx, []string{ids[2], "unknown", ids[0], ids[2]})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].ID != ids[2] || got[1].ID != ids[0] {
		t.Fatalf("unexpected result: %+v", got)
	}
}

func TestDeleteAccountRemovesTransactions(t *testing.T) {
	ctx := context.Background()
	s, acc, _ := seedStore(t)
	_, _ = s.CreateTransaction(ctx, core.Transaction{
		AccountID: acc.ID, Amount: core.Money{Cents: 100}, Type: core.Income, Date: core.NewDate(2024, 1, 1),
	})
	if err := s.DeleteAccount(ctx, acc.ID); err != nil {
		t.Fatalf("delete account: %v", err)
	}
	list, _ := s.ListTransactions(ctx, ports.TransactionFilter{})
	if len(list) != 0 {
		t.Fatalf("expected no transactions, got %d", len(list))
	}
	if err := s.DeleteAccount(ctx, acc.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Fatalf("expected ErrNotFound on second delete, got %v", err)
	}
}
