package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"assofin/internal/amqp"
	"assofin/internal/core"
	"assofin/internal/memory"
)

// flakyStore wraps the in-memory store and fails selected calls.
type flakyStore struct {
	*memory.Store
	failAssign map[string]bool
	rulesErr   error
	listErr    error
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.New(), failAssign: map[string]bool{}}
}

func (f *flakyStore) SetTransactionCategory(ctx context.Context, txID, catID string) error {
	if f.failAssign[txID] {
		return errors.New("write failed")
	}
	return f.Store.SetTransactionCategory(ctx, txID, catID)
}

func (f *flakyStore) ListRules(ctx context.Context) ([]core.CategorizationRule, error) {
	if f.rulesErr != nil {
		return nil, f.rulesErr
	}
	return f.Store.ListRules(ctx)
}

func (f *flakyStore) ListUncategorized(ctx context.Context) ([]core.Transaction, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListUncategorized(ctx)
}

type fakePublisher struct {
	mu     sync.Mutex
	events []amqp.TransactionEvent
	ids    []string
	jobs   [][]string
	err    error
}

func (p *fakePublisher) PublishTransactionEvent(_ context.Context, id string, e amqp.TransactionEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, e)
	p.ids = append(p.ids, id)
	return nil
}

func (p *fakePublisher) PublishCategorizeJob(_ context.Context, ids []string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return "", p.err
	}
	p.jobs = append(p.jobs, ids)
	return "job-1", nil
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) Invalidate() { c.n++ }

type fixture struct {
	store    *flakyStore
	account  core.Account
	courses  core.Category
	dons     core.Category
	energy   core.Category
	tx       *TransactionService
	cat      *CategorizationService
	rules    *RuleService
	events   *fakePublisher
	invalids *countingInvalidator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	f := &fixture{store: newFlakyStore(), events: &fakePublisher{}, invalids: &countingInvalidator{}}

	var err error
	if f.account, err = f.store.CreateAccount(ctx, core.Account{Name: "Banque", Type: core.AccountBank}); err != nil {
		t.Fatal(err)
	}
	if f.courses, err = f.store.CreateCategory(ctx, core.Category{Name: "Courses", Type: core.Expense}); err != nil {
		t.Fatal(err)
	}
	if f.dons, err = f.store.CreateCategory(ctx, core.Category{Name: "Dons", Type: core.Income}); err != nil {
		t.Fatal(err)
	}
	if f.energy, err = f.store.CreateCategory(ctx, core.Category{Name: "Énergie", Type: core.Expense}); err != nil {
		t.Fatal(err)
	}

	f.tx = NewTransactionService(f.store, f.events, f.invalids)
	f.cat = NewCategorizationService(f.store, f.events, f.invalids).WithEvents(f.events)
	f.rules = NewRuleService(f.store)
	return f
}

func (f *fixture) addRule(t *testing.T, cat core.Category, keywords string, priority int) core.CategorizationRule {
	t.Helper()
	r, err := f.rules.Create(context.Background(), RuleInput{
		CategoryID: cat.ID, Keywords: keywords, TransactionType: string(cat.Type), Priority: priority,
	})
	if err != nil {
		t.Fatalf("create rule %q: %v", keywords, err)
	}
	return r
}

// addRaw stores a transaction without going through the service, so it
// stays uncategorized.
func (f *fixture) addRaw(t *testing.T, desc string, typ core.TransactionType) core.Transaction {
	t.Helper()
	tx, err := f.store.CreateTransaction(context.Background(), core.Transaction{
		AccountID: f.account.ID, Amount: core.Money{Cents: 1000}, Type: typ,
		Description: desc, Date: core.NewDate(2024, 5, 1),
	})
	if err != nil {
		t.Fatal(err)
	}
	return tx
}
