package services

import (
	"context"
	"fmt"
	"strings"

	"assofin/internal/core"
	"assofin/internal/ports"
)

type AccountStore interface {
	ports.AccountReader
	ports.AccountWriter
}

type AccountService struct {
	store   AccountStore
	reports Invalidator
}

func NewAccountService(store AccountStore, reports Invalidator) *AccountService {
	if reports == nil {
		reports = noopInvalidator{}
	}
	return &AccountService{store: store, reports: reports}
}

func (s *AccountService) Create(ctx context.Context, name, accountType string) (core.Account, error) {
	typ, err := core.ParseAccountType(accountType)
	if err != nil {
		return core.Account{}, err
	}
	a, err := s.store.CreateAccount(ctx, core.Account{Name: strings.TrimSpace(name), Type: typ})
	if err != nil {
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}
	s.reports.Invalidate()
	return a, nil
}

func (s *AccountService) List(ctx context.Context) ([]core.Account, error) {
	out, err := s.store.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	return out, nil
}

// Delete removes the account together with its transactions.
func (s *AccountService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteAccount(ctx, id); err != nil {
		return fmt.Errorf("delete account: %w", err)
	}
	s.reports.Invalidate()
	return nil
}

// Balances is the total balance of all accounts and its split by type.
type Balances struct {
	Total  core.Money
	ByType []core.TypeBalance
}

func (s *AccountService) Balances(ctx context.Context) (Balances, error) {
	accounts, err := s.List(ctx)
	if err != nil {
		return Balances{}, err
	}
	byType, total := balanceByType(accounts)
	return Balances{Total: total, ByType: byType}, nil
}

var accountTypeOrder = []core.AccountType{core.AccountBank, core.AccountCash, core.AccountGrants, core.AccountDues}

// balanceByType sums balances per account type, listing only the types
// present, in a fixed order.
func balanceByType(accounts []core.Account) ([]core.TypeBalance, core.Money) {
	sums := make(map[core.AccountType]int64)
	var total int64
	for _, a := range accounts {
		sums[a.Type] += a.Balance.Cents
		total += a.Balance.Cents
	}
	var out []core.TypeBalance
	for _, t := range accountTypeOrder {
		if cents, ok := sums[t]; ok {
			out = append(out, core.TypeBalance{Type: t, Balance: core.Money{Cents: cents}})
		}
	}
	return out, core.Money{Cents: total}
}
