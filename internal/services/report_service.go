package services

import (
	"context"
	"fmt"
	"sort"
	"time"

	"assofin/internal/cache"
	"assofin/internal/core"
	"assofin/internal/ports"

	"golang.org/x/sync/errgroup"
)

const (
	DefaultReportDays = 30
	maxReportDays     = 3660
	topCategories     = 8
)

type ReportStore interface {
	ports.TransactionReader
	ports.CategoryReader
	ports.AccountReader
}

// ReportService builds dashboard reports and caches them until the next
// write.
type ReportService struct {
	store ReportStore
	cache cache.Cache[core.Report]
	now   func() time.Time
}

func NewReportService(store ReportStore, c cache.Cache[core.Report]) *ReportService {
	return &ReportService{store: store, cache: c, now: time.Now}
}

// Invalidate drops every cached report.
func (s *ReportService) Invalidate() {
	if s.cache != nil {
		s.cache.Purge()
	}
}

// Report covers the last days days, today included. Zero means 30.
func (s *ReportService) Report(ctx context.Context, days int) (core.Report, error) {
	if days <= 0 {
		days = DefaultReportDays
	}
	if days > maxReportDays {
		days = maxReportDays
	}

	today := core.DateOf(s.now())
	key := fmt.Sprintf("report:%d:%s", days, today)
	if s.cache != nil {
		if r, ok := s.cache.Get(key); ok {
			return r, nil
		}
	}

	since := core.DateOf(today.AddDate(0, 0, -(days - 1)))

	var (
		txs        []core.Transaction
		categories []core.Category
		accounts   []core.Account
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = s.store.ListTransactions(gctx, ports.TransactionFilter{Since: since})
		if err != nil {
			return fmt.Errorf("load transactions: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		categories, err = s.store.ListCategories(gctx)
		if err != nil {
			return fmt.Errorf("load categories: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		accounts, err = s.store.ListAccounts(gctx)
		if err != nil {
			return fmt.Errorf("load accounts: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return core.Report{}, err
	}

	names := make(map[string]string, len(categories))
	for _, c := range categories {
		names[c.ID] = c.Name
	}
	byType, total := balanceByType(accounts)

	r := core.Report{
		Days:        days,
		Stats:       periodStats(txs),
		Evolution:   dailyEvolution(txs),
		ByCategory:  categoryTotals(txs, names, topCategories),
		ByAccount:   byType,
		TotalAssets: total,
	}
	if s.cache != nil {
		s.cache.Set(key, r)
	}
	return r, nil
}

func periodStats(txs []core.Transaction) core.PeriodStats {
	var st core.PeriodStats
	for _, t := range txs {
		if t.Type == core.Income {
			st.TotalIncome.Cents += t.Amount.Cents
		} else {
			st.TotalExpenses.Cents += t.Amount.Cents
		}
	}
	st.TransactionCount = len(txs)
	st.Balance = core.Money{Cents: st.TotalIncome.Cents - st.TotalExpenses.Cents}
	if st.TransactionCount > 0 {
		st.Average = core.Money{Cents: (st.TotalIncome.Cents + st.TotalExpenses.Cents) / int64(st.TransactionCount)}
	}
	return st
}

// dailyEvolution groups by day, ascending, with a running balance.
func dailyEvolution(txs []core.Transaction) []core.DailyPoint {
	byDay := make(map[string]*core.DailyPoint)
	for _, t := range txs {
		key := t.Date.String()
		p, ok := byDay[key]
		if !ok {
			p = &core.DailyPoint{Date: t.Date}
			byDay[key] = p
		}
		if t.Type == core.Income {
			p.Income.Cents += t.Amount.Cents
		} else {
			p.Expenses.Cents += t.Amount.Cents
		}
	}

	out := make([]core.DailyPoint, 0, len(byDay))
	for _, p := range byDay {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date.Time) })

	var running int64
	for i := range out {
		running += out[i].Income.Cents - out[i].Expenses.Cents
		out[i].Balance = core.Money{Cents: running}
	}
	return out
}

// categoryTotals aggregates by category name, largest total first, keeping
// at most limit entries.
func categoryTotals(txs []core.Transaction, names map[string]string, limit int) []core.CategoryTotals {
	byName := make(map[string]*core.CategoryTotals)
	for _, t := range txs {
		name, ok := names[t.CategoryID]
		if !ok || t.CategoryID == "" {
			name = core.Uncategorized
		}
		ct, ok := byName[name]
		if !ok {
			ct = &core.CategoryTotals{Name: name}
			byName[name] = ct
		}
		if t.Type == core.Income {
			ct.Income.Cents += t.Amount.Cents
		} else {
			ct.Expenses.Cents += t.Amount.Cents
		}
		ct.Total.Cents += t.Amount.Cents
	}

	out := make([]core.CategoryTotals, 0, len(byName))
	for _, ct := range byName {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Total != out[j].Total {
			return out[i].Total.Cents > out[j].Total.Cents
		}
		return out[i].Name < out[j].Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
