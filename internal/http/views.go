package http

import (
	"time"

	"assofin/internal/categorize"
	"assofin/internal/core"
	"assofin/internal/importer"
	"assofin/internal/services"
)

// Amounts are rendered as decimal strings ("12.34") to avoid float
// rounding in clients.

type accountView struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}

func newAccountView(a core.Account) accountView {
	return accountView{ID: a.ID, Name: a.Name, Type: string(a.Type), Balance: a.Balance.String(), CreatedAt: a.CreatedAt}
}

type typeBalanceView struct {
	Type    string `json:"type"`
	Balance string `json:"balance"`
}

func newTypeBalances(in []core.TypeBalance) []typeBalanceView {
	out := make([]typeBalanceView, len(in))
	for i, b := range in {
		out[i] = typeBalanceView{Type: string(b.Type), Balance: b.Balance.String()}
	}
	return out
}

type balancesView struct {
	Total  string            `json:"total"`
	ByType []typeBalanceView `json:"by_type"`
}

func newBalancesView(b services.Balances) balancesView {
	return balancesView{Total: b.Total.String(), ByType: newTypeBalances(b.ByType)}
}

type categoryView struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Type: string(c.Type)}
}

type transactionView struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      string    `json:"amount"`
	Type        string    `json:"type"`
	CategoryID  *string   `json:"category_id"`
	Description string    `json:"description"`
	Date        string    `json:"date"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newTransactionView(t core.Transaction) transactionView {
	v := transactionView{
		ID:          t.ID,
		AccountID:   t.AccountID,
		Amount:      t.Amount.String(),
		Type:        string(t.Type),
		Description: t.Description,
		Date:        t.Date.String(),
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if t.IsCategorized() {
		id := t.CategoryID
		v.CategoryID = &id
	}
	return v
}

type ruleView struct {
	ID              string    `json:"id"`
	CategoryID      string    `json:"category_id"`
	CategoryName    string    `json:"category_name"`
	Keywords        []string  `json:"keywords"`
	TransactionType string    `json:"transaction_type"`
	Priority        int       `json:"priority"`
	CreatedAt       time.Time `json:"created_at"`
}

func newRuleView(r core.CategorizationRule) ruleView {
	return ruleView{
		ID:              r.ID,
		CategoryID:      r.CategoryID,
		CategoryName:    r.CategoryName,
		Keywords:        r.Keywords,
		TransactionType: string(r.TransactionType),
		Priority:        r.Priority,
		CreatedAt:       r.CreatedAt,
	}
}

type categorizeView struct {
	categorize.Result
	Message string `json:"message"`
}

type importRowView struct {
	Line        int    `json:"line"`
	Date        string `json:"date"`
	Description string `json:"description"`
	Amount      string `json:"amount"`
	Type        string `json:"type"`
}

type previewView struct {
	Rows    []importRowView `json:"rows"`
	Skipped int             `json:"skipped"`
}

func newPreviewView(res importer.Result) previewView {
	v := previewView{Rows: make([]importRowView, len(res.Rows)), Skipped: res.Skipped}
	for i, r := range res.Rows {
		v.Rows[i] = importRowView{
			Line:        r.Line,
			Date:        r.Date.String(),
			Description: r.Description,
			Amount:      r.Amount.String(),
			Type:        string(r.Type),
		}
	}
	return v
}

type statsView struct {
	TotalIncome      string `json:"total_income"`
	TotalExpenses    string `json:"total_expenses"`
	Balance          string `json:"balance"`
	TransactionCount int    `json:"transaction_count"`
	Average          string `json:"average"`
}

type dailyView struct {
	Date     string `json:"date"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Balance  string `json:"balance"`
}

type categoryTotalView struct {
	Name     string `json:"name"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
	Total    string `json:"total"`
}

type reportView struct {
	Days        int                 `json:"days"`
	Stats       statsView           `json:"stats"`
	Evolution   []dailyView         `json:"evolution"`
	ByCategory  []categoryTotalView `json:"by_category"`
	ByAccount   []typeBalanceView   `json:"by_account_type"`
	TotalAssets string              `json:"total_assets"`
}

func newReportView(r core.Report) reportView {
	v := reportView{
		Days: r.Days,
		Stats: statsView{
			TotalIncome:      r.Stats.TotalIncome.String(),
			TotalExpenses:    r.Stats.TotalExpenses.String(),
			Balance:          r.Stats.Balance.String(),
			TransactionCount: r.Stats.TransactionCount,
			Average:          r.Stats.Average.String(),
		},
		Evolution:   make([]dailyView, len(r.Evolution)),
		ByCategory:  make([]categoryTotalView, len(r.ByCategory)),
		ByAccount:   newTypeBalances(r.ByAccount),
		TotalAssets: r.TotalAssets.String(),
	}
	for i, p := range r.Evolution {
		v.Evolution[i] = dailyView{Date: p.Date.String(), Income: p.Income.String(), Expenses: p.Expenses.String(), Balance: p.Balance.String()}
	}
	for i, c := range r.ByCategory {
		v.ByCategory[i] = categoryTotalView{Name: c.Name, Income: c.Income.String(), Expenses: c.Expenses.String(), Total: c.Total.String()}
	}
	return v
}
