package core

// Uncategorized is the label reports use for transactions without a category.
const Uncategorized = "Non catégorisé"

// PeriodStats summarizes the transactions of a reporting period.
type PeriodStats struct {
	TotalIncome      Money
	TotalExpenses    Money
	Balance          Money // income - expenses, may be negative
	TransactionCount int
	Average          Money // (income + expenses) / count
}

// DailyPoint is one day of the evolution series with its running balance.
type DailyPoint struct {
	Date     Date
	Income   Money
	Expenses Money
	Balance  Money // cumulative since the start of the period
}

// CategoryTotals represents amounts aggregated by category name.
type CategoryTotals struct {
	Name     string
	Income   Money
	Expenses Money
	Total    Money
}

// TypeBalance is the summed balance of all accounts of one type.
type TypeBalance struct {
	Type    AccountType
	Balance Money
}

// Report is the dashboard payload for a period of N days.
type Report struct {
	Days        int
	Stats       PeriodStats
	Evolution   []DailyPoint
	ByCategory  []CategoryTotals
	ByAccount   []TypeBalance
	TotalAssets Money
}
