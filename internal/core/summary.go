package core

// MonthTotal holds income and expense of one calendar month.
type MonthTotal struct {
	Year    int
	Month   int // 1-12
	Income  Money
	Expense Money
}

// Net is derived once both sums are known.
func (m MonthTotal) Net() int64 {
	return m.Income.Cents - m.Expense.Cents
}

// ScheduledSummary sums recurring rules, counting each rule's amount once.
type ScheduledSummary struct {
	TotalCount   int
	TotalIncome  Money
	TotalExpense Money
}

// CategorySlice is one row of a category breakdown after small categories
// have been merged.
type CategorySlice struct {
	CategoryID       int64
	Name             string
	Value            Money
	ShareBasisPoints int64
	Color            Color
}

// BalancePoint is the running balance at the end of a bucket.
type BalancePoint struct {
	Date    Date
	Balance int64
}

// CapitalReport explains an available capital figure.
type CapitalReport struct {
	AsOf             Date
	Balance          int64
	DueObligations   int64
	AvailableCapital int64
}
