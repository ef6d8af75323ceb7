package report

import (
	"errors"
	"testing"

	"cashflow/internal/core"
)

func entry(id int64, typ core.TransactionType, cents int64, d core.Date) core.Entry {
	return core.Entry{
		ID:                    id,
		Type:                  typ,
		Amount:                core.Money{Cents: cents},
		Currency:              core.DefaultCurrency,
		CreatedAt:             d,
		RecurringBaseInterval: 1,
	}
}

func rule(id int64, typ core.TransactionType, cents int64, anchor core.Date, disabled bool) core.Entry {
	e := entry(id, typ, cents, anchor)
	e.IsRecurring = true
	e.RecurringType = core.Monthly
	e.RecurringDisabled = disabled
	return e
}

func TestScheduledSummary(t *testing.T) {
	anchor := core.NewDate(2024, 1, 1)
	parents := []core.Entry{
		rule(1, core.Income, 300000, anchor, false),
		rule(2, core.Expense, 90000, anchor, false),
		rule(3, core.Expense, 1500, anchor, true),
		entry(4, core.Expense, 999, anchor),
	}
	yes, no := true, false

	tests := []struct {
		name     string
		disabled *bool
		want     core.ScheduledSummary
	}{
		{"all", nil, core.ScheduledSummary{TotalCount: 3, TotalIncome: core.Money{Cents: 300000}, TotalExpense: core.Money{Cents: 91500}}},
		{"enabled", &no, core.ScheduledSummary{TotalCount: 2, TotalIncome: core.Money{Cents: 300000}, TotalExpense: core.Money{Cents: 90000}}},
		{"disabled", &yes, core.ScheduledSummary{TotalCount: 1, TotalExpense: core.Money{Cents: 1500}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScheduledSummary(parents, tt.disabled); got != tt.want {
				t.Errorf("ScheduledSummary() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestMonthlyTotals(t *testing.T) {
	entries := []core.Entry{
		entry(1, core.Expense, 100, core.NewDate(2025, 1, 3)),
		entry(2, core.Expense, 200, core.NewDate(2025, 1, 20)),
		entry(3, core.Income, 300, core.NewDate(2025, 1, 31)),
		entry(4, core.Income, 5000, core.NewDate(2025, 6, 1)),
		entry(5, core.Income, 7000, core.NewDate(2024, 12, 31)),
	}

	all, err := MonthlyTotals(entries, 2025, nil)
	if err != nil {
		t.Fatalf("MonthlyTotals() error = %v", err)
	}
	if len(all) != 12 {
		t.Fatalf("MonthlyTotals() len = %d, want 12", len(all))
	}
	jan := all[0]
	if jan.Month != 1 || jan.Income.Cents != 300 || jan.Expense.Cents != 300 || jan.Net() != 0 {
		t.Errorf("January = %+v, want income 300 expense 300 net 0", jan)
	}
	if all[5].Income.Cents != 5000 {
		t.Errorf("June income = %d, want 5000", all[5].Income.Cents)
	}

	june := 6
	one, err := MonthlyTotals(entries, 2025, &june)
	if err != nil {
		t.Fatalf("MonthlyTotals(month) error = %v", err)
	}
	if len(one) != 1 || one[0].Month != 6 || one[0].Income.Cents != 5000 {
		t.Errorf("MonthlyTotals(month) = %+v", one)
	}
}

func TestMonthlyTotals_InvalidMonth(t *testing.T) {
	for _, m := range []int{0, 13, -1} {
		month := m
		_, err := MonthlyTotals(nil, 2025, &month)
		var ve *core.ValidationError
		if !errors.As(err, &ve) || ve.Field != "month" {
			t.Errorf("MonthlyTotals(month=%d) error = %v, want validation error on month", m, err)
		}
	}
}

func TestAvailableCapital(t *testing.T) {
	asOf := core.NewDate(2025, 3, 10)
	realized := []core.Entry{
		entry(1, core.Income, 200000, core.NewDate(2025, 3, 1)),
		entry(2, core.Expense, 30000, core.NewDate(2025, 3, 2)),
		entry(3, core.Expense, 5000, core.NewDate(2025, 3, 20)), // after asOf
	}
	rent := rule(10, core.Expense, 80000, core.NewDate(2025, 2, 25), false)
	gym := rule(11, core.Expense, 3000, core.NewDate(2025, 3, 5), false)
	salary := rule(12, core.Income, 250000, core.NewDate(2025, 3, 27), false)
	paused := rule(13, core.Expense, 1000, core.NewDate(2025, 3, 1), true)

	materialized := map[int64][]core.Date{
		10: {core.NewDate(2025, 2, 25)},
		11: {core.NewDate(2025, 3, 5)},
	}

	got, err := AvailableCapital(realized, []core.Entry{rent, gym, salary, paused}, materialized, asOf)
	if err != nil {
		t.Fatalf("AvailableCapital() error = %v", err)
	}
	want := core.CapitalReport{
		AsOf:             asOf,
		Balance:          170000,
		DueObligations:   80000, // rent on 03-25; gym already paid, salary is income, paused is frozen
		AvailableCapital: 90000,
	}
	if got.Balance != want.Balance || got.DueObligations != want.DueObligations || got.AvailableCapital != want.AvailableCapital {
		t.Errorf("AvailableCapital() = %+v, want %+v", got, want)
	}
}

func TestAvailableCapital_NoDoubleCount(t *testing.T) {
	asOf := core.NewDate(2025, 3, 31)
	rent := rule(10, core.Expense, 80000, core.NewDate(2025, 3, 25), false)
	child := entry(20, core.Expense, 80000, core.NewDate(2025, 3, 25))
	parentID := rent.ID
	child.TransactionID = &parentID

	got, err := AvailableCapital([]core.Entry{child}, []core.Entry{rent},
		map[int64][]core.Date{10: {child.CreatedAt}}, asOf)
	if err != nil {
		t.Fatalf("AvailableCapital() error = %v", err)
	}
	if got.Balance != -80000 || got.DueObligations != 0 || got.AvailableCapital != -80000 {
		t.Errorf("AvailableCapital() = %+v", got)
	}
}

func TestAvailableCapital_ZeroAsOf(t *testing.T) {
	if _, err := AvailableCapital(nil, nil, nil, core.Date{}); !errors.Is(err, core.ErrValidation) {
		t.Errorf("AvailableCapital() error = %v, want validation error", err)
	}
}
