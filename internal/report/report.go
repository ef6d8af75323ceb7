// Package report derives the summary figures shown next to the entry list:
// totals of scheduled rules, monthly totals for a year and the capital
// still available this month once due obligations are paid.
package report

import (
	"cashflow/internal/analytics"
	"cashflow/internal/core"
	"cashflow/internal/recurrence"
)

// Component names this package in annotated errors.
const Component = "report"

// ScheduledSummary counts recurring rules and sums their amounts, each rule
// once regardless of how many occurrences it produced. A non-nil disabled
// restricts the summary to disabled (true) or enabled (false) rules.
func ScheduledSummary(parents []core.Entry, disabled *bool) core.ScheduledSummary {
	var s core.ScheduledSummary
	for _, p := range parents {
		if !p.IsParent() {
			continue
		}
		if disabled != nil && p.RecurringDisabled != *disabled {
			continue
		}
		s.TotalCount++
		switch p.Type {
		case core.Income:
			s.TotalIncome.Cents += p.Amount.Cents
		case core.Expense:
			s.TotalExpense.Cents += p.Amount.Cents
		}
	}
	return s
}

// MonthlyTotals returns income and expense for every month of year, or
// only for month when it is set.
func MonthlyTotals(entries []core.Entry, year int, month *int) ([]core.MonthTotal, error) {
	window := core.Window(core.NewDate(year, 1, 1), core.NewDate(year, 12, 31))
	if year < 1 || year > 9999 {
		return nil, core.Annotate(Component, window, core.Invalid("year", "out of range"))
	}
	start, end := core.NewDate(year, 1, 1), core.NewDate(year, 12, 31)
	if month != nil {
		if *month < 1 || *month > 12 {
			return nil, core.Annotate(Component, window, core.Invalid("month", "must be between 1 and 12"))
		}
		start = core.NewDate(year, *month, 1)
		end = start.EndOfMonth()
	}

	buckets, err := analytics.Aggregate(entries, start, end, analytics.Month, false)
	if err != nil {
		return nil, core.Annotate(Component, window, err)
	}
	out := make([]core.MonthTotal, len(buckets))
	for i, b := range buckets {
		out[i] = core.MonthTotal{
			Year:    b.Start.Year(),
			Month:   b.Start.Month(),
			Income:  b.Income,
			Expense: b.Expense,
		}
	}
	return out, nil
}

// AvailableCapital is the balance of realized entries up to asOf minus the
// expense occurrences due by the end of asOf's month that are not yet
// materialized. materialized maps a parent id to its children's dates.
func AvailableCapital(realized, parents []core.Entry, materialized map[int64][]core.Date, asOf core.Date) (core.CapitalReport, error) {
	if err := asOf.Validate(); err != nil {
		return core.CapitalReport{}, core.Annotate(Component, core.Window(asOf, asOf), core.Invalid("asOf", err.Error()))
	}
	cutoff := asOf.EndOfMonth()
	r := core.CapitalReport{AsOf: asOf}

	for _, e := range realized {
		if e.IsParent() || e.CreatedAt.After(asOf.Time) {
			continue
		}
		r.Balance += e.Signed()
	}

	for _, p := range parents {
		if !p.IsParent() || p.Type != core.Expense {
			continue
		}
		res, err := recurrence.Reconcile(p, materialized[p.ID], cutoff)
		if err != nil {
			return core.CapitalReport{}, core.Annotate(Component, core.Window(p.CreatedAt, cutoff), err)
		}
		r.DueObligations += int64(len(res.OccurrencesToCreate)) * p.Amount.Cents
	}

	r.AvailableCapital = r.Balance - r.DueObligations
	return r, nil
}
