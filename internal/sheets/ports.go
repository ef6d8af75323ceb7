package sheets

import (
	"context"

	"cashflow/internal/core"
)

// Ports for the spreadsheet export.
type (
	// TotalsWriter replaces the monthly totals of one year in the export
	// target and returns a reference to the written range.
	TotalsWriter interface {
		WriteMonthlyTotals(ctx context.Context, year int, totals []core.MonthTotal) (ref string, err error)
	}

	// TotalsReader returns what was last exported for a year. A year that
	// was never exported reads as no totals.
	TotalsReader interface {
		ReadMonthlyTotals(ctx context.Context, year int) ([]core.MonthTotal, error)
	}

	TotalsExporter interface {
		TotalsWriter
		TotalsReader
	}
)

// Equal reports whether two exports carry the same figures.
func Equal(a, b []core.MonthTotal) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
