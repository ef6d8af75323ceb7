package http

import (
	"net/http"
	"net/url"
	"strings"

	"cashflow/internal/analytics"
	"cashflow/internal/core"
)

// handleMonthlyTotals defaults year to the current one; month narrows the
// result to a single month.
func (s *Server) handleMonthlyTotals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	year, err := queryInt(q, "year")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if year == nil {
		y := s.svc.Reports.Today().Year()
		year = &y
	}
	month, err := queryInt(q, "month")
	if err != nil {
		writeError(w, r, err)
		return
	}

	totals, err := s.svc.Reports.MonthlyTotals(r.Context(), *year, month)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthly(*year, totals))
}

func granularity(q url.Values) (analytics.Granularity, error) {
	v := strings.TrimSpace(q.Get("granularity"))
	if v == "" {
		return analytics.Month, nil
	}
	return analytics.ParseGranularity(v)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := dateWindow(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := granularity(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	withCategory, err := queryBool(q, "withCategory")
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.svc.Reports.Breakdown(r.Context(), start, end, g, withCategory != nil && *withCategory)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBreakdown(rows))
}

// handleCategorySlices breaks expenses down by category unless
// transactionType asks for income.
func (s *Server) handleCategorySlices(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := dateWindow(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	typ := core.Expense
	if v := strings.TrimSpace(q.Get("transactionType")); v != "" {
		if typ, err = core.ParseTransactionType(v); err != nil {
			writeError(w, r, err)
			return
		}
	}

	slices, err := s.svc.Reports.CategorySlices(r.Context(), start, end, typ)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSlices(slices))
}

func (s *Server) handleBalanceHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	start, end, err := dateWindow(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	g, err := granularity(q)
	if err != nil {
		writeError(w, r, err)
		return
	}

	points, err := s.svc.Reports.BalanceHistory(r.Context(), start, end, g)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toBalance(points))
}

func (s *Server) handleCapital(w http.ResponseWriter, r *http.Request) {
	report, err := s.svc.Reports.AvailableCapital(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, capitalResponse{
		AvailableCapital: report.AvailableCapital,
		AsOf:             report.AsOf,
		Balance:          report.Balance,
		DueObligations:   report.DueObligations,
	})
}
