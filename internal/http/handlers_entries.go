package http

import (
	"net/http"

	"cashflow/internal/core"
	"cashflow/internal/filter"
	"cashflow/internal/services"
)

// handleListEntries serves one page of realized entries. Ad-hoc filter
// parameters override the saved filter named by filterId.
func (s *Server) handleListEntries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	spec, err := filter.FromQuery(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req := services.ListRequest{Spec: spec, Cursor: q.Get("cursor")}
	if req.FilterID, err = queryID(q, "filterId"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.CursorID, err = queryID(q, "cursorId"); err != nil {
		writeError(w, r, err)
		return
	}
	take, err := queryInt(q, "take")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if take != nil {
		req.Take = *take
	}
	count, err := queryBool(q, "count")
	if err != nil {
		writeError(w, r, err)
		return
	}
	req.WithCount = count != nil && *count

	res, err := s.svc.Queries.ListEntries(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPage(res))
}

func (s *Server) handleCreateEntry(w http.ResponseWriter, r *http.Request) {
	var in entryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Entries.Create(r.Context(), in.entry())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntry(created))
}

func (s *Server) handleGetEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	e, err := s.svc.Entries.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntry(e))
}

func (s *Server) handleUpdateEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in entryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e := in.entry()
	e.ID = id
	updated, err := s.svc.Entries.Update(r.Context(), e)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntry(updated))
}

func (s *Server) handleDeleteEntry(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Entries.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListScheduled(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var req services.ScheduledRequest
	var err error
	if req.CursorID, err = queryID(q, "cursorId"); err != nil {
		writeError(w, r, err)
		return
	}
	if req.Disabled, err = queryBool(q, "disabled"); err != nil {
		writeError(w, r, err)
		return
	}
	take, err := queryInt(q, "take")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if take != nil {
		req.Take = *take
	}

	res, err := s.svc.Queries.ListScheduled(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page := toPage(res)
	// Rule pages are addressed by cursor id only.
	page.Cursor = ""
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleSetDisabled(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in disabledRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	if in.Disabled == nil {
		writeError(w, r, core.Invalid("disabled", "required"))
		return
	}
	rule, err := s.svc.Entries.SetDisabled(r.Context(), id, *in.Disabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntry(rule))
}

func (s *Server) handleScheduledSummary(w http.ResponseWriter, r *http.Request) {
	disabled, err := queryBool(r.URL.Query(), "disabled")
	if err != nil {
		writeError(w, r, err)
		return
	}
	sum, err := s.svc.Reports.ScheduledSummary(r.Context(), disabled)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, scheduledSummaryResponse{
		TotalCount:   sum.TotalCount,
		TotalIncome:  sum.TotalIncome.Cents,
		TotalExpense: sum.TotalExpense.Cents,
	})
}
