package http

import (
	"net/http"

	"cashflow/internal/core"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Catalog.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]categoryResponse, len(cats))
	for i, c := range cats {
		out[i] = toCategory(c)
	}
	writeJSON(w, http.StatusOK, map[string]any{"categories": out})
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var in categoryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Catalog.CreateCategory(r.Context(), in.category())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCategory(created))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in categoryRequest
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	c := in.category()
	c.ID = id
	updated, err := s.svc.Catalog.UpdateCategory(r.Context(), c)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toCategory(updated))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteCategory(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListFilters(w http.ResponseWriter, r *http.Request) {
	filters, err := s.svc.Catalog.ListFilters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	out := make([]filterResponse, len(filters))
	for i, f := range filters {
		out[i] = toFilter(f)
	}
	writeJSON(w, http.StatusOK, map[string]any{"filters": out})
}

func (s *Server) handleGetFilter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := s.svc.Catalog.GetFilter(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFilter(f))
}

func decodeFilter(w http.ResponseWriter, r *http.Request) (core.Filter, error) {
	var in filterRequest
	if err := decodeJSON(w, r, &in); err != nil {
		return core.Filter{}, err
	}
	return in.Filter()
}

func (s *Server) handleCreateFilter(w http.ResponseWriter, r *http.Request) {
	f, err := decodeFilter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	created, err := s.svc.Catalog.CreateFilter(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toFilter(created))
}

func (s *Server) handleUpdateFilter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := decodeFilter(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f.ID = id
	updated, err := s.svc.Catalog.UpdateFilter(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toFilter(updated))
}

func (s *Server) handleDeleteFilter(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.svc.Catalog.DeleteFilter(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
