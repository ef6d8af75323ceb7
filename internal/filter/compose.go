// Package filter turns filter input into a normalized predicate and ordering.
//
// Transport adapters (FromQuery, Input) produce one canonical core.FilterSpec
// first; Compose never sees the transport shape. A saved core.Filter and an
// ad-hoc spec with the same fields compose to the same Predicate.
package filter

import (
	"slices"
	"strings"

	"cashflow/internal/core"
	"cashflow/internal/paging"
)

// Component names this package in annotated errors.
const Component = "filter"

// Predicate is a normalized FilterSpec. The zero Predicate matches everything.
type Predicate struct {
	MinAmount   *int64
	MaxAmount   *int64
	From        *core.Date
	To          *core.Date
	Search      string // lower-cased
	Type        *core.TransactionType
	CategoryIDs []int64 // ascending, unique, positive; empty means any
	Sort        core.SortOption
}

// Compose validates spec and normalizes it.
func Compose(spec core.FilterSpec) (Predicate, error) {
	if err := spec.Validate(); err != nil {
		return Predicate{}, core.Annotate(Component, window(spec), err)
	}
	p := Predicate{
		MinAmount:   copyInt(spec.MinPrice),
		MaxAmount:   copyInt(spec.MaxPrice),
		From:        copyDate(spec.DateFrom),
		To:          copyDate(spec.DateTo),
		Search:      strings.ToLower(strings.TrimSpace(spec.SearchText)),
		CategoryIDs: NormalizeIDs(spec.CategoryIDs),
		Sort:        spec.SortOption,
	}
	if spec.TransactionType != nil {
		t := *spec.TransactionType
		p.Type = &t
	}
	if p.Sort == "" {
		p.Sort = core.NewestFirst
	}
	return p, nil
}

// Match reports whether e satisfies every constraint.
func (p Predicate) Match(e core.Entry) bool {
	if p.MinAmount != nil && e.Amount.Cents < *p.MinAmount {
		return false
	}
	if p.MaxAmount != nil && e.Amount.Cents > *p.MaxAmount {
		return false
	}
	if p.From != nil && e.CreatedAt.Before(p.From.Time) {
		return false
	}
	if p.To != nil && e.CreatedAt.After(p.To.Time) {
		return false
	}
	if p.Type != nil && e.Type != *p.Type {
		return false
	}
	if len(p.CategoryIDs) > 0 {
		if _, found := slices.BinarySearch(p.CategoryIDs, e.CategoryKey()); !found {
			return false
		}
	}
	if p.Search != "" && !strings.Contains(strings.ToLower(e.Description), p.Search) {
		return false
	}
	return true
}

// Order is the ordering the predicate's sort option asks for.
func (p Predicate) Order() paging.Order {
	return paging.OrderFor(p.Sort)
}

// Apply filters entries with Match, preserving their order.
func (p Predicate) Apply(entries []core.Entry) []core.Entry {
	out := make([]core.Entry, 0, len(entries))
	for _, e := range entries {
		if p.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

// Merge overlays the fields set in override onto base. It is how ad-hoc
// query parameters refine a saved filter.
func Merge(base, override core.FilterSpec) core.FilterSpec {
	out := base
	if override.MinPrice != nil {
		out.MinPrice = override.MinPrice
	}
	if override.MaxPrice != nil {
		out.MaxPrice = override.MaxPrice
	}
	if override.DateFrom != nil {
		out.DateFrom = override.DateFrom
	}
	if override.DateTo != nil {
		out.DateTo = override.DateTo
	}
	if override.SearchText != "" {
		out.SearchText = override.SearchText
	}
	if override.TransactionType != nil {
		out.TransactionType = override.TransactionType
	}
	if override.SortOption != "" {
		out.SortOption = override.SortOption
	}
	if len(override.CategoryIDs) > 0 {
		out.CategoryIDs = override.CategoryIDs
	}
	return out
}

// NormalizeIDs drops non-positive ids, removes duplicates and sorts.
func NormalizeIDs(ids []int64) []int64 {
	var out []int64
	for _, id := range ids {
		if id > 0 {
			out = append(out, id)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func window(spec core.FilterSpec) string {
	var from, to core.Date
	if spec.DateFrom != nil {
		from = *spec.DateFrom
	}
	if spec.DateTo != nil {
		to = *spec.DateTo
	}
	if from.IsZero() && to.IsZero() {
		return ""
	}
	return core.Window(from, to)
}

func copyInt(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyDate(d *core.Date) *core.Date {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}
