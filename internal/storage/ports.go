// Package storage defines the persistence contract for entries, categories
// and filters and implements it on SQL databases (SQLite and Postgres).
package storage

import (
	"context"

	"cashflow/internal/core"
	"cashflow/internal/filter"
	"cashflow/internal/paging"
)

// Scope selects which kind of entries a query returns.
type Scope int

const (
	// ScopeRealized is every postable entry: standalone entries and occurrences.
	ScopeRealized Scope = iota
	// ScopeParents is recurring rules only.
	ScopeParents
)

// EntryQuery describes a list or count over entries. Rows are returned in
// Predicate.Order(); After and Limit implement keyset pagination.
type EntryQuery struct {
	Predicate filter.Predicate
	Scope     Scope
	// Disabled restricts ScopeParents to enabled (false) or disabled (true) rules.
	Disabled *bool
	After    *paging.Boundary
	// Limit of 0 means no limit.
	Limit int
}

// EntryStore persists entries. Deletes are soft: deleted rows disappear from
// reads but still resolve cursors and still count as materialized occurrences.
type EntryStore interface {
	CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	GetEntry(ctx context.Context, id int64) (core.Entry, error)
	UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error)
	DeleteEntry(ctx context.Context, id int64) error
	SetRecurringDisabled(ctx context.Context, id int64, disabled bool) (core.Entry, error)
	ListEntries(ctx context.Context, q EntryQuery) ([]core.Entry, error)
	// CountEntries ignores After and Limit.
	CountEntries(ctx context.Context, q EntryQuery) (int, error)
	// CursorBoundary resolves an entry id, deleted or not, to its position under o.
	CursorBoundary(ctx context.Context, id int64, o paging.Order) (paging.Boundary, error)
	// OccurrenceDates returns the dates of every child of parentID, deleted ones included.
	OccurrenceDates(ctx context.Context, parentID int64) ([]core.Date, error)
	// InsertOccurrences materializes children of parent on the given dates.
	// Dates that already have a child are skipped; the number inserted is returned.
	InsertOccurrences(ctx context.Context, parent core.Entry, dates []core.Date) (int, error)
}

// CategoryStore persists categories. UsageCount is computed on read.
type CategoryStore interface {
	CreateCategory(ctx context.Context, c core.Category) (core.Category, error)
	GetCategory(ctx context.Context, id int64) (core.Category, error)
	ListCategories(ctx context.Context) ([]core.Category, error)
	UpdateCategory(ctx context.Context, c core.Category) (core.Category, error)
	// DeleteCategory never touches entries; their references resolve to
	// uncategorized on read.
	DeleteCategory(ctx context.Context, id int64) error
}

// FilterStore persists named filters.
type FilterStore interface {
	CreateFilter(ctx context.Context, f core.Filter) (core.Filter, error)
	GetFilter(ctx context.Context, id int64) (core.Filter, error)
	ListFilters(ctx context.Context) ([]core.Filter, error)
	UpdateFilter(ctx context.Context, f core.Filter) (core.Filter, error)
	DeleteFilter(ctx context.Context, id int64) error
}

// Store is the full persistence contract.
type Store interface {
	EntryStore
	CategoryStore
	FilterStore
	Ping(ctx context.Context) error
	Close() error
}
