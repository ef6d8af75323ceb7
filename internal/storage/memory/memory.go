// Package memory is a mutex-guarded, in-process implementation of
// storage.Store used by tests and by the memory data backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"cashflow/internal/core"
	"cashflow/internal/paging"
	"cashflow/internal/storage"
)

type entryRow struct {
	core.Entry
	deleted bool
}

type Store struct {
	mu         sync.Mutex
	nextID     int64
	entries    map[int64]*entryRow
	categories map[int64]core.Category
	filters    map[int64]core.Filter

	// failWith, when set, is returned by every call. Tests use it to
	// simulate an unavailable store.
	failWith error
}

var _ storage.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		entries:    make(map[int64]*entryRow),
		categories: make(map[int64]core.Category),
		filters:    make(map[int64]core.Filter),
	}
}

// FailWith makes every subsequent call return err. A nil err restores normal behavior.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *Store) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return &core.StoreUnavailableError{Op: "memory", Err: err}
	}
	return s.failWith
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

// resolve applies read-time resolution of weak category references.
func (s *Store) resolve(e core.Entry) core.Entry {
	if e.CategoryID != nil {
		if _, ok := s.categories[*e.CategoryID]; !ok {
			e.CategoryID = nil
		}
	}
	return e
}

func (s *Store) Ping(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.check(ctx)
}

func (s *Store) Close() error { return nil }

func (s *Store) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Entry{}, err
	}
	if e.TransactionID != nil {
		return core.Entry{}, core.Invalid("transactionId", "occurrences are created by reconciliation only")
	}
	if e.RecurringBaseInterval < 1 {
		e.RecurringBaseInterval = 1
	}
	e.ID = s.id()
	s.entries[e.ID] = &entryRow{Entry: e}
	return e, nil
}

func (s *Store) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Entry{}, err
	}
	row, ok := s.entries[id]
	if !ok || row.deleted {
		return core.Entry{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	return s.resolve(row.Entry), nil
}

func (s *Store) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Entry{}, err
	}
	row, ok := s.entries[e.ID]
	if !ok || row.deleted {
		return core.Entry{}, &core.NotFoundError{Resource: "entry", ID: e.ID}
	}
	e.IsRecurring = row.IsRecurring
	e.TransactionID = row.TransactionID
	if e.RecurringBaseInterval < 1 {
		e.RecurringBaseInterval = 1
	}
	row.Entry = e
	return s.resolve(e), nil
}

func (s *Store) DeleteEntry(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	row, ok := s.entries[id]
	if !ok || row.deleted {
		return &core.NotFoundError{Resource: "entry", ID: id}
	}
	row.deleted = true
	if row.IsRecurring {
		row.RecurringDisabled = true
	}
	return nil
}

func (s *Store) SetRecurringDisabled(ctx context.Context, id int64, disabled bool) (core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Entry{}, err
	}
	row, ok := s.entries[id]
	if !ok || row.deleted {
		return core.Entry{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	if !row.IsRecurring {
		return core.Entry{}, core.Invalid("id", fmt.Sprintf("entry %d is not a recurring rule", id))
	}
	row.RecurringDisabled = disabled
	return s.resolve(row.Entry), nil
}

func (s *Store) selectEntries(q storage.EntryQuery) []core.Entry {
	var out []core.Entry
	for _, row := range s.entries {
		if row.deleted {
			continue
		}
		e := s.resolve(row.Entry)
		switch q.Scope {
		case storage.ScopeParents:
			if !e.IsRecurring || (q.Disabled != nil && e.RecurringDisabled != *q.Disabled) {
				continue
			}
		default:
			if e.IsRecurring {
				continue
			}
		}
		if q.Predicate.Match(e) {
			out = append(out, e)
		}
	}
	return out
}

func (s *Store) ListEntries(ctx context.Context, q storage.EntryQuery) ([]core.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	matched := s.selectEntries(q)
	order := q.Predicate.Order()
	sort.Slice(matched, func(i, j int) bool { return order.Less(matched[i], matched[j]) })

	out := []core.Entry{}
	for _, e := range matched {
		if q.After != nil && !order.After(e, *q.After) {
			continue
		}
		out = append(out, e)
		if q.Limit > 0 && len(out) == q.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) CountEntries(ctx context.Context, q storage.EntryQuery) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	return len(s.selectEntries(q)), nil
}

func (s *Store) CursorBoundary(ctx context.Context, id int64, o paging.Order) (paging.Boundary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return paging.Boundary{}, err
	}
	row, ok := s.entries[id]
	if !ok {
		return paging.Boundary{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	return o.BoundaryOf(row.Entry), nil
}

func (s *Store) OccurrenceDates(ctx context.Context, parentID int64) ([]core.Date, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	var out []core.Date
	for _, row := range s.entries {
		if row.TransactionID != nil && *row.TransactionID == parentID {
			out = append(out, row.CreatedAt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j].Time) })
	return out, nil
}

func (s *Store) InsertOccurrences(ctx context.Context, parent core.Entry, dates []core.Date) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return 0, err
	}
	existing := make(map[string]struct{})
	for _, row := range s.entries {
		if row.TransactionID != nil && *row.TransactionID == parent.ID {
			existing[row.CreatedAt.String()] = struct{}{}
		}
	}
	inserted := 0
	for _, d := range dates {
		if _, dup := existing[d.String()]; dup {
			continue
		}
		existing[d.String()] = struct{}{}
		parentID := parent.ID
		child := core.Entry{
			ID:                    s.id(),
			Type:                  parent.Type,
			Amount:                parent.Amount,
			Currency:              parent.Currency,
			Description:           parent.Description,
			CategoryID:            parent.CategoryID,
			CreatedAt:             d,
			RecurringBaseInterval: 1,
			TransactionID:         &parentID,
		}
		s.entries[child.ID] = &entryRow{Entry: child}
		inserted++
	}
	return inserted, nil
}

func (s *Store) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Category{}, err
	}
	c.ID = s.id()
	c.UsageCount = 0
	s.categories[c.ID] = c
	return c, nil
}

func (s *Store) usage(id int64) int {
	n := 0
	for _, row := range s.entries {
		if !row.deleted && row.CategoryID != nil && *row.CategoryID == id {
			n++
		}
	}
	return n
}

func (s *Store) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Category{}, err
	}
	c, ok := s.categories[id]
	if !ok {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: id}
	}
	c.UsageCount = s.usage(id)
	return c, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Category, 0, len(s.categories))
	for id, c := range s.categories {
		c.UsageCount = s.usage(id)
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Category{}, err
	}
	old, ok := s.categories[c.ID]
	if !ok {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: c.ID}
	}
	c.CreatedAt = old.CreatedAt
	s.categories[c.ID] = c
	c.UsageCount = s.usage(c.ID)
	return c, nil
}

func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.categories[id]; !ok {
		return &core.NotFoundError{Resource: "category", ID: id}
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CreateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Filter{}, err
	}
	f.ID = s.id()
	s.filters[f.ID] = f
	return f, nil
}

func (s *Store) GetFilter(ctx context.Context, id int64) (core.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Filter{}, err
	}
	f, ok := s.filters[id]
	if !ok {
		return core.Filter{}, &core.NotFoundError{Resource: "filter", ID: id}
	}
	return f, nil
}

func (s *Store) ListFilters(ctx context.Context) ([]core.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return nil, err
	}
	out := make([]core.Filter, 0, len(s.filters))
	for _, f := range s.filters {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Title != out[j].Title {
			return out[i].Title < out[j].Title
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return core.Filter{}, err
	}
	if _, ok := s.filters[f.ID]; !ok {
		return core.Filter{}, &core.NotFoundError{Resource: "filter", ID: f.ID}
	}
	s.filters[f.ID] = f
	return f, nil
}

func (s *Store) DeleteFilter(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx); err != nil {
		return err
	}
	if _, ok := s.filters[id]; !ok {
		return &core.NotFoundError{Resource: "filter", ID: id}
	}
	delete(s.filters, id)
	return nil
}
