package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/filter"
	applog "cashflow/internal/log"
	"cashflow/internal/paging"
	"cashflow/internal/storage"
)

// ListRequest is one page request over realized entries.
type ListRequest struct {
	// Spec holds the ad-hoc filter fields. With FilterID set they override
	// the saved filter field by field.
	Spec     core.FilterSpec
	FilterID *int64
	Take     int
	// Cursor, when set, is an opaque boundary token and wins over CursorID.
	Cursor    string
	CursorID  *int64
	WithCount bool
}

// ScheduledRequest is one page request over recurring rules.
type ScheduledRequest struct {
	Take     int
	CursorID *int64
	Disabled *bool
}

// QueryService answers list reads. Reads reconcile due occurrences first
// so that every list reflects today's materialized state.
type QueryService struct {
	store     storage.Store
	processor *RecurringProcessor
	timeout   time.Duration
}

func NewQueryService(store storage.Store, processor *RecurringProcessor, timeout time.Duration) *QueryService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &QueryService{store: store, processor: processor, timeout: timeout}
}

func (s *QueryService) reconcile(ctx context.Context) error {
	if s.processor == nil {
		return nil
	}
	if _, err := s.processor.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("reconcile before read: %w", err)
	}
	return nil
}

// resolveSpec merges the named filter under the ad-hoc fields. A filter id
// that no longer exists resolves to no saved filter.
func (s *QueryService) resolveSpec(ctx context.Context, req ListRequest) (core.FilterSpec, error) {
	if req.FilterID == nil {
		return req.Spec, nil
	}
	saved, err := call(ctx, s.timeout, "get filter", func(ctx context.Context) (core.Filter, error) {
		return s.store.GetFilter(ctx, *req.FilterID)
	})
	if errors.Is(err, core.ErrNotFound) {
		slog.WarnContext(ctx, "Unknown filter id, listing unfiltered", "filter_id", *req.FilterID)
		return req.Spec, nil
	}
	if err != nil {
		return core.FilterSpec{}, err
	}
	return filter.Merge(saved.Spec, req.Spec), nil
}

// boundary resolves the page start. A cursor id whose entry was deleted
// still resolves; one that never existed is rejected.
func (s *QueryService) boundary(ctx context.Context, o paging.Order, token string, cursorID *int64) (*paging.Boundary, error) {
	if token != "" {
		b, err := paging.DecodeBoundary(o, token)
		if err != nil {
			return nil, err
		}
		return &b, nil
	}
	if cursorID == nil {
		return nil, nil
	}
	b, err := call(ctx, s.timeout, "cursor boundary", func(ctx context.Context) (paging.Boundary, error) {
		return s.store.CursorBoundary(ctx, *cursorID, o)
	})
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.Invalid("cursorId", fmt.Sprintf("unknown entry %d", *cursorID))
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// ListEntries returns one page of realized entries.
func (s *QueryService) ListEntries(ctx context.Context, req ListRequest) (paging.Result, error) {
	if _, err := filter.Compose(req.Spec); err != nil {
		return paging.Result{}, err
	}
	spec, err := s.resolveSpec(ctx, req)
	if err != nil {
		return paging.Result{}, err
	}
	pred, err := filter.Compose(spec)
	if err != nil {
		return paging.Result{}, err
	}
	order := pred.Order()
	after, err := s.boundary(ctx, order, req.Cursor, req.CursorID)
	if err != nil {
		return paging.Result{}, err
	}
	if err := s.reconcile(ctx); err != nil {
		return paging.Result{}, err
	}

	take := paging.ClampTake(req.Take)
	q := storage.EntryQuery{Predicate: pred, Scope: storage.ScopeRealized, After: after, Limit: take}
	items, err := call(ctx, s.timeout, "list entries", func(ctx context.Context) ([]core.Entry, error) {
		return s.store.ListEntries(ctx, q)
	})
	if err != nil {
		return paging.Result{}, fmt.Errorf("list entries: %w", err)
	}

	res := paging.Finish(items, order, take)
	if req.WithCount {
		n, err := call(ctx, s.timeout, "count entries", func(ctx context.Context) (int, error) {
			return s.store.CountEntries(ctx, q)
		})
		if err != nil {
			return paging.Result{}, fmt.Errorf("count entries: %w", err)
		}
		res.Count = &n
	}

	slog.DebugContext(ctx, "Entries listed",
		"take", take,
		"returned", len(res.Items),
		applog.FieldOperation, "list")
	return res, nil
}

// ListScheduled returns one page of recurring rules, newest anchor first,
// always with the total count.
func (s *QueryService) ListScheduled(ctx context.Context, req ScheduledRequest) (paging.Result, error) {
	pred, _ := filter.Compose(core.FilterSpec{SortOption: core.NewestFirst})
	order := pred.Order()
	after, err := s.boundary(ctx, order, "", req.CursorID)
	if err != nil {
		return paging.Result{}, err
	}

	take := paging.ClampTake(req.Take)
	q := storage.EntryQuery{Predicate: pred, Scope: storage.ScopeParents, Disabled: req.Disabled, After: after, Limit: take}
	items, err := call(ctx, s.timeout, "list rules", func(ctx context.Context) ([]core.Entry, error) {
		return s.store.ListEntries(ctx, q)
	})
	if err != nil {
		return paging.Result{}, fmt.Errorf("list recurring rules: %w", err)
	}
	n, err := call(ctx, s.timeout, "count rules", func(ctx context.Context) (int, error) {
		return s.store.CountEntries(ctx, q)
	})
	if err != nil {
		return paging.Result{}, fmt.Errorf("count recurring rules: %w", err)
	}

	res := paging.Finish(items, order, take)
	res.Count = &n
	return res, nil
}
