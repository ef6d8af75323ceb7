package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"cashflow/internal/analytics"
	"cashflow/internal/cache"
	"cashflow/internal/core"
	"cashflow/internal/filter"
	applog "cashflow/internal/log"
	"cashflow/internal/report"
	"cashflow/internal/storage"
)

// ReportCaches holds one cache per cached result type. Nil fields disable
// caching of that result.
type ReportCaches struct {
	Monthly cache.Cache[[]core.MonthTotal]
	Rows    cache.Cache[[]analytics.Row]
	Slices  cache.Cache[[]core.CategorySlice]
	Balance cache.Cache[[]core.BalancePoint]
}

// Purge drops every cached report.
func (c *ReportCaches) Purge(ctx context.Context) {
	if c == nil {
		return
	}
	if c.Monthly != nil {
		c.Monthly.Purge(ctx)
	}
	if c.Rows != nil {
		c.Rows.Purge(ctx)
	}
	if c.Slices != nil {
		c.Slices.Purge(ctx)
	}
	if c.Balance != nil {
		c.Balance.Purge(ctx)
	}
}

// cached returns the value under key or computes and stores it.
func cached[T any](ctx context.Context, c cache.Cache[T], key string, compute func() (T, error)) (T, error) {
	if c != nil {
		if v, ok := c.Get(ctx, key); ok {
			return v, nil
		}
	}
	v, err := compute()
	if err != nil {
		return v, err
	}
	if c != nil {
		c.Set(ctx, key, v)
	}
	return v, nil
}

// ReportService computes summaries, analytics series and available capital.
type ReportService struct {
	store     storage.Store
	processor *RecurringProcessor
	caches    *ReportCaches
	timeout   time.Duration
	clock     Clock
	// Threshold is the breakdown merge share in percent.
	Threshold int
}

func NewReportService(store storage.Store, processor *RecurringProcessor, caches *ReportCaches, cfg ProcessorConfig) *ReportService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	if caches == nil {
		caches = &ReportCaches{}
	}
	return &ReportService{
		store:     store,
		processor: processor,
		caches:    caches,
		timeout:   cfg.StoreTimeout,
		clock:     cfg.Clock,
		Threshold: analytics.DefaultMergeThreshold,
	}
}

// Today is the report date according to the service clock.
func (s *ReportService) Today() core.Date {
	return s.clock.today()
}

func (s *ReportService) reconcile(ctx context.Context) error {
	if s.processor == nil {
		return nil
	}
	if _, err := s.processor.ReconcileAll(ctx); err != nil {
		return fmt.Errorf("reconcile before report: %w", err)
	}
	return nil
}

// realized loads postable entries dated in [from, to]; a nil bound is open.
func (s *ReportService) realized(ctx context.Context, from, to *core.Date) ([]core.Entry, error) {
	pred, err := filter.Compose(core.FilterSpec{DateFrom: from, DateTo: to, SortOption: core.OldestFirst})
	if err != nil {
		return nil, err
	}
	return call(ctx, s.timeout, "load entries", func(ctx context.Context) ([]core.Entry, error) {
		return s.store.ListEntries(ctx, storage.EntryQuery{Predicate: pred, Scope: storage.ScopeRealized})
	})
}

func (s *ReportService) parents(ctx context.Context, disabled *bool) ([]core.Entry, error) {
	return call(ctx, s.timeout, "load rules", func(ctx context.Context) ([]core.Entry, error) {
		return s.store.ListEntries(ctx, storage.EntryQuery{Scope: storage.ScopeParents, Disabled: disabled})
	})
}

func (s *ReportService) ScheduledSummary(ctx context.Context, disabled *bool) (core.ScheduledSummary, error) {
	parents, err := s.parents(ctx, disabled)
	if err != nil {
		return core.ScheduledSummary{}, fmt.Errorf("scheduled summary: %w", err)
	}
	return report.ScheduledSummary(parents, disabled), nil
}

// MonthlyTotals returns the totals of every month of year, or of month only.
func (s *ReportService) MonthlyTotals(ctx context.Context, year int, month *int) ([]core.MonthTotal, error) {
	if _, err := report.MonthlyTotals(nil, year, month); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("monthly:%d", year)
	if month != nil {
		key += fmt.Sprintf(":%d", *month)
	}
	return cached(ctx, s.caches.Monthly, key, func() ([]core.MonthTotal, error) {
		from, to := core.NewDate(year, 1, 1), core.NewDate(year, 12, 31)
		entries, err := s.realized(ctx, &from, &to)
		if err != nil {
			return nil, fmt.Errorf("monthly totals: %w", err)
		}
		totals, err := report.MonthlyTotals(entries, year, month)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "Monthly totals computed",
			applog.FieldYear, year,
			"entries", len(entries))
		return totals, nil
	})
}

// Breakdown returns the income/expense series of [start, end].
func (s *ReportService) Breakdown(ctx context.Context, start, end core.Date, g analytics.Granularity, withCategory bool) ([]analytics.Row, error) {
	if _, err := analytics.Aggregate(nil, start, end, g, withCategory); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("rows:%s:%s:%s:%t", start, end, g, withCategory)
	return cached(ctx, s.caches.Rows, key, func() ([]analytics.Row, error) {
		entries, err := s.realized(ctx, &start, &end)
		if err != nil {
			return nil, fmt.Errorf("breakdown: %w", err)
		}
		buckets, err := analytics.Aggregate(entries, start, end, g, withCategory)
		if err != nil {
			return nil, err
		}
		return analytics.Rows(buckets, withCategory), nil
	})
}

// CategorySlices returns the category breakdown of one transaction type
// with names resolved. Unknown categories read as the uncategorized slice.
func (s *ReportService) CategorySlices(ctx context.Context, start, end core.Date, typ core.TransactionType) ([]core.CategorySlice, error) {
	if _, err := analytics.Breakdown(nil, start, end, typ, s.Threshold); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("slices:%s:%s:%s:%d", start, end, typ, s.Threshold)
	return cached(ctx, s.caches.Slices, key, func() ([]core.CategorySlice, error) {
		var (
			entries    []core.Entry
			categories []core.Category
		)
		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			entries, err = s.realized(gctx, &start, &end)
			return err
		})
		g.Go(func() error {
			var err error
			categories, err = call(gctx, s.timeout, "list categories", func(ctx context.Context) ([]core.Category, error) {
				return s.store.ListCategories(ctx)
			})
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("category breakdown: %w", err)
		}

		slices, err := analytics.Breakdown(entries, start, end, typ, s.Threshold)
		if err != nil {
			return nil, err
		}
		names := make(map[int64]string, len(categories))
		for _, c := range categories {
			names[c.ID] = c.Name
		}
		for i := range slices {
			if name, ok := names[slices[i].CategoryID]; ok {
				slices[i].Name = name
			} else {
				slices[i].Name = core.UncategorizedName
			}
		}
		return slices, nil
	})
}

// BalanceHistory returns the running balance at the end of each period,
// starting from the balance of everything before start.
func (s *ReportService) BalanceHistory(ctx context.Context, start, end core.Date, g analytics.Granularity) ([]core.BalancePoint, error) {
	if _, err := analytics.BalanceHistory(nil, start, end, g); err != nil {
		return nil, err
	}
	if err := s.reconcile(ctx); err != nil {
		return nil, err
	}

	key := fmt.Sprintf("balance:%s:%s:%s", start, end, g)
	return cached(ctx, s.caches.Balance, key, func() ([]core.BalancePoint, error) {
		entries, err := s.realized(ctx, nil, &end)
		if err != nil {
			return nil, fmt.Errorf("balance history: %w", err)
		}
		return analytics.BalanceHistory(entries, start, end, g)
	})
}

// AvailableCapital reports today's balance minus this month's expense
// occurrences that are due but not yet materialized.
func (s *ReportService) AvailableCapital(ctx context.Context) (core.CapitalReport, error) {
	if err := s.reconcile(ctx); err != nil {
		return core.CapitalReport{}, err
	}
	asOf := s.clock.today()

	var realized, parents []core.Entry
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		realized, err = s.realized(gctx, nil, &asOf)
		return err
	})
	g.Go(func() error {
		var err error
		parents, err = s.parents(gctx, nil)
		return err
	})
	if err := g.Wait(); err != nil {
		return core.CapitalReport{}, fmt.Errorf("available capital: %w", err)
	}

	var mu sync.Mutex
	materialized := make(map[int64][]core.Date, len(parents))
	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(8)
	for _, p := range parents {
		if p.Type != core.Expense || p.RecurringDisabled {
			continue
		}
		g.Go(func() error {
			dates, err := call(gctx, s.timeout, "occurrence dates", func(ctx context.Context) ([]core.Date, error) {
				return s.store.OccurrenceDates(ctx, p.ID)
			})
			if err != nil {
				return err
			}
			mu.Lock()
			materialized[p.ID] = dates
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return core.CapitalReport{}, fmt.Errorf("available capital: %w", err)
	}

	return report.AvailableCapital(realized, parents, materialized, asOf)
}
