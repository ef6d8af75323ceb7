package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/filter"
	"cashflow/internal/storage"
)

// CatalogService manages categories and saved filters. Category changes
// purge cached breakdowns because slices carry category names.
type CatalogService struct {
	categories storage.CategoryStore
	filters    storage.FilterStore
	purgers    []Purger
	clock      Clock
	timeout    time.Duration
}

func NewCatalogService(categories storage.CategoryStore, filters storage.FilterStore, cfg ProcessorConfig) *CatalogService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &CatalogService{
		categories: categories,
		filters:    filters,
		purgers:    cfg.Purgers,
		clock:      cfg.Clock,
		timeout:    cfg.StoreTimeout,
	}
}

func (s *CatalogService) ListCategories(ctx context.Context) ([]core.Category, error) {
	return call(ctx, s.timeout, "list categories", func(ctx context.Context) ([]core.Category, error) {
		return s.categories.ListCategories(ctx)
	})
}

func (s *CatalogService) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = s.clock.today()
	created, err := call(ctx, s.timeout, "create category", func(ctx context.Context) (core.Category, error) {
		return s.categories.CreateCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	return created, nil
}

func (s *CatalogService) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	c.Name = strings.TrimSpace(c.Name)
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	updated, err := call(ctx, s.timeout, "update category", func(ctx context.Context) (core.Category, error) {
		return s.categories.UpdateCategory(ctx, c)
	})
	if err != nil {
		return core.Category{}, err
	}
	purge(ctx, s.purgers)
	return updated, nil
}

// DeleteCategory removes the category. Entries keep their reference and
// read as uncategorized from then on.
func (s *CatalogService) DeleteCategory(ctx context.Context, id int64) error {
	if _, err := call(ctx, s.timeout, "delete category", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.categories.DeleteCategory(ctx, id)
	}); err != nil {
		return err
	}
	purge(ctx, s.purgers)
	return nil
}

func (s *CatalogService) ListFilters(ctx context.Context) ([]core.Filter, error) {
	return call(ctx, s.timeout, "list filters", func(ctx context.Context) ([]core.Filter, error) {
		return s.filters.ListFilters(ctx)
	})
}

func (s *CatalogService) GetFilter(ctx context.Context, id int64) (core.Filter, error) {
	return call(ctx, s.timeout, "get filter", func(ctx context.Context) (core.Filter, error) {
		return s.filters.GetFilter(ctx, id)
	})
}

func normalizeFilter(f *core.Filter) {
	f.Title = strings.TrimSpace(f.Title)
	f.Spec.SearchText = strings.TrimSpace(f.Spec.SearchText)
	f.Spec.CategoryIDs = filter.NormalizeIDs(f.Spec.CategoryIDs)
	if f.Spec.SortOption == "" {
		f.Spec.SortOption = core.NewestFirst
	}
}

func (s *CatalogService) CreateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	normalizeFilter(&f)
	if err := f.Validate(); err != nil {
		return core.Filter{}, err
	}
	created, err := call(ctx, s.timeout, "create filter", func(ctx context.Context) (core.Filter, error) {
		return s.filters.CreateFilter(ctx, f)
	})
	if err != nil {
		return core.Filter{}, fmt.Errorf("create filter: %w", err)
	}
	return created, nil
}

func (s *CatalogService) UpdateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	normalizeFilter(&f)
	if err := f.Validate(); err != nil {
		return core.Filter{}, err
	}
	return call(ctx, s.timeout, "update filter", func(ctx context.Context) (core.Filter, error) {
		return s.filters.UpdateFilter(ctx, f)
	})
}

func (s *CatalogService) DeleteFilter(ctx context.Context, id int64) error {
	_, err := call(ctx, s.timeout, "delete filter", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.filters.DeleteFilter(ctx, id)
	})
	return err
}
