package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"cashflow/internal/core"
	"cashflow/internal/filter"
	"cashflow/internal/paging"
)

func openTestRepo(t *testing.T) *SQLRepository {
	t.Helper()
	repo, err := Open(context.Background(), SQLite, filepath.Join(t.TempDir(), "cashflow.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func newEntry(typ core.TransactionType, cents int64, d core.Date, desc string) core.Entry {
	return core.Entry{
		Type:                  typ,
		Amount:                core.Money{Cents: cents},
		Currency:              core.DefaultCurrency,
		Description:           desc,
		CreatedAt:             d,
		RecurringBaseInterval: 1,
	}
}

func TestRepository_EntryCRUD(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	created, err := repo.CreateEntry(ctx, newEntry(core.Expense, 1250, core.NewDate(2024, 3, 5), "Groceries"))
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if created.ID == 0 {
		t.Fatal("CreateEntry() returned zero id")
	}

	got, err := repo.GetEntry(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if got.Description != "Groceries" || got.Amount.Cents != 1250 || got.CreatedAt.String() != "2024-03-05" {
		t.Errorf("GetEntry() = %+v", got)
	}

	got.Description = "Market"
	got.Amount = core.Money{Cents: 990}
	updated, err := repo.UpdateEntry(ctx, got)
	if err != nil {
		t.Fatalf("UpdateEntry() error = %v", err)
	}
	if updated.Description != "Market" || updated.Amount.Cents != 990 {
		t.Errorf("UpdateEntry() = %+v", updated)
	}

	if err := repo.DeleteEntry(ctx, created.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}
	if _, err := repo.GetEntry(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetEntry() after delete error = %v, want not found", err)
	}
	if err := repo.DeleteEntry(ctx, created.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("DeleteEntry() twice error = %v, want not found", err)
	}
}

func TestRepository_CreateRejectsOccurrence(t *testing.T) {
	repo := openTestRepo(t)
	e := newEntry(core.Expense, 100, core.NewDate(2024, 1, 1), "x")
	parent := int64(7)
	e.TransactionID = &parent

	if _, err := repo.CreateEntry(context.Background(), e); !errors.Is(err, core.ErrValidation) {
		t.Errorf("CreateEntry() error = %v, want validation error", err)
	}
}

func TestRepository_InsertOccurrencesIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rule := newEntry(core.Expense, 5000, core.NewDate(2024, 1, 31), "Rent")
	rule.IsRecurring = true
	rule.RecurringType = core.Monthly
	parent, err := repo.CreateEntry(ctx, rule)
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}

	dates := []core.Date{core.NewDate(2024, 1, 31), core.NewDate(2024, 2, 29)}
	n, err := repo.InsertOccurrences(ctx, parent, dates)
	if err != nil {
		t.Fatalf("InsertOccurrences() error = %v", err)
	}
	if n != 2 {
		t.Errorf("InsertOccurrences() = %d, want 2", n)
	}

	n, err = repo.InsertOccurrences(ctx, parent, append(dates, core.NewDate(2024, 3, 31)))
	if err != nil {
		t.Fatalf("InsertOccurrences() second call error = %v", err)
	}
	if n != 1 {
		t.Errorf("InsertOccurrences() second call = %d, want 1", n)
	}

	got, err := repo.OccurrenceDates(ctx, parent.ID)
	if err != nil {
		t.Fatalf("OccurrenceDates() error = %v", err)
	}
	want := []string{"2024-01-31", "2024-02-29", "2024-03-31"}
	if len(got) != len(want) {
		t.Fatalf("OccurrenceDates() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].String() != want[i] {
			t.Errorf("OccurrenceDates()[%d] = %s, want %s", i, got[i], want[i])
		}
	}

	realized, err := repo.ListEntries(ctx, EntryQuery{Scope: ScopeRealized})
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(realized) != 3 {
		t.Errorf("ListEntries(realized) len = %d, want 3", len(realized))
	}
	for _, e := range realized {
		if e.TransactionID == nil || *e.TransactionID != parent.ID {
			t.Errorf("occurrence %d has parent %v, want %d", e.ID, e.TransactionID, parent.ID)
		}
	}

	parents, err := repo.ListEntries(ctx, EntryQuery{Scope: ScopeParents})
	if err != nil {
		t.Fatalf("ListEntries(parents) error = %v", err)
	}
	if len(parents) != 1 || parents[0].ID != parent.ID {
		t.Errorf("ListEntries(parents) = %v", parents)
	}
}

func TestRepository_DeletedOccurrenceStillMaterialized(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rule := newEntry(core.Income, 300000, core.NewDate(2024, 1, 1), "Salary")
	rule.IsRecurring = true
	rule.RecurringType = core.Monthly
	parent, err := repo.CreateEntry(ctx, rule)
	if err != nil {
		t.Fatalf("CreateEntry() error = %v", err)
	}
	if _, err := repo.InsertOccurrences(ctx, parent, []core.Date{core.NewDate(2024, 1, 1)}); err != nil {
		t.Fatalf("InsertOccurrences() error = %v", err)
	}
	children, _ := repo.ListEntries(ctx, EntryQuery{})
	if len(children) != 1 {
		t.Fatalf("expected one child, got %d", len(children))
	}
	if err := repo.DeleteEntry(ctx, children[0].ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}

	dates, err := repo.OccurrenceDates(ctx, parent.ID)
	if err != nil {
		t.Fatalf("OccurrenceDates() error = %v", err)
	}
	if len(dates) != 1 {
		t.Errorf("OccurrenceDates() = %v, want the deleted child", dates)
	}
	if n, _ := repo.InsertOccurrences(ctx, parent, []core.Date{core.NewDate(2024, 1, 1)}); n != 0 {
		t.Errorf("InsertOccurrences() recreated a deleted child")
	}
}

func TestRepository_DeleteRuleDisables(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	rule := newEntry(core.Expense, 999, core.NewDate(2024, 1, 1), "Streaming")
	rule.IsRecurring = true
	rule.RecurringType = core.Monthly
	parent, _ := repo.CreateEntry(ctx, rule)

	if _, err := repo.SetRecurringDisabled(ctx, parent.ID, true); err != nil {
		t.Fatalf("SetRecurringDisabled() error = %v", err)
	}
	disabled := true
	got, _ := repo.ListEntries(ctx, EntryQuery{Scope: ScopeParents, Disabled: &disabled})
	if len(got) != 1 {
		t.Errorf("disabled parents = %d, want 1", len(got))
	}

	standalone, _ := repo.CreateEntry(ctx, newEntry(core.Expense, 1, core.NewDate(2024, 1, 1), "x"))
	if _, err := repo.SetRecurringDisabled(ctx, standalone.ID, true); !errors.Is(err, core.ErrValidation) {
		t.Errorf("SetRecurringDisabled() on standalone error = %v, want validation", err)
	}
}

func TestRepository_DanglingCategory(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	cat, err := repo.CreateCategory(ctx, core.Category{Name: "Food", Color: core.Palette[0], Icon: "cart", CreatedAt: core.NewDate(2024, 1, 1)})
	if err != nil {
		t.Fatalf("CreateCategory() error = %v", err)
	}
	e := newEntry(core.Expense, 500, core.NewDate(2024, 2, 1), "Bread")
	e.CategoryID = &cat.ID
	created, _ := repo.CreateEntry(ctx, e)

	got, err := repo.GetCategory(ctx, cat.ID)
	if err != nil {
		t.Fatalf("GetCategory() error = %v", err)
	}
	if got.UsageCount != 1 {
		t.Errorf("UsageCount = %d, want 1", got.UsageCount)
	}

	if err := repo.DeleteCategory(ctx, cat.ID); err != nil {
		t.Fatalf("DeleteCategory() error = %v", err)
	}
	entry, err := repo.GetEntry(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if entry.CategoryID != nil {
		t.Errorf("CategoryID = %d, want nil after category delete", *entry.CategoryID)
	}
}

func TestRepository_KeysetPaging(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	for i := 1; i <= 7; i++ {
		if _, err := repo.CreateEntry(ctx, newEntry(core.Expense, int64(i*100), core.NewDate(2024, 1, 1+i%3), "e")); err != nil {
			t.Fatalf("CreateEntry() error = %v", err)
		}
	}

	for _, opt := range []core.SortOption{core.NewestFirst, core.OldestFirst, core.HighestAmount, core.LowestAmount} {
		t.Run(string(opt), func(t *testing.T) {
			pred, err := filter.Compose(core.FilterSpec{SortOption: opt})
			if err != nil {
				t.Fatalf("Compose() error = %v", err)
			}
			all, err := repo.ListEntries(ctx, EntryQuery{Predicate: pred})
			if err != nil {
				t.Fatalf("ListEntries() error = %v", err)
			}

			var walked []int64
			var after *paging.Boundary
			for {
				page, err := repo.ListEntries(ctx, EntryQuery{Predicate: pred, After: after, Limit: 3})
				if err != nil {
					t.Fatalf("ListEntries() page error = %v", err)
				}
				for _, e := range page {
					walked = append(walked, e.ID)
				}
				if len(page) < 3 {
					break
				}
				b := pred.Order().BoundaryOf(page[len(page)-1])
				after = &b
			}

			if len(walked) != len(all) {
				t.Fatalf("walked %d entries, want %d", len(walked), len(all))
			}
			for i := range all {
				if walked[i] != all[i].ID {
					t.Errorf("walked[%d] = %d, want %d", i, walked[i], all[i].ID)
				}
			}
		})
	}
}

func TestRepository_CursorBoundaryOfDeleted(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	e, _ := repo.CreateEntry(ctx, newEntry(core.Expense, 4200, core.NewDate(2024, 5, 17), "gone"))
	if err := repo.DeleteEntry(ctx, e.ID); err != nil {
		t.Fatalf("DeleteEntry() error = %v", err)
	}

	o := paging.OrderFor(core.HighestAmount)
	b, err := repo.CursorBoundary(ctx, e.ID, o)
	if err != nil {
		t.Fatalf("CursorBoundary() error = %v", err)
	}
	if b.ID != e.ID || b.Key != 4200 {
		t.Errorf("CursorBoundary() = %+v, want {ID:%d Key:4200}", b, e.ID)
	}

	if _, err := repo.CursorBoundary(ctx, 9999, o); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("CursorBoundary() missing error = %v, want not found", err)
	}
}

func TestRepository_FilterQuery(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	repo.CreateEntry(ctx, newEntry(core.Expense, 1500, core.NewDate(2024, 4, 2), "Coffee 100%"))
	repo.CreateEntry(ctx, newEntry(core.Expense, 3000, core.NewDate(2024, 4, 3), "Coffee beans"))
	repo.CreateEntry(ctx, newEntry(core.Income, 2000, core.NewDate(2024, 4, 4), "coffee refund"))

	typ := core.Expense
	minCents := int64(1000)
	pred, err := filter.Compose(core.FilterSpec{SearchText: "COFFEE", TransactionType: &typ, MinPrice: &minCents})
	if err != nil {
		t.Fatalf("Compose() error = %v", err)
	}
	n, err := repo.CountEntries(ctx, EntryQuery{Predicate: pred})
	if err != nil {
		t.Fatalf("CountEntries() error = %v", err)
	}
	if n != 2 {
		t.Errorf("CountEntries() = %d, want 2", n)
	}

	pct, _ := filter.Compose(core.FilterSpec{SearchText: "100%"})
	got, _ := repo.ListEntries(ctx, EntryQuery{Predicate: pct})
	if len(got) != 1 {
		t.Errorf("literal %% search matched %d entries, want 1", len(got))
	}
}

func TestRepository_Filters(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	from := core.NewDate(2024, 1, 1)
	typ := core.Income
	f, err := repo.CreateFilter(ctx, core.Filter{
		Title: "Income 2024",
		Icon:  "filter",
		Spec: core.FilterSpec{
			DateFrom:        &from,
			TransactionType: &typ,
			SortOption:      core.HighestAmount,
			CategoryIDs:     []int64{3, 1},
		},
	})
	if err != nil {
		t.Fatalf("CreateFilter() error = %v", err)
	}

	got, err := repo.GetFilter(ctx, f.ID)
	if err != nil {
		t.Fatalf("GetFilter() error = %v", err)
	}
	if got.Spec.DateFrom == nil || got.Spec.DateFrom.String() != "2024-01-01" {
		t.Errorf("DateFrom = %v", got.Spec.DateFrom)
	}
	if got.Spec.TransactionType == nil || *got.Spec.TransactionType != core.Income {
		t.Errorf("TransactionType = %v", got.Spec.TransactionType)
	}
	if len(got.Spec.CategoryIDs) != 2 || got.Spec.CategoryIDs[0] != 3 {
		t.Errorf("CategoryIDs = %v", got.Spec.CategoryIDs)
	}
	if got.Spec.MinPrice != nil {
		t.Errorf("MinPrice = %v, want nil", *got.Spec.MinPrice)
	}

	if err := repo.DeleteFilter(ctx, f.ID); err != nil {
		t.Fatalf("DeleteFilter() error = %v", err)
	}
	if _, err := repo.GetFilter(ctx, f.ID); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("GetFilter() after delete error = %v", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &SQLRepository{dialect: Postgres}
	if got := pg.rebind("a = ? AND b IN (?, ?)"); got != "a = $1 AND b IN ($2, $3)" {
		t.Errorf("rebind() = %q", got)
	}
	lite := &SQLRepository{dialect: SQLite}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Errorf("rebind() sqlite = %q", got)
	}
}
