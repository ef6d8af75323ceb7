package services

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	"cashflow/internal/storage/memory"
)

func TestRecurringProcessor_MonthEndRule(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestClock(2025, 4, 1))
	rule := seedRule(t, f, recurring(core.Expense, 120000, core.Monthly, core.NewDate(2025, 1, 31)))

	n, err := f.processor.ReconcileAll(ctx)
	if err != nil {
		t.Fatalf("ReconcileAll() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ReconcileAll() = %d, want 3", n)
	}

	dates, _ := f.store.OccurrenceDates(ctx, rule.ID)
	want := []string{"2025-01-31", "2025-02-28", "2025-03-31"}
	if got := dateStrings(dates); !reflect.DeepEqual(got, want) {
		t.Errorf("occurrences = %v, want %v", got, want)
	}

	if n, err := f.processor.ReconcileAll(ctx); err != nil || n != 0 {
		t.Errorf("second ReconcileAll() = %d, %v, want 0, nil", n, err)
	}

	if got := f.publisher.actions(); !reflect.DeepEqual(got, []amqp.Action{amqp.ActionMaterialized}) {
		t.Errorf("published %v, want one materialized event", got)
	}
	if f.purger.count() != 1 {
		t.Errorf("purges = %d, want 1", f.purger.count())
	}
}

func TestRecurringProcessor_ConcurrentCallsCreateNoDuplicates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestClock(2025, 3, 10))
	rule := seedRule(t, f, recurring(core.Income, 1000, core.Daily, core.NewDate(2025, 3, 1)))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.processor.ReconcileParent(ctx, rule, f.processor.Today()); err != nil {
				t.Errorf("ReconcileParent() error = %v", err)
			}
		}()
	}
	wg.Wait()

	dates, _ := f.store.OccurrenceDates(ctx, rule.ID)
	if len(dates) != 10 {
		t.Errorf("occurrences = %d, want 10", len(dates))
	}
}

// overlapStore records how many occurrence lookups of one parent run at once.
type overlapStore struct {
	*memory.Store
	mu        sync.Mutex
	active    int
	maxActive int
}

func (s *overlapStore) OccurrenceDates(ctx context.Context, parentID int64) ([]core.Date, error) {
	s.mu.Lock()
	s.active++
	s.maxActive = max(s.maxActive, s.active)
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.active--
		s.mu.Unlock()
	}()
	time.Sleep(2 * time.Millisecond)
	return s.Store.OccurrenceDates(ctx, parentID)
}

func TestRecurringProcessor_DifferentCutoffsSerialize(t *testing.T) {
	ctx := context.Background()
	store := &overlapStore{Store: memory.New()}
	rule, _ := store.CreateEntry(ctx, recurring(core.Income, 1000, core.Daily, core.NewDate(2025, 3, 1)))
	p := NewRecurringProcessor(store, ProcessorConfig{Clock: newTestClock(2025, 3, 10).Now})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := p.ReconcileParent(ctx, rule, core.NewDate(2025, 3, 3+i)); err != nil {
				t.Errorf("ReconcileParent() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if store.maxActive != 1 {
		t.Errorf("concurrent lookups = %d, want 1", store.maxActive)
	}
	if dates, _ := store.OccurrenceDates(ctx, rule.ID); len(dates) != 10 {
		t.Errorf("occurrences = %d, want 10", len(dates))
	}
}

func TestRecurringProcessor_SkipsDisabledRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, newTestClock(2025, 3, 10))
	rule := recurring(core.Expense, 500, core.Weekly, core.NewDate(2025, 2, 1))
	rule.RecurringDisabled = true
	seeded := seedRule(t, f, rule)

	if n, err := f.processor.ReconcileAll(ctx); err != nil || n != 0 {
		t.Errorf("ReconcileAll() = %d, %v, want 0, nil", n, err)
	}
	if dates, _ := f.store.OccurrenceDates(ctx, seeded.ID); len(dates) != 0 {
		t.Errorf("disabled rule produced %v", dates)
	}
}

// conflictOnce fails the first InsertOccurrences with a conflict.
type conflictOnce struct {
	*memory.Store
	mu     sync.Mutex
	failed bool
}

func (s *conflictOnce) InsertOccurrences(ctx context.Context, parent core.Entry, dates []core.Date) (int, error) {
	s.mu.Lock()
	first := !s.failed
	s.failed = true
	s.mu.Unlock()
	if first {
		return 0, &core.ConflictError{Resource: "entry", ID: parent.ID, Err: errors.New("database is locked")}
	}
	return s.Store.InsertOccurrences(ctx, parent, dates)
}

func TestRecurringProcessor_RetriesConflictOnce(t *testing.T) {
	ctx := context.Background()
	store := &conflictOnce{Store: memory.New()}
	rule, _ := store.CreateEntry(ctx, recurring(core.Expense, 700, core.Monthly, core.NewDate(2025, 1, 15)))
	clock := newTestClock(2025, 2, 20)
	p := NewRecurringProcessor(store, ProcessorConfig{Clock: clock.Now})

	n, err := p.ReconcileParent(ctx, rule, p.Today())
	if err != nil {
		t.Fatalf("ReconcileParent() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ReconcileParent() = %d, want 2", n)
	}
}

// slowStore blocks every occurrence lookup until the context ends.
type slowStore struct {
	*memory.Store
}

func (s slowStore) OccurrenceDates(ctx context.Context, _ int64) ([]core.Date, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRecurringProcessor_StoreTimeout(t *testing.T) {
	ctx := context.Background()
	store := slowStore{Store: memory.New()}
	rule, _ := store.CreateEntry(ctx, recurring(core.Expense, 700, core.Monthly, core.NewDate(2025, 1, 15)))
	clock := newTestClock(2025, 2, 20)
	p := NewRecurringProcessor(store, ProcessorConfig{Clock: clock.Now, StoreTimeout: 10 * time.Millisecond})

	_, err := p.ReconcileParent(ctx, rule, p.Today())
	if !errors.Is(err, core.ErrStoreUnavailable) {
		t.Fatalf("ReconcileParent() error = %v, want store unavailable", err)
	}
	if !core.IsRetryable(err) {
		t.Error("timeout should be retryable")
	}
}

func TestRecurringProcessor_StoreUnavailable(t *testing.T) {
	f := newFixture(t, newTestClock(2025, 2, 20))
	f.store.FailWith(&core.StoreUnavailableError{Op: "list", Err: errors.New("connection refused")})

	if _, err := f.processor.ReconcileAll(context.Background()); !errors.Is(err, core.ErrStoreUnavailable) {
		t.Errorf("ReconcileAll() error = %v, want store unavailable", err)
	}
}
