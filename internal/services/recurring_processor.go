package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/recurrence"
	"cashflow/internal/storage"
)

// RecurringProcessor materializes the occurrences of recurring rules.
//
// Reconcile-then-insert runs at most once at a time per parent inside the
// process: callers with the same cutoff share one run, callers with
// different cutoffs queue on the parent's lock. Across processes the
// store's unique (parent, date) index keeps a concurrent duplicate from
// being inserted twice.
type RecurringProcessor struct {
	store     storage.EntryStore
	publisher Publisher
	purgers   []Purger
	clock     Clock
	timeout   time.Duration
	group     singleflight.Group
	locks     sync.Map // parent id -> chan struct{}
}

type ProcessorConfig struct {
	Clock        Clock
	StoreTimeout time.Duration
	Publisher    Publisher
	Purgers      []Purger
}

func NewRecurringProcessor(store storage.EntryStore, cfg ProcessorConfig) *RecurringProcessor {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &RecurringProcessor{
		store:     store,
		publisher: cfg.Publisher,
		purgers:   cfg.Purgers,
		clock:     cfg.Clock,
		timeout:   cfg.StoreTimeout,
	}
}

// Today is the processor clock's current date.
func (p *RecurringProcessor) Today() core.Date {
	return p.clock.today()
}

// ReconcileParent materializes every occurrence of parent due on or before
// cutoff and returns how many were inserted. A conflict is retried once.
func (p *RecurringProcessor) ReconcileParent(ctx context.Context, parent core.Entry, cutoff core.Date) (int, error) {
	key := strconv.FormatInt(parent.ID, 10) + "@" + cutoff.String()
	v, err, _ := p.group.Do(key, func() (any, error) {
		unlock, err := p.lock(ctx, parent.ID)
		if err != nil {
			return 0, err
		}
		defer unlock()

		n, err := p.reconcileOnce(ctx, parent, cutoff)
		if errors.Is(err, core.ErrConflict) {
			slog.WarnContext(ctx, "Reconcile conflict, retrying",
				applog.FieldParentID, parent.ID,
				applog.FieldError, err)
			n, err = p.reconcileOnce(ctx, parent, cutoff)
		}
		return n, err
	})
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

// lock acquires the parent's slot or gives up when ctx ends.
func (p *RecurringProcessor) lock(ctx context.Context, parentID int64) (func(), error) {
	v, _ := p.locks.LoadOrStore(parentID, make(chan struct{}, 1))
	slot := v.(chan struct{})
	select {
	case slot <- struct{}{}:
		return func() { <-slot }, nil
	case <-ctx.Done():
		return nil, &core.StoreUnavailableError{Op: "reconcile lock", Err: ctx.Err()}
	}
}

func (p *RecurringProcessor) reconcileOnce(ctx context.Context, parent core.Entry, cutoff core.Date) (int, error) {
	dates, err := call(ctx, p.timeout, "occurrence dates", func(ctx context.Context) ([]core.Date, error) {
		return p.store.OccurrenceDates(ctx, parent.ID)
	})
	if err != nil {
		return 0, fmt.Errorf("load occurrences of %d: %w", parent.ID, err)
	}

	res, err := recurrence.Reconcile(parent, dates, cutoff)
	if err != nil {
		return 0, err
	}
	if len(res.Extra) > 0 {
		slog.WarnContext(ctx, "Occurrences off the recurrence grid",
			applog.FieldParentID, parent.ID,
			"dates", res.Extra)
	}
	if len(res.OccurrencesToCreate) == 0 {
		return 0, nil
	}

	n, err := call(ctx, p.timeout, "insert occurrences", func(ctx context.Context) (int, error) {
		return p.store.InsertOccurrences(ctx, parent, res.OccurrencesToCreate)
	})
	if err != nil {
		return 0, fmt.Errorf("insert occurrences of %d: %w", parent.ID, err)
	}
	if n == 0 {
		return 0, nil
	}

	years := make([]int, 0, len(res.OccurrencesToCreate))
	for _, d := range res.OccurrencesToCreate {
		years = append(years, d.Year())
	}
	purge(ctx, p.purgers)
	publish(ctx, p.publisher, amqp.NewEntryChangedMessage(parent.ID, amqp.ActionMaterialized, years...))

	slog.InfoContext(ctx, "Occurrences materialized",
		applog.FieldParentID, parent.ID,
		applog.FieldOccurrences, n,
		applog.FieldAmountCents, parent.Amount.Cents,
		applog.FieldWindow, core.Window(res.OccurrencesToCreate[0], res.OccurrencesToCreate[len(res.OccurrencesToCreate)-1]))
	return n, nil
}

// ReconcileAll materializes due occurrences of every enabled rule up to
// today. Every parent is attempted; the failures are returned joined.
func (p *RecurringProcessor) ReconcileAll(ctx context.Context) (int, error) {
	enabled := false
	parents, err := call(ctx, p.timeout, "list rules", func(ctx context.Context) ([]core.Entry, error) {
		return p.store.ListEntries(ctx, storage.EntryQuery{Scope: storage.ScopeParents, Disabled: &enabled})
	})
	if err != nil {
		return 0, fmt.Errorf("list recurring rules: %w", err)
	}

	today := p.Today()
	total := 0
	var errs []error
	for _, parent := range parents {
		n, err := p.ReconcileParent(ctx, parent, today)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to reconcile recurring rule",
				applog.FieldParentID, parent.ID,
				applog.FieldError, err,
				applog.FieldErrorType, applog.ErrorType(err))
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if len(errs) > 0 {
		return total, errors.Join(errs...)
	}
	if total > 0 {
		slog.InfoContext(ctx, "Recurring rules reconciled",
			"rules", len(parents),
			applog.FieldOccurrences, total)
	}
	return total, nil
}
