package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
	"cashflow/internal/storage"
)

// EntryService orchestrates entry writes: validation, persistence, cache
// purge, immediate materialization of new rules and change events.
type EntryService struct {
	store     storage.EntryStore
	processor *RecurringProcessor
	publisher Publisher
	purgers   []Purger
	clock     Clock
	timeout   time.Duration
}

func NewEntryService(store storage.EntryStore, processor *RecurringProcessor, cfg ProcessorConfig) *EntryService {
	if cfg.Clock == nil {
		cfg.Clock = SystemClock
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = DefaultStoreTimeout
	}
	return &EntryService{
		store:     store,
		processor: processor,
		publisher: cfg.Publisher,
		purgers:   cfg.Purgers,
		clock:     cfg.Clock,
		timeout:   cfg.StoreTimeout,
	}
}

func normalize(e *core.Entry) {
	if e.Currency == "" {
		e.Currency = core.DefaultCurrency
	}
	// A rule's interval is validated as given; 0 is rejected.
	if !e.IsRecurring {
		e.RecurringType = ""
		e.RecurringBaseInterval = 1
		e.RecurringDisabled = false
	}
}

// Create stores a standalone entry or a recurring rule. A rule's
// occurrences due today or earlier are materialized right away.
func (s *EntryService) Create(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.TransactionID != nil {
		return core.Entry{}, core.Invalid("transactionId", "occurrences are created by reconciliation only")
	}
	e.ID = 0
	normalize(&e)
	if err := e.ValidateRule(s.clock()); err != nil {
		return core.Entry{}, err
	}

	created, err := call(ctx, s.timeout, "create entry", func(ctx context.Context) (core.Entry, error) {
		return s.store.CreateEntry(ctx, e)
	})
	if err != nil {
		return core.Entry{}, fmt.Errorf("create entry: %w", err)
	}

	purge(ctx, s.purgers)
	if !created.IsRecurring {
		publish(ctx, s.publisher, amqp.NewEntryChangedMessage(created.ID, amqp.ActionCreated, created.CreatedAt.Year()))
	} else if s.processor != nil {
		if _, err := s.processor.ReconcileParent(ctx, created, s.clock.today()); err != nil {
			// The rule is stored; the next read reconciles again.
			slog.WarnContext(ctx, "Initial materialization failed",
				applog.FieldParentID, created.ID,
				applog.FieldError, err)
		}
	}

	slog.InfoContext(ctx, "Entry created", applog.NewFields().WithEntry(created).ToSlice()...)
	return created, nil
}

func (s *EntryService) Get(ctx context.Context, id int64) (core.Entry, error) {
	return call(ctx, s.timeout, "get entry", func(ctx context.Context) (core.Entry, error) {
		return s.store.GetEntry(ctx, id)
	})
}

// Update rewrites an entry. Whether it is a rule and which rule an
// occurrence belongs to are kept from the stored entry. A rule's schedule
// cannot change once it has occurrences.
func (s *EntryService) Update(ctx context.Context, e core.Entry) (core.Entry, error) {
	current, err := s.Get(ctx, e.ID)
	if err != nil {
		return core.Entry{}, err
	}
	e.IsRecurring = current.IsRecurring
	e.TransactionID = current.TransactionID
	normalize(&e)
	if err := e.Validate(); err != nil {
		return core.Entry{}, err
	}

	if current.IsRecurring && scheduleChanged(current, e) {
		dates, err := call(ctx, s.timeout, "occurrence dates", func(ctx context.Context) ([]core.Date, error) {
			return s.store.OccurrenceDates(ctx, e.ID)
		})
		if err != nil {
			return core.Entry{}, fmt.Errorf("load occurrences of %d: %w", e.ID, err)
		}
		if len(dates) > 0 {
			return core.Entry{}, core.Invalid("recurringType", "the schedule of a rule with occurrences cannot change")
		}
		if err := e.ValidateRule(s.clock()); err != nil {
			return core.Entry{}, err
		}
	}

	updated, err := call(ctx, s.timeout, "update entry", func(ctx context.Context) (core.Entry, error) {
		return s.store.UpdateEntry(ctx, e)
	})
	if err != nil {
		return core.Entry{}, fmt.Errorf("update entry %d: %w", e.ID, err)
	}

	purge(ctx, s.purgers)
	publish(ctx, s.publisher, amqp.NewEntryChangedMessage(updated.ID, amqp.ActionUpdated,
		current.CreatedAt.Year(), updated.CreatedAt.Year()))
	return updated, nil
}

func scheduleChanged(a, b core.Entry) bool {
	return a.RecurringType != b.RecurringType ||
		a.RecurringBaseInterval != b.RecurringBaseInterval ||
		a.CreatedAt.String() != b.CreatedAt.String()
}

// Delete soft-deletes an entry. Deleting a rule stops its generation;
// its occurrences stay.
func (s *EntryService) Delete(ctx context.Context, id int64) error {
	current, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if _, err := call(ctx, s.timeout, "delete entry", func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.store.DeleteEntry(ctx, id)
	}); err != nil {
		return fmt.Errorf("delete entry %d: %w", id, err)
	}

	purge(ctx, s.purgers)
	publish(ctx, s.publisher, amqp.NewEntryChangedMessage(id, amqp.ActionDeleted, current.CreatedAt.Year()))
	return nil
}

// SetDisabled pauses or resumes a rule. Resuming materializes the
// occurrences missed while it was paused.
func (s *EntryService) SetDisabled(ctx context.Context, id int64, disabled bool) (core.Entry, error) {
	rule, err := call(ctx, s.timeout, "set recurring disabled", func(ctx context.Context) (core.Entry, error) {
		return s.store.SetRecurringDisabled(ctx, id, disabled)
	})
	if err != nil {
		return core.Entry{}, err
	}
	purge(ctx, s.purgers)

	if !disabled && s.processor != nil {
		if _, err := s.processor.ReconcileParent(ctx, rule, s.clock.today()); err != nil {
			return rule, fmt.Errorf("resume rule %d: %w", id, err)
		}
	}
	slog.InfoContext(ctx, "Recurring rule toggled",
		applog.FieldParentID, id,
		"disabled", disabled)
	return rule, nil
}
