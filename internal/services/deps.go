package services

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"cashflow/internal/amqp"
	"cashflow/internal/core"
	applog "cashflow/internal/log"
)

// DefaultStoreTimeout bounds each store call when none is configured.
const DefaultStoreTimeout = 5 * time.Second

// Clock returns the current time. Services never read time.Now directly.
type Clock func() time.Time

// SystemClock is the wall clock.
func SystemClock() time.Time { return time.Now() }

func (c Clock) today() core.Date {
	return core.DateOf(c())
}

// Publisher announces entry changes. *amqp.Client implements it.
type Publisher interface {
	PublishEntryChanged(ctx context.Context, msg *amqp.EntryChangedMessage) error
}

// Purger drops cached results after a write.
type Purger interface {
	Purge(ctx context.Context)
}

// call runs one store operation under timeout. A deadline or cancellation
// that the store did not already classify becomes StoreUnavailableError.
func call[T any](ctx context.Context, timeout time.Duration, op string, fn func(context.Context) (T, error)) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	v, err := fn(ctx)
	if err != nil && !errors.Is(err, core.ErrStoreUnavailable) &&
		(errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = &core.StoreUnavailableError{Op: op, Err: err}
	}
	return v, err
}

// publish is best effort: the write already happened, so a broker failure
// is logged and dropped.
func publish(ctx context.Context, p Publisher, msg *amqp.EntryChangedMessage) {
	if p == nil {
		return
	}
	if err := p.PublishEntryChanged(ctx, msg); err != nil {
		slog.WarnContext(ctx, "Failed to publish entry change",
			applog.FieldMessageID, msg.MessageID,
			applog.FieldEntryID, msg.EntryID,
			applog.FieldError, err)
	}
}

func purge(ctx context.Context, purgers []Purger) {
	for _, p := range purgers {
		p.Purge(ctx)
	}
}
