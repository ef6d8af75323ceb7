package storage

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"

	"cashflow/internal/core"
)

// SQLite primary result codes; extended codes share the low byte.
const (
	sqliteBusy   = 5
	sqliteLocked = 6
)

// classify maps driver errors onto the core taxonomy: lock contention and
// serialization failures become ConflictError, timeouts and dropped
// connections become StoreUnavailableError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, core.ErrValidation) || errors.Is(err, core.ErrNotFound) ||
		errors.Is(err, core.ErrConflict) || errors.Is(err, core.ErrStoreUnavailable) {
		return err
	}

	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqliteBusy, sqliteLocked:
			return &core.ConflictError{Resource: op, Err: err}
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "55P03":
			return &core.ConflictError{Resource: op, Err: err}
		case strings.HasPrefix(pgErr.Code, "08"), pgErr.Code == "57P01":
			return &core.StoreUnavailableError{Op: op, Err: err}
		}
	}

	var netErr net.Error
	var connectErr *pgconn.ConnectError
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.As(err, &connectErr),
		errors.As(err, &netErr):
		return &core.StoreUnavailableError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
