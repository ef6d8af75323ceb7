package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/paging"
)

func (r *SQLRepository) CreateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	if e.TransactionID != nil {
		return core.Entry{}, core.Invalid("transactionId", "occurrences are created by reconciliation only")
	}
	row := r.db.QueryRowContext(ctx, r.rebind(`INSERT INTO entries
		(type, amount_cents, currency, description, category_id, created_at,
		 is_recurring, recurring_type, recurring_base_interval, recurring_disabled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`),
		string(e.Type), e.Amount.Cents, string(e.Currency), e.Description, nullableInt(e.CategoryID),
		e.CreatedAt.String(), e.IsRecurring, string(e.RecurringType), max(e.RecurringBaseInterval, 1), e.RecurringDisabled)
	if err := row.Scan(&e.ID); err != nil {
		return core.Entry{}, classify("create entry", err)
	}
	if e.RecurringBaseInterval < 1 {
		e.RecurringBaseInterval = 1
	}

	slog.InfoContext(ctx, "Entry saved",
		"id", e.ID,
		"type", e.Type,
		"amount_cents", e.Amount.Cents,
		"recurring", e.IsRecurring)
	return e, nil
}

func (r *SQLRepository) GetEntry(ctx context.Context, id int64) (core.Entry, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(entrySelect+" WHERE e.id = ? AND e.deleted_at IS NULL"), id)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Entry{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	if err != nil {
		return core.Entry{}, classify("get entry", err)
	}
	return e, nil
}

// UpdateEntry rewrites the mutable fields. Whether an entry is a rule and
// which parent an occurrence belongs to never change.
func (r *SQLRepository) UpdateEntry(ctx context.Context, e core.Entry) (core.Entry, error) {
	res, err := r.exec(ctx, "update entry", `UPDATE entries SET
		type = ?, amount_cents = ?, currency = ?, description = ?, category_id = ?, created_at = ?,
		recurring_type = ?, recurring_base_interval = ?, recurring_disabled = ?
		WHERE id = ? AND deleted_at IS NULL`,
		string(e.Type), e.Amount.Cents, string(e.Currency), e.Description, nullableInt(e.CategoryID),
		e.CreatedAt.String(), string(e.RecurringType), max(e.RecurringBaseInterval, 1), e.RecurringDisabled, e.ID)
	if err != nil {
		return core.Entry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Entry{}, &core.NotFoundError{Resource: "entry", ID: e.ID}
	}
	return r.GetEntry(ctx, e.ID)
}

// DeleteEntry soft-deletes the entry. A deleted rule is also disabled so
// it never generates again.
func (r *SQLRepository) DeleteEntry(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, "delete entry",
		`UPDATE entries SET deleted_at = ?, recurring_disabled = (recurring_disabled OR is_recurring)
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Resource: "entry", ID: id}
	}
	slog.InfoContext(ctx, "Entry deleted", "id", id)
	return nil
}

func (r *SQLRepository) SetRecurringDisabled(ctx context.Context, id int64, disabled bool) (core.Entry, error) {
	res, err := r.exec(ctx, "set recurring disabled",
		`UPDATE entries SET recurring_disabled = ? WHERE id = ? AND is_recurring = ? AND deleted_at IS NULL`,
		disabled, id, true)
	if err != nil {
		return core.Entry{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		e, err := r.GetEntry(ctx, id)
		if err != nil {
			return core.Entry{}, err
		}
		if !e.IsRecurring {
			return core.Entry{}, core.Invalid("id", fmt.Sprintf("entry %d is not a recurring rule", id))
		}
		return e, nil
	}
	return r.GetEntry(ctx, id)
}

func (r *SQLRepository) ListEntries(ctx context.Context, q EntryQuery) ([]core.Entry, error) {
	order := q.Predicate.Order()
	b := entryFilter(q)
	if q.After != nil {
		b.keyset(order, *q.After)
	}
	query := entrySelect + b.clause() + orderBy(order)
	args := b.args
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, classify("list entries", err)
	}
	defer rows.Close()

	out := []core.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, classify("scan entry", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list entries", err)
	}
	return out, nil
}

func (r *SQLRepository) CountEntries(ctx context.Context, q EntryQuery) (int, error) {
	b := entryFilter(q)
	query := "SELECT COUNT(*) FROM entries e LEFT JOIN categories c ON c.id = e.category_id" + b.clause()
	var n int
	if err := r.db.QueryRowContext(ctx, r.rebind(query), b.args...).Scan(&n); err != nil {
		return 0, classify("count entries", err)
	}
	return n, nil
}

func (r *SQLRepository) CursorBoundary(ctx context.Context, id int64, o paging.Order) (paging.Boundary, error) {
	var (
		createdAt sqlDate
		amount    int64
	)
	err := r.db.QueryRowContext(ctx, r.rebind(`SELECT created_at, amount_cents FROM entries WHERE id = ?`), id).
		Scan(&createdAt, &amount)
	if errors.Is(err, sql.ErrNoRows) {
		return paging.Boundary{}, &core.NotFoundError{Resource: "entry", ID: id}
	}
	if err != nil {
		return paging.Boundary{}, classify("cursor boundary", err)
	}
	e := core.Entry{ID: id, CreatedAt: createdAt.Date, Amount: core.Money{Cents: amount}}
	return o.BoundaryOf(e), nil
}

func (r *SQLRepository) OccurrenceDates(ctx context.Context, parentID int64) ([]core.Date, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(
		`SELECT created_at FROM entries WHERE transaction_id = ? ORDER BY created_at`), parentID)
	if err != nil {
		return nil, classify("occurrence dates", err)
	}
	defer rows.Close()

	var out []core.Date
	for rows.Next() {
		var d sqlDate
		if err := rows.Scan(&d); err != nil {
			return nil, classify("scan occurrence date", err)
		}
		out = append(out, d.Date)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("occurrence dates", err)
	}
	return out, nil
}

// InsertOccurrences writes all children in one transaction. The unique
// (transaction_id, created_at) index turns a concurrent duplicate into a
// skipped row rather than a second occurrence.
func (r *SQLRepository) InsertOccurrences(ctx context.Context, parent core.Entry, dates []core.Date) (int, error) {
	if len(dates) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, classify("begin insert occurrences", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, r.rebind(`INSERT INTO entries
		(type, amount_cents, currency, description, category_id, created_at,
		 is_recurring, recurring_type, recurring_base_interval, recurring_disabled, transaction_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, '', 1, ?, ?)
		ON CONFLICT DO NOTHING`))
	if err != nil {
		return 0, classify("prepare insert occurrences", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, d := range dates {
		res, err := stmt.ExecContext(ctx, string(parent.Type), parent.Amount.Cents, string(parent.Currency),
			parent.Description, nullableInt(parent.CategoryID), d.String(), false, false, parent.ID)
		if err != nil {
			return 0, classify("insert occurrence", err)
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}
	if err := tx.Commit(); err != nil {
		return 0, classify("commit occurrences", err)
	}
	return inserted, nil
}
