package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"cashflow/internal/core"
	"cashflow/internal/paging"
)

// Category references are weak: a reference to a deleted category reads as NULL.
const entrySelect = `SELECT e.id, e.type, e.amount_cents, e.currency, e.description,
	CASE WHEN c.id IS NULL THEN NULL ELSE e.category_id END,
	e.created_at, e.is_recurring, e.recurring_type, e.recurring_base_interval,
	e.recurring_disabled, e.transaction_id
FROM entries e
LEFT JOIN categories c ON c.id = e.category_id`

type queryBuilder struct {
	where []string
	args  []any
}

func (b *queryBuilder) add(cond string, args ...any) {
	b.where = append(b.where, cond)
	b.args = append(b.args, args...)
}

func (b *queryBuilder) clause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

// entryFilter renders q's constraints except ordering and limit.
func entryFilter(q EntryQuery) *queryBuilder {
	b := &queryBuilder{}
	b.add("e.deleted_at IS NULL")
	switch q.Scope {
	case ScopeParents:
		b.add("e.is_recurring = ?", true)
		if q.Disabled != nil {
			b.add("e.recurring_disabled = ?", *q.Disabled)
		}
	default:
		b.add("e.is_recurring = ?", false)
	}

	p := q.Predicate
	if p.MinAmount != nil {
		b.add("e.amount_cents >= ?", *p.MinAmount)
	}
	if p.MaxAmount != nil {
		b.add("e.amount_cents <= ?", *p.MaxAmount)
	}
	if p.From != nil {
		b.add("e.created_at >= ?", p.From.String())
	}
	if p.To != nil {
		b.add("e.created_at <= ?", p.To.String())
	}
	if p.Type != nil {
		b.add("e.type = ?", string(*p.Type))
	}
	if p.Search != "" {
		b.add(`LOWER(e.description) LIKE ? ESCAPE '\'`, "%"+escapeLike(p.Search)+"%")
	}
	if len(p.CategoryIDs) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(p.CategoryIDs)), ",")
		args := make([]any, len(p.CategoryIDs))
		for i, id := range p.CategoryIDs {
			args[i] = id
		}
		b.add("c.id IS NOT NULL AND e.category_id IN ("+marks+")", args...)
	}
	return b
}

// keyset adds the "strictly after boundary" predicate for o.
func (b *queryBuilder) keyset(o paging.Order, after paging.Boundary) {
	col, op := orderColumn(o), "<"
	if !o.Desc {
		op = ">"
	}
	var key any = after.Key
	if o.Key == paging.KeyCreatedAt {
		key = paging.DateOfKey(after.Key).String()
	}
	b.add(fmt.Sprintf("(%s %s ? OR (%s = ? AND e.id %s ?))", col, op, col, op), key, key, after.ID)
}

func orderColumn(o paging.Order) string {
	if o.Key == paging.KeyAmount {
		return "e.amount_cents"
	}
	return "e.created_at"
}

func orderBy(o paging.Order) string {
	dir := "ASC"
	if o.Desc {
		dir = "DESC"
	}
	return fmt.Sprintf(" ORDER BY %s %s, e.id %s", orderColumn(o), dir, dir)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(s rowScanner) (core.Entry, error) {
	var (
		e          core.Entry
		typ        string
		currency   string
		recurring  string
		categoryID sql.NullInt64
		parentID   sql.NullInt64
		createdAt  sqlDate
	)
	err := s.Scan(&e.ID, &typ, &e.Amount.Cents, &currency, &e.Description, &categoryID,
		&createdAt, &e.IsRecurring, &recurring, &e.RecurringBaseInterval,
		&e.RecurringDisabled, &parentID)
	if err != nil {
		return core.Entry{}, err
	}
	e.Type = core.TransactionType(typ)
	e.Currency = core.Currency(currency)
	e.RecurringType = core.RecurringType(recurring)
	e.CreatedAt = createdAt.Date
	if categoryID.Valid {
		id := categoryID.Int64
		e.CategoryID = &id
	}
	if parentID.Valid {
		id := parentID.Int64
		e.TransactionID = &id
	}
	return e, nil
}

// sqlDate scans DATE columns from Postgres (time.Time) and TEXT columns
// from SQLite (string) alike.
type sqlDate struct {
	core.Date
	Valid bool
}

func (d *sqlDate) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		d.Date, d.Valid = core.Date{}, false
		return nil
	case time.Time:
		d.Date, d.Valid = core.DateOf(v.UTC()), true
		return nil
	case string:
		return d.parse(v)
	case []byte:
		return d.parse(string(v))
	default:
		return fmt.Errorf("scan date: unsupported type %T", src)
	}
}

func (d *sqlDate) parse(s string) error {
	if len(s) > len(core.DateLayout) {
		s = s[:len(core.DateLayout)]
	}
	parsed, err := core.ParseDate(s)
	if err != nil {
		return fmt.Errorf("scan date %q: %w", s, err)
	}
	d.Date, d.Valid = parsed, true
	return nil
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableDate(d *core.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
