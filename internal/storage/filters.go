package storage

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"

	"cashflow/internal/core"
)

const filterSelect = `SELECT id, title, icon, min_price, max_price, date_from, date_to,
	search_text, transaction_type, sort_option, category_ids
FROM filters`

func scanFilter(s rowScanner) (core.Filter, error) {
	var (
		f           core.Filter
		minPrice    sql.NullInt64
		maxPrice    sql.NullInt64
		from, to    sqlDate
		typ         sql.NullString
		sortOption  string
		categoryIDs string
	)
	err := s.Scan(&f.ID, &f.Title, &f.Icon, &minPrice, &maxPrice, &from, &to,
		&f.Spec.SearchText, &typ, &sortOption, &categoryIDs)
	if err != nil {
		return core.Filter{}, err
	}
	if minPrice.Valid {
		f.Spec.MinPrice = &minPrice.Int64
	}
	if maxPrice.Valid {
		f.Spec.MaxPrice = &maxPrice.Int64
	}
	if from.Valid {
		f.Spec.DateFrom = &from.Date
	}
	if to.Valid {
		f.Spec.DateTo = &to.Date
	}
	if typ.Valid && typ.String != "" {
		t := core.TransactionType(typ.String)
		f.Spec.TransactionType = &t
	}
	f.Spec.SortOption = core.SortOption(sortOption)
	f.Spec.CategoryIDs = splitIDs(categoryIDs)
	return f, nil
}

func filterArgs(f core.Filter) []any {
	var typ any
	if f.Spec.TransactionType != nil {
		typ = string(*f.Spec.TransactionType)
	}
	sortOption := f.Spec.SortOption
	if sortOption == "" {
		sortOption = core.NewestFirst
	}
	return []any{
		f.Title, f.Icon,
		nullableInt(f.Spec.MinPrice), nullableInt(f.Spec.MaxPrice),
		nullableDate(f.Spec.DateFrom), nullableDate(f.Spec.DateTo),
		f.Spec.SearchText, typ, string(sortOption), joinIDs(f.Spec.CategoryIDs),
	}
}

func (r *SQLRepository) CreateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	err := r.db.QueryRowContext(ctx, r.rebind(`INSERT INTO filters
		(title, icon, min_price, max_price, date_from, date_to, search_text, transaction_type, sort_option, category_ids)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`), filterArgs(f)...).Scan(&f.ID)
	if err != nil {
		return core.Filter{}, classify("create filter", err)
	}
	return f, nil
}

func (r *SQLRepository) GetFilter(ctx context.Context, id int64) (core.Filter, error) {
	f, err := scanFilter(r.db.QueryRowContext(ctx, r.rebind(filterSelect+" WHERE id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Filter{}, &core.NotFoundError{Resource: "filter", ID: id}
	}
	if err != nil {
		return core.Filter{}, classify("get filter", err)
	}
	return f, nil
}

func (r *SQLRepository) ListFilters(ctx context.Context) ([]core.Filter, error) {
	rows, err := r.db.QueryContext(ctx, filterSelect+" ORDER BY title, id")
	if err != nil {
		return nil, classify("list filters", err)
	}
	defer rows.Close()

	out := []core.Filter{}
	for rows.Next() {
		f, err := scanFilter(rows)
		if err != nil {
			return nil, classify("scan filter", err)
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list filters", err)
	}
	return out, nil
}

func (r *SQLRepository) UpdateFilter(ctx context.Context, f core.Filter) (core.Filter, error) {
	args := append(filterArgs(f), f.ID)
	res, err := r.exec(ctx, "update filter", `UPDATE filters SET
		title = ?, icon = ?, min_price = ?, max_price = ?, date_from = ?, date_to = ?,
		search_text = ?, transaction_type = ?, sort_option = ?, category_ids = ?
		WHERE id = ?`, args...)
	if err != nil {
		return core.Filter{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Filter{}, &core.NotFoundError{Resource: "filter", ID: f.ID}
	}
	return r.GetFilter(ctx, f.ID)
}

func (r *SQLRepository) DeleteFilter(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, "delete filter", `DELETE FROM filters WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Resource: "filter", ID: id}
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

func splitIDs(s string) []int64 {
	if s == "" {
		return nil
	}
	var out []int64
	for _, p := range strings.Split(s, ",") {
		if id, err := strconv.ParseInt(p, 10, 64); err == nil {
			out = append(out, id)
		}
	}
	return out
}
