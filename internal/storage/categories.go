package storage

import (
	"context"
	"database/sql"
	"errors"

	"cashflow/internal/core"
)

const categorySelect = `SELECT c.id, c.name, c.color, c.icon, c.created_at,
	(SELECT COUNT(*) FROM entries e WHERE e.category_id = c.id AND e.deleted_at IS NULL)
FROM categories c`

func scanCategory(s rowScanner) (core.Category, error) {
	var (
		c         core.Category
		color     string
		createdAt sqlDate
	)
	if err := s.Scan(&c.ID, &c.Name, &color, &c.Icon, &createdAt, &c.UsageCount); err != nil {
		return core.Category{}, err
	}
	c.Color = core.Color(color)
	c.CreatedAt = createdAt.Date
	return c, nil
}

func (r *SQLRepository) CreateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	err := r.db.QueryRowContext(ctx, r.rebind(
		`INSERT INTO categories (name, color, icon, created_at) VALUES (?, ?, ?, ?) RETURNING id`),
		c.Name, string(c.Color), c.Icon, c.CreatedAt.String()).Scan(&c.ID)
	if err != nil {
		return core.Category{}, classify("create category", err)
	}
	c.UsageCount = 0
	return c, nil
}

func (r *SQLRepository) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx, r.rebind(categorySelect+" WHERE c.id = ?"), id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: id}
	}
	if err != nil {
		return core.Category{}, classify("get category", err)
	}
	return c, nil
}

func (r *SQLRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx, categorySelect+" ORDER BY c.name, c.id")
	if err != nil {
		return nil, classify("list categories", err)
	}
	defer rows.Close()

	out := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, classify("scan category", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("list categories", err)
	}
	return out, nil
}

func (r *SQLRepository) UpdateCategory(ctx context.Context, c core.Category) (core.Category, error) {
	res, err := r.exec(ctx, "update category",
		`UPDATE categories SET name = ?, color = ?, icon = ? WHERE id = ?`,
		c.Name, string(c.Color), c.Icon, c.ID)
	if err != nil {
		return core.Category{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.Category{}, &core.NotFoundError{Resource: "category", ID: c.ID}
	}
	return r.GetCategory(ctx, c.ID)
}

func (r *SQLRepository) DeleteCategory(ctx context.Context, id int64) error {
	res, err := r.exec(ctx, "delete category", `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &core.NotFoundError{Resource: "category", ID: id}
	}
	return nil
}
