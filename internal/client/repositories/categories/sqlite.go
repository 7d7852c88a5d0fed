// Package categories persists the ordered, deduplicated category set.
package categories

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
)

type Repository interface {
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, name string) (bool, error)
	// Add appends name at the end of the set. It reports false when the
	// category already existed.
	Add(ctx context.Context, name string) (bool, error)
	Rename(ctx context.Context, oldName, newName string) error
	Delete(ctx context.Context, name string) error
	Replace(ctx context.Context, names []string) error
}

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) List(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT name FROM categories ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return names, nil
}

func (r *SQLiteRepository) Exists(ctx context.Context, name string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM categories WHERE name = ?`, name).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check category %q: %w", name, err)
	}
	return n > 0, nil
}

func (r *SQLiteRepository) Add(ctx context.Context, name string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, position)
		VALUES (?, (SELECT COALESCE(MAX(position), -1) + 1 FROM categories))
		ON CONFLICT(name) DO NOTHING`, name)
	if err != nil {
		return false, fmt.Errorf("failed to add category %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// Rename keeps the position of the renamed category.
func (r *SQLiteRepository) Rename(ctx context.Context, oldName, newName string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE categories SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.NewValidationError("category", common.ErrConflict)
		}
		return fmt.Errorf("failed to rename category %q: %w", oldName, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, name string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE name = ?`, name)
	if err != nil {
		return fmt.Errorf("failed to delete category %q: %w", name, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}

// Replace rewrites the whole set in the given order.
func (r *SQLiteRepository) Replace(ctx context.Context, names []string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories`); err != nil {
		return fmt.Errorf("failed to clear categories: %w", err)
	}
	for i, name := range names {
		if _, err := r.db.ExecContext(ctx, `INSERT INTO categories (name, position) VALUES (?, ?)
			ON CONFLICT(name) DO NOTHING`, name, i); err != nil {
			return fmt.Errorf("failed to insert category %q: %w", name, err)
		}
	}
	return nil
}
