package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
)

const selectColumns = `d.id, d.name, d.category, d.content, d.created_at, d.updated_at,
	d.share_token, d.is_shared, d.pending`

type SQLiteRepository struct {
	db dbx.DBTX
}

func NewSQLiteRepository(db dbx.DBTX) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*models.Document, error) {
	var (
		doc                  models.Document
		createdAt, updatedAt int64
		shareToken           sql.NullString
	)
	err := row.Scan(&doc.ID, &doc.Name, &doc.Category, &doc.Content, &createdAt, &updatedAt,
		&shareToken, &doc.IsShared, &doc.Pending)
	if err != nil {
		return nil, err
	}
	doc.CreatedAt = time.Unix(0, createdAt).UTC()
	doc.UpdatedAt = time.Unix(0, updatedAt).UTC()
	if shareToken.Valid {
		doc.ShareToken = &shareToken.String
	}
	return &doc, nil
}

func (r *SQLiteRepository) queryList(ctx context.Context, query string, args ...any) ([]models.Document, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select documents: %w", err)
	}
	defer rows.Close()

	result := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		result = append(result, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate documents: %w", err)
	}
	return result, nil
}

func (r *SQLiteRepository) Get(ctx context.Context, id string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM documents d WHERE d.id = ?`, id)
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", id, err)
	}
	return doc, nil
}

// List returns all documents ordered by category position, then name.
func (r *SQLiteRepository) List(ctx context.Context) ([]models.Document, error) {
	return r.queryList(ctx, `SELECT `+selectColumns+` FROM documents d
		LEFT JOIN categories c ON c.name = d.category
		ORDER BY COALESCE(c.position, 1 << 30), d.category, d.name_key, d.id`)
}

func (r *SQLiteRepository) ListByCategory(ctx context.Context, category string) ([]models.Document, error) {
	return r.queryList(ctx, `SELECT `+selectColumns+` FROM documents d
		WHERE d.category = ? ORDER BY d.name_key, d.id`, category)
}

// FindByName looks up the document holding (name, category), comparing
// names by NameKey.
func (r *SQLiteRepository) FindByName(ctx context.Context, category, name string) (*models.Document, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM documents d
		WHERE d.category = ? AND d.name_key = ?`, category, NameKey(name))
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find document by name: %w", err)
	}
	return doc, nil
}

// Upsert writes doc as given, timestamps and pending flag included.
func (r *SQLiteRepository) Upsert(ctx context.Context, doc *models.Document) error {
	query := `INSERT INTO documents
			(id, name, name_key, category, content, created_at, updated_at, share_token, is_shared, pending)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			name_key = excluded.name_key,
			category = excluded.category,
			content = excluded.content,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			share_token = excluded.share_token,
			is_shared = excluded.is_shared,
			pending = excluded.pending`

	var shareToken any
	if doc.ShareToken != nil {
		shareToken = *doc.ShareToken
	}

	_, err := r.db.ExecContext(ctx, query, doc.ID, doc.Name, NameKey(doc.Name), doc.Category, doc.Content,
		doc.CreatedAt.UnixNano(), doc.UpdatedAt.UnixNano(), shareToken, doc.IsShared, doc.Pending)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.NewValidationError("name", common.ErrDuplicate)
		}
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
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

// Relabel replaces a local id with the server-assigned one.
func (r *SQLiteRepository) Relabel(ctx context.Context, oldID, newID string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET id = ? WHERE id = ?`, newID, oldID)
	if err != nil {
		return fmt.Errorf("failed to relabel document: %w", err)
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

// MarkSynced clears the pending flag when the stored version is still the
// one that was pushed. It reports whether the flag was cleared.
func (r *SQLiteRepository) MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET pending = 0 WHERE id = ? AND updated_at = ?`,
		id, updatedAt.UnixNano())
	if err != nil {
		return false, fmt.Errorf("failed to mark document synced: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n == 1, nil
}

// MoveCategory reassigns every document of from to to, bumping updated_at
// and marking them pending.
func (r *SQLiteRepository) MoveCategory(ctx context.Context, from, to string, updatedAt time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `UPDATE documents SET category = ?, updated_at = ?, pending = 1
		WHERE category = ?`, to, updatedAt.UnixNano(), from)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return 0, common.NewValidationError("category", common.ErrDuplicate)
		}
		return 0, fmt.Errorf("failed to move documents: %w", err)
	}
	return res.RowsAffected()
}

func (r *SQLiteRepository) deleteReturning(ctx context.Context, where string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `DELETE FROM documents WHERE `+where+` RETURNING id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to delete documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan deleted id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate deleted ids: %w", err)
	}
	return ids, nil
}

func (r *SQLiteRepository) DeleteByCategory(ctx context.Context, category string) ([]string, error) {
	return r.deleteReturning(ctx, `category = ?`, category)
}

// DeleteSynced removes documents that exist remotely and carry no
// unconfirmed changes.
func (r *SQLiteRepository) DeleteSynced(ctx context.Context) ([]string, error) {
	return r.deleteReturning(ctx, `pending = 0 AND substr(id, 1, ?) <> ?`,
		len(common.LocalIDPrefix), common.LocalIDPrefix)
}
