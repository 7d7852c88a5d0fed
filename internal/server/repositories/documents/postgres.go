// Package documents persists user documents in PostgreSQL.
package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// PostgresRepository implements Repository over a dbx.DBTX (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const selectDocument = `SELECT d.id, d.user_id, d.name, d.category, d.content, d.created_at, d.updated_at, s.token
		FROM documents d LEFT JOIN shares s ON s.document_id = d.id`

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*models.Document, error) {
	var (
		doc   models.Document
		token sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.UserID, &doc.Name, &doc.Category, &doc.Content,
		&doc.CreatedAt, &doc.UpdatedAt, &token); err != nil {
		return nil, err
	}
	if token.Valid {
		doc.ShareToken = &token.String
		doc.IsShared = true
	}
	return &doc, nil
}

// List returns the user's documents, most recently updated first.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]models.Document, error) {
	query := selectDocument + `
		WHERE d.user_id = $1
		ORDER BY d.updated_at DESC, d.id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		result = append(result, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Get(ctx context.Context, userID, id string) (*models.Document, error) {
	query := selectDocument + `
		WHERE d.user_id = $1 AND d.id = $2`

	doc, err := scanDocument(r.db.QueryRowContext(ctx, query, userID, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return doc, nil
}

// Create inserts doc with the id and timestamps it already carries.
func (r *PostgresRepository) Create(ctx context.Context, doc *models.Document) error {
	query := `
		INSERT INTO documents (id, user_id, name, name_key, category, content, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query, doc.ID, doc.UserID, doc.Name, common.NameKey(doc.Name),
		doc.Category, doc.Content, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// Update overwrites name, category, content and updated_at. CreatedAt is
// immutable.
func (r *PostgresRepository) Update(ctx context.Context, doc *models.Document) error {
	query := `
		UPDATE documents
		SET name = $3, name_key = $4, category = $5, content = $6, updated_at = $7
		WHERE user_id = $1 AND id = $2`

	res, err := r.db.ExecContext(ctx, query, doc.UserID, doc.ID, doc.Name, common.NameKey(doc.Name),
		doc.Category, doc.Content, doc.UpdatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return common.ErrConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return expectOne(res)
}

// MoveCategory relabels every document of from as to and returns how many
// moved.
func (r *PostgresRepository) MoveCategory(ctx context.Context, userID, from, to string, updatedAt time.Time) (int64, error) {
	query := `
		UPDATE documents SET category = $3, updated_at = $4
		WHERE user_id = $1 AND category = $2`

	res, err := r.db.ExecContext(ctx, query, userID, from, to, updatedAt)
	if err != nil {
		if dbx.IsUniqueViolation(err) {
			return 0, common.ErrConflict
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func (r *PostgresRepository) DeleteByCategory(ctx context.Context, userID, category string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE user_id = $1 AND category = $2`, userID, category)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	switch n {
	case 1:
		return nil
	case 0:
		return common.ErrNotFound
	default:
		return fmt.Errorf("unexpected rows affected: %d", n)
	}
}
