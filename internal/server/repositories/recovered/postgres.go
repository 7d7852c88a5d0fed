// Package recovered persists server-side autosave snapshots.
package recovered

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/docsync/internal/common"
	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/models"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// List returns snapshots oldest first.
func (r *PostgresRepository) List(ctx context.Context, userID string) ([]models.RecoveredDocument, error) {
	query := `
		SELECT id, user_id, document_id, name, category, content, saved_at
		FROM recovered_documents
		WHERE user_id = $1
		ORDER BY saved_at, id`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	result := []models.RecoveredDocument{}
	for rows.Next() {
		var (
			doc   models.RecoveredDocument
			docID sql.NullString
		)
		if err := rows.Scan(&doc.ID, &doc.UserID, &docID, &doc.Name, &doc.Category, &doc.Content, &doc.SavedAt); err != nil {
			return nil, fmt.Errorf("scan error: %w", err)
		}
		doc.DocumentID = docID.String
		result = append(result, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

func (r *PostgresRepository) Create(ctx context.Context, doc *models.RecoveredDocument) error {
	query := `
		INSERT INTO recovered_documents (id, user_id, document_id, name, category, content, saved_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var docID sql.NullString
	if doc.DocumentID != "" {
		docID = sql.NullString{String: doc.DocumentID, Valid: true}
	}
	_, err := r.db.ExecContext(ctx, query, doc.ID, doc.UserID, docID, doc.Name, doc.Category, doc.Content, doc.SavedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Delete(ctx context.Context, userID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM recovered_documents WHERE user_id = $1 AND id = $2`, userID, id)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected error: %w", err)
	}
	if n == 0 {
		return common.ErrNotFound
	}
	return nil
}
