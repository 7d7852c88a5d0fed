// Package current persists the per-user current document pointer.
package current

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/dmitrijs2005/docsync/internal/dbx"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Get(ctx context.Context, userID string) (string, error) {
	var id sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT document_id FROM current_documents WHERE user_id = $1`, userID).Scan(&id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("db error: %w", err)
	}
	return id.String, nil
}

// Set stores documentID as current. An empty id clears it.
func (r *PostgresRepository) Set(ctx context.Context, userID, documentID string) error {
	query := `
		INSERT INTO current_documents (user_id, document_id, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (user_id)
		DO UPDATE SET document_id = EXCLUDED.document_id, updated_at = EXCLUDED.updated_at`

	var id sql.NullString
	if documentID != "" {
		id = sql.NullString{String: documentID, Valid: true}
	}
	if _, err := r.db.ExecContext(ctx, query, userID, id); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
