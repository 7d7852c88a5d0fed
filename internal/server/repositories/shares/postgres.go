// Package shares persists published-document records.
package shares

import (
	"context"
	"database/sql"
	"errors"
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

// Upsert stores share for its document. Re-sharing keeps a single row per
// document and replaces the token.
func (r *PostgresRepository) Upsert(ctx context.Context, userID string, share *models.Share) error {
	query := `
		INSERT INTO shares (document_id, user_id, token, storage_key)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (document_id)
		DO UPDATE SET token = EXCLUDED.token, storage_key = EXCLUDED.storage_key, created_at = now()
			WHERE shares.user_id = EXCLUDED.user_id`

	res, err := r.db.ExecContext(ctx, query, share.DocumentID, userID, share.Token, share.StorageKey)
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

func (r *PostgresRepository) GetByDocument(ctx context.Context, userID, documentID string) (*models.Share, error) {
	share := &models.Share{}
	err := r.db.QueryRowContext(ctx,
		`SELECT document_id, token, storage_key FROM shares WHERE user_id = $1 AND document_id = $2`,
		userID, documentID).Scan(&share.DocumentID, &share.Token, &share.StorageKey)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, common.ErrNotFound
		}
		return nil, fmt.Errorf("db error: %w", err)
	}
	return share, nil
}
