package shares

import (
	"context"

	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// Repository records which documents are published and under which token.
type Repository interface {
	Upsert(ctx context.Context, userID string, share *models.Share) error
	GetByDocument(ctx context.Context, userID, documentID string) (*models.Share, error)
}
