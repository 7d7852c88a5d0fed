package recovered

import (
	"context"

	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// Repository keeps autosave snapshots until the client acknowledges them.
type Repository interface {
	List(ctx context.Context, userID string) ([]models.RecoveredDocument, error)
	Create(ctx context.Context, doc *models.RecoveredDocument) error
	Delete(ctx context.Context, userID, id string) error
}
