package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docsync/internal/server/models"
)

// Repository stores documents per user. Unknown ids yield
// common.ErrNotFound and name collisions within a category yield
// common.ErrConflict.
type Repository interface {
	List(ctx context.Context, userID string) ([]models.Document, error)
	Get(ctx context.Context, userID, id string) (*models.Document, error)
	Create(ctx context.Context, doc *models.Document) error
	Update(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, userID, id string) error
	MoveCategory(ctx context.Context, userID, from, to string, updatedAt time.Time) (int64, error)
	DeleteByCategory(ctx context.Context, userID, category string) (int64, error)
}
