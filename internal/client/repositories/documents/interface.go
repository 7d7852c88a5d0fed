// Package documents persists client documents in SQLite.
package documents

import (
	"context"
	"time"

	"github.com/dmitrijs2005/docsync/internal/client/models"
	"github.com/dmitrijs2005/docsync/internal/common"
)

// Repository is the document table. Lookups of unknown ids return
// common.ErrNotFound.
type Repository interface {
	Get(ctx context.Context, id string) (*models.Document, error)
	List(ctx context.Context) ([]models.Document, error)
	FindByName(ctx context.Context, category, name string) (*models.Document, error)
	Upsert(ctx context.Context, doc *models.Document) error
	Delete(ctx context.Context, id string) error
	Relabel(ctx context.Context, oldID, newID string) error
	MarkSynced(ctx context.Context, id string, updatedAt time.Time) (bool, error)
	ListByCategory(ctx context.Context, category string) ([]models.Document, error)
	MoveCategory(ctx context.Context, from, to string, updatedAt time.Time) (int64, error)
	DeleteByCategory(ctx context.Context, category string) ([]string, error)
	DeleteSynced(ctx context.Context) ([]string, error)
}

// NameKey is the uniqueness key of a name within a category.
func NameKey(name string) string { return common.NameKey(name) }
