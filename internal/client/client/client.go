package client

import (
	"context"

	"github.com/dmitrijs2005/docsync/internal/client/models"
)

// Client is the remote document API consumed by the sync engine. Every call
// that needs authentication takes its bearer token from the context (see
// WithToken).
type Client interface {
	Register(ctx context.Context, username, password string) error
	Login(ctx context.Context, username, password string) (string, error)

	ListDocuments(ctx context.Context) ([]models.Document, error)
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	CreateDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	UpdateDocument(ctx context.Context, doc models.Document) (*models.Document, error)
	DeleteDocument(ctx context.Context, id string) error

	ListCategories(ctx context.Context) ([]string, error)
	CreateCategory(ctx context.Context, name string) error
	RenameCategory(ctx context.Context, oldName, newName string) error
	DeleteCategory(ctx context.Context, name, migrateTo string, deleteDocs bool) error

	GetCurrentDocument(ctx context.Context) (string, error)
	SetCurrentDocument(ctx context.Context, id string) error

	ListRecovered(ctx context.Context) ([]models.RecoveredDocument, error)
	SaveRecovered(ctx context.Context, doc models.Document) (*models.RecoveredDocument, error)
	DeleteRecovered(ctx context.Context, id string) error

	ShareDocument(ctx context.Context, id string) (*models.Share, error)
}

// Pinger reports whether the backend is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
	Close() error
}

type tokenKey struct{}

// WithToken attaches a bearer token to ctx.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// TokenFrom returns the token attached by WithToken.
func TokenFrom(ctx context.Context) string {
	s, _ := ctx.Value(tokenKey{}).(string)
	return s
}
