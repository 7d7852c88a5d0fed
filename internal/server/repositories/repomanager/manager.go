package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/docsync/internal/dbx"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/categories"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/current"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/documents"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/recovered"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/shares"
	"github.com/dmitrijs2005/docsync/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a connection or a
// transaction, so services can compose them inside dbx.WithTx.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Documents(db dbx.DBTX) documents.Repository
	Categories(db dbx.DBTX) categories.Repository
	Current(db dbx.DBTX) current.Repository
	Recovered(db dbx.DBTX) recovered.Repository
	Shares(db dbx.DBTX) shares.Repository
}
