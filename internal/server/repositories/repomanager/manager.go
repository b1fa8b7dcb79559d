package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/tourvault/internal/dbx"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/metadata"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/progress"
	"github.com/dmitrijs2005/tourvault/internal/server/repositories/sessions"
)

// RepositoryManager vends repository instances bound to a DBTX, so the same
// repository code runs both on a plain connection and inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Sessions(db dbx.DBTX) sessions.Repository
	Progress(db dbx.DBTX) progress.Repository
	Metadata(db dbx.DBTX) metadata.Repository
}
