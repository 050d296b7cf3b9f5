package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/recdocs/internal/dbx"
	"github.com/dmitrijs2005/recdocs/internal/server/repositories/applications"
	"github.com/dmitrijs2005/recdocs/internal/server/repositories/uploads"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Applications(db dbx.DBTX) applications.Repository
	Uploads(db dbx.DBTX) uploads.Repository
}
