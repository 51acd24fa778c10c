package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/gophxfer/internal/dbx"
	"github.com/dmitrijs2005/gophxfer/internal/server/repositories/transfers"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Transfers(db dbx.DBTX) transfers.Repository
}
