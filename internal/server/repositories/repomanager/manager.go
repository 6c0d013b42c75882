package repomanager

import (
	"context"
	"database/sql"

	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/cachedconsents"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/flows"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/signedconsents"
)

type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Flows(db dbx.DBTX) flows.Repository
	CachedConsents(db dbx.DBTX) cachedconsents.Repository
	SignedConsents(db dbx.DBTX) signedconsents.Repository
}
