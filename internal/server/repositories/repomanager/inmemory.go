package repomanager

import (
	"context"
	"database/sql"

	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/cachedconsents"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/flows"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/signedconsents"
)

// InMemoryRepositoryManager vends a single set of map-backed repositories.
// The DBTX argument is ignored; there is no database behind it.
type InMemoryRepositoryManager struct {
	flows          *flows.InMemoryRepository
	cachedConsents *cachedconsents.InMemoryRepository
	signedConsents *signedconsents.InMemoryRepository
}

func NewInMemoryRepositoryManager() RepositoryManager {
	return &InMemoryRepositoryManager{
		flows:          flows.NewInMemoryRepository(),
		cachedConsents: cachedconsents.NewInMemoryRepository(),
		signedConsents: signedconsents.NewInMemoryRepository(),
	}
}

func (m *InMemoryRepositoryManager) RunMigrations(context.Context, *sql.DB) error {
	return nil
}

func (m *InMemoryRepositoryManager) Flows(dbx.DBTX) flows.Repository {
	return m.flows
}

func (m *InMemoryRepositoryManager) CachedConsents(dbx.DBTX) cachedconsents.Repository {
	return m.cachedConsents
}

func (m *InMemoryRepositoryManager) SignedConsents(dbx.DBTX) signedconsents.Repository {
	return m.signedConsents
}
