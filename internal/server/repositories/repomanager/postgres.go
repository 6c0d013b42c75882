// Package repomanager provides concrete RepositoryManager implementations,
// wiring together repository constructors and database migrations (via goose).
package repomanager

import (
	"context"
	"database/sql"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/migrations"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/cachedconsents"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/flows"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/signedconsents"
)

// PostgresRepositoryManager vends PostgreSQL-backed repository implementations
// and exposes a schema migration hook.
type PostgresRepositoryManager struct{}

// NewPostgresRepositoryManager constructs a PostgreSQL-backed RepositoryManager.
func NewPostgresRepositoryManager() RepositoryManager {
	return &PostgresRepositoryManager{}
}

// Flows returns a flows.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) Flows(db dbx.DBTX) flows.Repository {
	return flows.NewPostgresRepository(db)
}

// CachedConsents returns a cachedconsents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) CachedConsents(db dbx.DBTX) cachedconsents.Repository {
	return cachedconsents.NewPostgresRepository(db)
}

// SignedConsents returns a signedconsents.Repository bound to the provided DBTX.
func (m *PostgresRepositoryManager) SignedConsents(db dbx.DBTX) signedconsents.Repository {
	return signedconsents.NewPostgresRepository(db)
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations sets up goose with the embedded migrations and runs them
// against the provided database connection.
func (m *PostgresRepositoryManager) RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	goose.SetDialect("pgx")
	if err := gooseUpContext(ctx, db, "."); err != nil {
		return err
	}
	return nil
}
