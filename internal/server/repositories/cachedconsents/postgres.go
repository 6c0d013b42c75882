// Package cachedconsents provides storage for staged, not-yet-signed
// consent documents keyed by their public document id.
package cachedconsents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// PostgresRepository implements cached document storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Save inserts a cached document row.
func (r *PostgresRepository) Save(ctx context.Context, consent *models.CachedConsent) error {
	query := `
		INSERT INTO cached_consents (document_id, consent_flow_id, consent_id, document, created_at)
		VALUES ($1, $2, $3, $4, $5);
	`
	_, err := r.db.ExecContext(ctx, query,
		consent.DocumentID, consent.ConsentFlowID, consent.ConsentID, consent.Document, consent.CreatedAt)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByDocumentID returns the cached document, or common.ErrNotFound.
func (r *PostgresRepository) FindByDocumentID(ctx context.Context, documentID string) (*models.CachedConsent, error) {
	query := `
		SELECT document_id, consent_flow_id, consent_id, document, created_at
		FROM cached_consents
		WHERE document_id = $1
	`
	var consent models.CachedConsent
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&consent.DocumentID, &consent.ConsentFlowID, &consent.ConsentID, &consent.Document, &consent.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return &consent, nil
}
