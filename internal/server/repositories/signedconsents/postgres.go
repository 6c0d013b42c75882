// Package signedconsents provides storage for finalized, cryptographically
// signed consent documents.
package signedconsents

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// PostgresRepository implements signed consent storage over a dbx.DBTX.
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record inserts the signed consent for a flow. A flow is signed exactly
// once, so a duplicate primary key is a caller bug surfaced as a db error.
func (r *PostgresRepository) Record(ctx context.Context, consent *models.SignedConsent) error {
	var metadata []byte
	if consent.Metadata != nil {
		var err error
		metadata, err = json.Marshal(consent.Metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
	}

	var email sql.NullString
	if consent.Email != nil {
		email = sql.NullString{String: *consent.Email, Valid: true}
	}

	query := `
		INSERT INTO signed_consents (consent_flow_id, document_id, document, first_name, family_name, email, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7);
	`
	_, err := r.db.ExecContext(ctx, query,
		consent.ConsentFlowID, consent.DocumentID, consent.Document,
		consent.FirstName, consent.FamilyName, email, metadata)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByFlowID returns the signed consent for a flow, or common.ErrNotFound.
func (r *PostgresRepository) FindByFlowID(ctx context.Context, consentFlowID string) (*models.SignedConsent, error) {
	query := `
		SELECT consent_flow_id, document_id, document, first_name, family_name, email, metadata
		FROM signed_consents
		WHERE consent_flow_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, consentFlowID))
}

// FindByDocumentID returns the signed consent for a document id, or
// common.ErrNotFound.
func (r *PostgresRepository) FindByDocumentID(ctx context.Context, documentID string) (*models.SignedConsent, error) {
	query := `
		SELECT consent_flow_id, document_id, document, first_name, family_name, email, metadata
		FROM signed_consents
		WHERE document_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, documentID))
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.SignedConsent, error) {
	var (
		consent  models.SignedConsent
		email    sql.NullString
		metadata []byte
	)
	err := row.Scan(&consent.ConsentFlowID, &consent.DocumentID, &consent.Document,
		&consent.FirstName, &consent.FamilyName, &email, &metadata)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if email.Valid {
		consent.Email = &email.String
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &consent.Metadata); err != nil {
			return nil, fmt.Errorf("failed to decode metadata: %w", err)
		}
	}
	return &consent, nil
}
