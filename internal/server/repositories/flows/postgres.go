// Package flows provides persistence for consent flow rows, the rows that
// carry the one-active-flow-per-user-per-template invariant.
package flows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

const pgUniqueViolation = "23505"

// PostgresRepository implements flow storage over a dbx.DBTX
// (*sql.DB or *sql.Tx).
type PostgresRepository struct {
	db dbx.DBTX
}

// NewPostgresRepository constructs a repository bound to the given DBTX.
func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Record upserts a flow by id. The partial unique index on
// (consent_id, external_ref_id) WHERE withdrawn_at IS NULL rejects a second
// unwithdrawn flow for the same pair; that violation is reported as
// common.ErrFlowConflict.
func (r *PostgresRepository) Record(ctx context.Context, flow *models.ConsentFlow) error {
	query := `
		INSERT INTO consent_flows (consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (consent_flow_id)
		DO UPDATE SET
			signed_at = EXCLUDED.signed_at,
			withdrawn_at = EXCLUDED.withdrawn_at;
	`
	_, err := r.db.ExecContext(ctx, query,
		flow.ConsentFlowID, flow.ConsentID, flow.ExternalRefID, flow.SignedAt, flow.WithdrawnAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return common.ErrFlowConflict
		}
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

// FindByID returns the flow with the given id, or common.ErrNotFound.
func (r *PostgresRepository) FindByID(ctx context.Context, consentFlowID string) (*models.ConsentFlow, error) {
	query := `
		SELECT consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at
		FROM consent_flows
		WHERE consent_flow_id = $1
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, consentFlowID))
}

// FindActive returns the unwithdrawn flow for the pair, or common.ErrNotFound.
func (r *PostgresRepository) FindActive(ctx context.Context, externalRefID, consentID string) (*models.ConsentFlow, error) {
	query := `
		SELECT consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at
		FROM consent_flows
		WHERE external_ref_id = $1 AND consent_id = $2 AND withdrawn_at IS NULL
	`
	return r.scanOne(r.db.QueryRowContext(ctx, query, externalRefID, consentID))
}

// FindByExternalRefIDAndConsentID returns all flows for the pair, withdrawn
// ones included.
func (r *PostgresRepository) FindByExternalRefIDAndConsentID(ctx context.Context, externalRefID, consentID string) ([]*models.ConsentFlow, error) {
	query := `
		SELECT consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at
		FROM consent_flows
		WHERE external_ref_id = $1 AND consent_id = $2
	`
	return r.selectMany(ctx, query, externalRefID, consentID)
}

// FindByExternalRefID returns all flows for a user across templates.
func (r *PostgresRepository) FindByExternalRefID(ctx context.Context, externalRefID string) ([]*models.ConsentFlow, error) {
	query := `
		SELECT consent_flow_id, consent_id, external_ref_id, signed_at, withdrawn_at
		FROM consent_flows
		WHERE external_ref_id = $1
	`
	return r.selectMany(ctx, query, externalRefID)
}

func (r *PostgresRepository) scanOne(row *sql.Row) (*models.ConsentFlow, error) {
	var (
		flow        models.ConsentFlow
		signedAt    sql.NullTime
		withdrawnAt sql.NullTime
	)
	err := row.Scan(&flow.ConsentFlowID, &flow.ConsentID, &flow.ExternalRefID, &signedAt, &withdrawnAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	if signedAt.Valid {
		flow.SignedAt = &signedAt.Time
	}
	if withdrawnAt.Valid {
		flow.WithdrawnAt = &withdrawnAt.Time
	}
	return &flow, nil
}

func (r *PostgresRepository) selectMany(ctx context.Context, query string, args ...any) ([]*models.ConsentFlow, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to select consent flows: %w", err)
	}
	defer rows.Close()

	var result []*models.ConsentFlow
	for rows.Next() {
		var (
			flow        models.ConsentFlow
			signedAt    sql.NullTime
			withdrawnAt sql.NullTime
		)
		if err := rows.Scan(&flow.ConsentFlowID, &flow.ConsentID, &flow.ExternalRefID, &signedAt, &withdrawnAt); err != nil {
			return nil, err
		}
		if signedAt.Valid {
			flow.SignedAt = &signedAt.Time
		}
		if withdrawnAt.Valid {
			flow.WithdrawnAt = &withdrawnAt.Time
		}
		result = append(result, &flow)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
