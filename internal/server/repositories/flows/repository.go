package flows

import (
	"context"

	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// Repository persists consent flows.
//
// Record upserts by flow id. Implementations must reject a write that would
// leave two unwithdrawn flows for the same (consentID, externalRefID) pair,
// surfacing common.ErrFlowConflict; this constraint is the authoritative
// concurrency guard for the cache operation.
type Repository interface {
	Record(ctx context.Context, flow *models.ConsentFlow) error

	// FindByID returns common.ErrNotFound if no flow exists.
	FindByID(ctx context.Context, consentFlowID string) (*models.ConsentFlow, error)

	// FindActive returns the single unwithdrawn flow for the pair, or
	// common.ErrNotFound.
	FindActive(ctx context.Context, externalRefID, consentID string) (*models.ConsentFlow, error)

	FindByExternalRefIDAndConsentID(ctx context.Context, externalRefID, consentID string) ([]*models.ConsentFlow, error)

	FindByExternalRefID(ctx context.Context, externalRefID string) ([]*models.ConsentFlow, error)
}
