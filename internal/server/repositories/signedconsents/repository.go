package signedconsents

import (
	"context"

	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// Repository persists finalized signed consents, one row per flow.
type Repository interface {
	Record(ctx context.Context, consent *models.SignedConsent) error

	// FindByFlowID returns common.ErrNotFound if no signed consent exists.
	FindByFlowID(ctx context.Context, consentFlowID string) (*models.SignedConsent, error)

	// FindByDocumentID returns common.ErrNotFound if no signed consent exists.
	FindByDocumentID(ctx context.Context, documentID string) (*models.SignedConsent, error)
}
