package cachedconsents

import (
	"context"

	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// Repository persists cached (unsigned) consent documents. Rows are written
// once at cache time and read back at sign time; they are never mutated.
type Repository interface {
	Save(ctx context.Context, consent *models.CachedConsent) error

	// FindByDocumentID returns common.ErrNotFound if no cached document exists.
	FindByDocumentID(ctx context.Context, documentID string) (*models.CachedConsent, error)
}
