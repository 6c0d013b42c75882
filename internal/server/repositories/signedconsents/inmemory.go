package signedconsents

import (
	"context"
	"sync"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// InMemoryRepository is a map-backed implementation used in tests and
// the in-memory backend.
type InMemoryRepository struct {
	mu       sync.RWMutex
	byFlowID map[string]*models.SignedConsent
	byDocID  map[string]string
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		byFlowID: make(map[string]*models.SignedConsent),
		byDocID:  make(map[string]string),
	}
}

func (r *InMemoryRepository) Record(ctx context.Context, consent *models.SignedConsent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := clone(consent)
	r.byFlowID[c.ConsentFlowID] = c
	r.byDocID[c.DocumentID] = c.ConsentFlowID
	return nil
}

func (r *InMemoryRepository) FindByFlowID(ctx context.Context, consentFlowID string) (*models.SignedConsent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.byFlowID[consentFlowID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(c), nil
}

func (r *InMemoryRepository) FindByDocumentID(ctx context.Context, documentID string) (*models.SignedConsent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	flowID, ok := r.byDocID[documentID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return clone(r.byFlowID[flowID]), nil
}

func clone(c *models.SignedConsent) *models.SignedConsent {
	out := *c
	out.Document = append([]byte(nil), c.Document...)
	if c.Email != nil {
		email := *c.Email
		out.Email = &email
	}
	if c.Metadata != nil {
		out.Metadata = make(map[string]string, len(c.Metadata))
		for k, v := range c.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
