package cachedconsents

import (
	"bytes"
	"context"
	"sync"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// InMemoryRepository is a mutex-guarded map-backed cached document store for
// local profiles and tests.
type InMemoryRepository struct {
	mu        sync.Mutex
	documents map[string]models.CachedConsent
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{documents: make(map[string]models.CachedConsent)}
}

func (r *InMemoryRepository) Save(_ context.Context, consent *models.CachedConsent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c := *consent
	c.Document = bytes.Clone(consent.Document)
	r.documents[consent.DocumentID] = c
	return nil
}

func (r *InMemoryRepository) FindByDocumentID(_ context.Context, documentID string) (*models.CachedConsent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	consent, ok := r.documents[documentID]
	if !ok {
		return nil, common.ErrNotFound
	}
	c := consent
	c.Document = bytes.Clone(consent.Document)
	return &c, nil
}
