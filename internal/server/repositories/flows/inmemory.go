package flows

import (
	"context"
	"sync"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
)

// InMemoryRepository is a mutex-guarded map-backed flow store for local
// profiles and tests. It enforces the same one-active-flow invariant as the
// Postgres partial unique index: the check and the write happen under one
// critical section.
type InMemoryRepository struct {
	mu    sync.Mutex
	flows map[string]models.ConsentFlow
}

func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{flows: make(map[string]models.ConsentFlow)}
}

func (r *InMemoryRepository) Record(_ context.Context, flow *models.ConsentFlow) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if flow.WithdrawnAt == nil {
		for id, existing := range r.flows {
			if id != flow.ConsentFlowID &&
				existing.ConsentID == flow.ConsentID &&
				existing.ExternalRefID == flow.ExternalRefID &&
				existing.WithdrawnAt == nil {
				return common.ErrFlowConflict
			}
		}
	}

	r.flows[flow.ConsentFlowID] = *flow
	return nil
}

func (r *InMemoryRepository) FindByID(_ context.Context, consentFlowID string) (*models.ConsentFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	flow, ok := r.flows[consentFlowID]
	if !ok {
		return nil, common.ErrNotFound
	}
	return &flow, nil
}

func (r *InMemoryRepository) FindActive(_ context.Context, externalRefID, consentID string) (*models.ConsentFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, flow := range r.flows {
		if flow.ExternalRefID == externalRefID && flow.ConsentID == consentID && flow.WithdrawnAt == nil {
			f := flow
			return &f, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *InMemoryRepository) FindByExternalRefIDAndConsentID(_ context.Context, externalRefID, consentID string) ([]*models.ConsentFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ConsentFlow
	for _, flow := range r.flows {
		if flow.ExternalRefID == externalRefID && flow.ConsentID == consentID {
			f := flow
			result = append(result, &f)
		}
	}
	return result, nil
}

func (r *InMemoryRepository) FindByExternalRefID(_ context.Context, externalRefID string) ([]*models.ConsentFlow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var result []*models.ConsentFlow
	for _, flow := range r.flows {
		if flow.ExternalRefID == externalRefID {
			f := flow
			result = append(result, &f)
		}
	}
	return result, nil
}
