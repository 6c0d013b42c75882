// Package services contains server-side business logic. This file implements
// ConsentService, the consent flow state machine: caching unsigned documents,
// signing, withdrawal, retrieval and per-user status aggregation.
package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/dbx"
	"github.com/healthmetrix/dynamic-consent/internal/pdfx"
	"github.com/healthmetrix/dynamic-consent/internal/server/models"
	"github.com/healthmetrix/dynamic-consent/internal/server/repositories/repomanager"
	"github.com/healthmetrix/dynamic-consent/internal/templates"
)

// ConsentService orchestrates the cache → sign → withdraw → re-consent
// lifecycle. The one-active-flow-per-(consentId, externalRefId) invariant is
// enforced by the flow store, not here.
type ConsentService struct {
	db              *sql.DB
	repomanager     repomanager.RepositoryManager
	templates       templates.Repository
	signingMaterial *pdfx.SigningMaterial

	now   func() time.Time
	newID func() string

	// seams for testing the state machine without rendering real PDFs
	overlay      func(pdf []byte, cfg *pdfx.ConsentPdfConfig, firstName, familyName string, signaturePNG []byte, now time.Time) ([]byte, error)
	signDetached func(pdf []byte, m *pdfx.SigningMaterial) ([]byte, error)
}

// NewConsentService constructs a ConsentService over the given repositories
// and template source.
func NewConsentService(db *sql.DB, m repomanager.RepositoryManager, t templates.Repository, material *pdfx.SigningMaterial) *ConsentService {
	return &ConsentService{
		db:              db,
		repomanager:     m,
		templates:       t,
		signingMaterial: material,
		now:             time.Now,
		newID:           uuid.NewString,
		overlay:         pdfx.ApplySignature,
		signDetached:    pdfx.SignDetached,
	}
}

// Cache stages an unsigned document for the pair and returns a fresh opaque
// document id. A signed active flow blocks re-caching with
// ErrAlreadyConsented; an unsigned active flow is reused, so abandoned
// attempts stay idempotent.
func (s *ConsentService) Cache(ctx context.Context, externalRefID, consentID string, document []byte) (string, error) {
	flowRepo := s.repomanager.Flows(s.db)

	flowID := s.newID()
	existing, err := flowRepo.FindActive(ctx, externalRefID, consentID)
	switch {
	case err == nil:
		if existing.Signed() {
			return "", common.ErrAlreadyConsented
		}
		flowID = existing.ConsentFlowID
	case errors.Is(err, common.ErrNotFound):
		// first cache for this pair
	default:
		return "", fmt.Errorf("failed to look up active flow: %w", err)
	}

	if err := flowRepo.Record(ctx, &models.ConsentFlow{
		ConsentFlowID: flowID,
		ExternalRefID: externalRefID,
		ConsentID:     consentID,
	}); err != nil {
		return "", err
	}

	documentID := s.newID()
	if err := s.repomanager.CachedConsents(s.db).Save(ctx, &models.CachedConsent{
		DocumentID:    documentID,
		ConsentFlowID: flowID,
		ConsentID:     consentID,
		Document:      document,
		CreatedAt:     s.now(),
	}); err != nil {
		return "", err
	}
	return documentID, nil
}

// Sign is the only transition from cached to signed: it composites the
// visual overlay into the cached document, signs the result and records the
// signer. A failed call leaves the cached source untouched and can be
// retried whole.
func (s *ConsentService) Sign(ctx context.Context, documentID, externalRefID, firstName, familyName string, signaturePNG []byte, metadata map[string]string, email *string) error {
	cached, err := s.repomanager.CachedConsents(s.db).FindByDocumentID(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrCachedConsentNotFound
	}
	if err != nil {
		return err
	}

	cfg, err := s.templates.Config(cached.ConsentID)
	if err != nil {
		return err
	}

	overlaid, err := s.overlay(cached.Document, cfg, firstName, familyName, signaturePNG, s.now())
	if err != nil {
		return err
	}
	signedDoc, err := s.signDetached(overlaid, s.signingMaterial)
	if err != nil {
		return err
	}

	signedAt := s.now()
	return s.inTx(ctx, func(ctx context.Context, h dbx.DBTX) error {
		if err := s.repomanager.Flows(h).Record(ctx, &models.ConsentFlow{
			ConsentFlowID: cached.ConsentFlowID,
			ExternalRefID: externalRefID,
			ConsentID:     cached.ConsentID,
			SignedAt:      &signedAt,
		}); err != nil {
			return err
		}

		return s.repomanager.SignedConsents(h).Record(ctx, &models.SignedConsent{
			ConsentFlowID: cached.ConsentFlowID,
			DocumentID:    documentID,
			Document:      signedDoc,
			FirstName:     firstName,
			FamilyName:    familyName,
			Email:         email,
			Metadata:      metadata,
		})
	})
}

// inTx runs fn inside a database transaction when a database is present.
// The in-memory backend has no transactional handle; its repositories
// ignore the DBTX argument.
func (s *ConsentService) inTx(ctx context.Context, fn func(ctx context.Context, h dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// Withdraw closes the active flow for the pair. The flow row stays; a new
// flow may be cached afterwards.
func (s *ConsentService) Withdraw(ctx context.Context, externalRefID, consentID string) error {
	flow, err := s.repomanager.Flows(s.db).FindActive(ctx, externalRefID, consentID)
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrNotFound
	}
	if err != nil {
		return err
	}
	return s.withdrawFlow(ctx, flow)
}

// WithdrawByDocumentID resolves the flow through the cached document mapping.
// Kept for clients that only hold the document id.
func (s *ConsentService) WithdrawByDocumentID(ctx context.Context, documentID string) error {
	cached, err := s.repomanager.CachedConsents(s.db).FindByDocumentID(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return common.ErrNotFound
	}
	if err != nil {
		return err
	}

	flow, err := s.repomanager.Flows(s.db).FindByID(ctx, cached.ConsentFlowID)
	if err != nil {
		return err
	}
	return s.withdrawFlow(ctx, flow)
}

// unreachable for flows found via FindActive, but the document id path can
// reach an already-withdrawn flow
func (s *ConsentService) withdrawFlow(ctx context.Context, flow *models.ConsentFlow) error {
	if flow.WithdrawnAt != nil {
		return common.ErrAlreadyWithdrawn
	}
	withdrawnAt := s.now()
	flow.WithdrawnAt = &withdrawnAt
	return s.repomanager.Flows(s.db).Record(ctx, flow)
}

// FetchSignedDocument returns the signed bytes of the pair's preferred flow:
// the active flow when one exists, otherwise the most recently signed
// withdrawn flow. A withdrawn signature therefore stays retrievable until a
// newer one replaces it.
func (s *ConsentService) FetchSignedDocument(ctx context.Context, externalRefID, consentID string) ([]byte, error) {
	all, err := s.repomanager.Flows(s.db).FindByExternalRefIDAndConsentID(ctx, externalRefID, consentID)
	if err != nil {
		return nil, err
	}
	if len(all) == 0 {
		return nil, common.ErrConsentNotFound
	}

	sort.SliceStable(all, func(i, j int) bool { return flowPrecedes(all[i], all[j]) })

	consent, err := s.repomanager.SignedConsents(s.db).FindByFlowID(ctx, all[0].ConsentFlowID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrSignedConsentNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(consent.Document) == 0 {
		return nil, common.ErrEmptyDocument
	}
	return consent.Document, nil
}

// FetchSignedDocumentByID returns the signed bytes for a document id.
// Kept for clients that only hold the document id.
func (s *ConsentService) FetchSignedDocumentByID(ctx context.Context, documentID string) ([]byte, error) {
	consent, err := s.repomanager.SignedConsents(s.db).FindByDocumentID(ctx, documentID)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrSignedConsentNotFound
	}
	if err != nil {
		return nil, err
	}
	if len(consent.Document) == 0 {
		return nil, common.ErrEmptyDocument
	}
	return consent.Document, nil
}

// Status aggregates the user's signed flows into one entry per consent
// template, split into still-consented and withdrawn. An active flow
// represents its template regardless of dates; among withdrawn flows the
// latest signature wins.
func (s *ConsentService) Status(ctx context.Context, externalRefID string) (consented, withdrawn []models.ConsentInfo, err error) {
	all, err := s.repomanager.Flows(s.db).FindByExternalRefID(ctx, externalRefID)
	if err != nil {
		return nil, nil, err
	}

	best := make(map[string]*models.ConsentFlow)
	for _, flow := range all {
		if !flow.Signed() {
			continue
		}
		current, ok := best[flow.ConsentID]
		if !ok || flowPrecedes(flow, current) {
			best[flow.ConsentID] = flow
		}
	}

	for _, flow := range best {
		info := flow.ToConsentInfo()
		if flow.Active() {
			consented = append(consented, info)
		} else {
			withdrawn = append(withdrawn, info)
		}
	}

	// map iteration order is random; keep responses stable
	sortInfos(consented)
	sortInfos(withdrawn)
	return consented, withdrawn, nil
}

// flowPrecedes is the shared precedence rule for fetch and status: an active
// flow beats any withdrawn one, then later signatures beat earlier ones,
// unsigned flows last.
func flowPrecedes(a, b *models.ConsentFlow) bool {
	if a.Active() != b.Active() {
		return a.Active()
	}
	switch {
	case a.SignedAt == nil:
		return false
	case b.SignedAt == nil:
		return true
	default:
		return a.SignedAt.After(*b.SignedAt)
	}
}

func sortInfos(infos []models.ConsentInfo) {
	sort.Slice(infos, func(i, j int) bool { return infos[i].ConsentID < infos[j].ConsentID })
}
