package services

import (
	"context"
	"fmt"

	"github.com/healthmetrix/dynamic-consent/internal/pdfx"
	"github.com/healthmetrix/dynamic-consent/internal/templates"
)

// DocumentService produces non-sensitive consent documents: the consent
// template with the user's option choices marked, signed with the
// consent-purpose keypair. No participant data enters the document, so the
// result is safe to hand back without persisting.
type DocumentService struct {
	templates templates.Repository
	material  *pdfx.SigningMaterial

	markOptions  func(pdf []byte, cfg *pdfx.ConsentPdfConfig, opts map[int]bool) ([]byte, error)
	signDetached func(pdf []byte, m *pdfx.SigningMaterial) ([]byte, error)
}

func NewDocumentService(t templates.Repository, material *pdfx.SigningMaterial) *DocumentService {
	return &DocumentService{
		templates:    t,
		material:     material,
		markOptions:  pdfx.MarkOptions,
		signDetached: pdfx.SignDetached,
	}
}

// Generate marks the template of consentID with the given option decisions
// and returns the detached-signed result.
func (s *DocumentService) Generate(ctx context.Context, consentID string, options map[int]bool) ([]byte, error) {
	pdf, err := s.templates.BasePDF(consentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consent template: %w", err)
	}
	cfg, err := s.templates.Config(consentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load consent config: %w", err)
	}
	marked, err := s.markOptions(pdf, cfg, options)
	if err != nil {
		return nil, fmt.Errorf("failed to mark options: %w", err)
	}
	signed, err := s.signDetached(marked, s.material)
	if err != nil {
		return nil, fmt.Errorf("failed to sign document: %w", err)
	}
	return signed, nil
}
