// Package templates resolves consent templates: the PDF layout config and the
// base unsigned document for a consent id.
package templates

import (
	"github.com/healthmetrix/dynamic-consent/internal/pdfx"
)

// Repository hands out the already-deserialized layout config and the blank
// template PDF for a consent id.
type Repository interface {
	Config(consentID string) (*pdfx.ConsentPdfConfig, error)
	BasePDF(consentID string) ([]byte, error)
}
