package templates

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/healthmetrix/dynamic-consent/internal/common"
	"github.com/healthmetrix/dynamic-consent/internal/pdfx"
)

// LocalRepository reads templates from a directory tree laid out as
// <dir>/<consentId>/config.yaml and <dir>/<consentId>/template.pdf.
type LocalRepository struct {
	dir string
}

func NewLocalRepository(dir string) *LocalRepository {
	return &LocalRepository{dir: dir}
}

func (r *LocalRepository) Config(consentID string) (*pdfx.ConsentPdfConfig, error) {
	data, err := r.read(consentID, "config.yaml")
	if err != nil {
		return nil, err
	}

	var cfg pdfx.ConsentPdfConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config for consent %s: %w", consentID, err)
	}
	if err := cfg.Normalize(); err != nil {
		return nil, fmt.Errorf("invalid config for consent %s: %w", consentID, err)
	}
	return &cfg, nil
}

func (r *LocalRepository) BasePDF(consentID string) ([]byte, error) {
	return r.read(consentID, "template.pdf")
}

func (r *LocalRepository) read(consentID, name string) ([]byte, error) {
	// consent ids come from clients; never let them escape the template dir
	if consentID != filepath.Base(consentID) || consentID == "." || consentID == ".." {
		return nil, common.ErrConsentNotFound
	}

	data, err := os.ReadFile(filepath.Join(r.dir, consentID, name))
	if os.IsNotExist(err) {
		return nil, common.ErrConsentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s for consent %s: %w", name, consentID, err)
	}
	return data, nil
}
