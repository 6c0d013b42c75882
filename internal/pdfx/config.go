// Package pdfx renders consent option marks and visual signing overlays onto
// PDF templates and computes the detached cryptographic signature over the
// result.
package pdfx

import (
	"fmt"
	"strings"
)

const (
	defaultSignatureMaxWidth  = 200.0
	defaultSignatureMaxHeight = 80.0

	// names shorter than the fit width still render at a readable size
	minFitFontSize = 12.0
)

// OverviewConfig identifies the consent template a layout belongs to.
type OverviewConfig struct {
	Version string `yaml:"version"`
	Author  string `yaml:"author"`
	ID      string `yaml:"id"`
	Lang    string `yaml:"lang"`
}

// FontsConfig selects the font family used for text overlays.
type FontsConfig struct {
	Default string `yaml:"default"`
}

// Family returns the canonical core font name.
func (c FontsConfig) Family() string {
	if c.Default == "" {
		return "Helvetica"
	}
	return c.Default
}

// OptionCoordinate is the lower-left corner of a checkbox, in PDF points.
type OptionCoordinate struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

// InputConfig places the yes/no checkboxes of one consent option.
// Pages are zero-based.
type InputConfig struct {
	Page int              `yaml:"page"`
	Yes  OptionCoordinate `yaml:"yes"`
	No   OptionCoordinate `yaml:"no"`
}

// OptionsConfig declares the checkbox geometry shared by all options and the
// per-option placements, ordered by option index.
type OptionsConfig struct {
	Width  float64       `yaml:"width"`
	Height float64       `yaml:"height"`
	Inputs []InputConfig `yaml:"inputs"`
}

// NameConfig places the typed signer name.
type NameConfig struct {
	Page     int     `yaml:"page"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	MaxWidth float64 `yaml:"maxWidth"`
	FontSize float64 `yaml:"fontSize"`
}

// MinFontSize is the lower clamp for fit-to-width sizing.
func (c NameConfig) MinFontSize() float64 {
	if c.FontSize < minFitFontSize {
		return c.FontSize
	}
	return minFitFontSize
}

// MaxFontSize is the upper clamp for fit-to-width sizing.
func (c NameConfig) MaxFontSize() float64 {
	if c.FontSize < c.MinFontSize() {
		return c.MinFontSize()
	}
	return c.FontSize
}

// DateConfig places the typed signing date. Format is a Go time layout.
type DateConfig struct {
	Page     int     `yaml:"page"`
	X        float64 `yaml:"x"`
	Y        float64 `yaml:"y"`
	FontSize float64 `yaml:"fontSize"`
	Format   string  `yaml:"format"`
}

// SignatureConfig places the handwritten signature image and bounds its size.
type SignatureConfig struct {
	Page      int     `yaml:"page"`
	X         float64 `yaml:"x"`
	Y         float64 `yaml:"y"`
	MaxWidth  float64 `yaml:"maxWidth"`
	MaxHeight float64 `yaml:"maxHeight"`
}

// NameAndDateConfig places a combined "date, name" line. When present it
// supersedes the separate name and date blocks.
type NameAndDateConfig struct {
	Page       int     `yaml:"page"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	MaxWidth   float64 `yaml:"maxWidth"`
	FontSize   float64 `yaml:"fontSize"`
	DateFormat string  `yaml:"dateFormat"`
}

// SigningConfig groups the optional overlay blocks applied at sign time.
type SigningConfig struct {
	Name        *NameConfig        `yaml:"name"`
	Date        *DateConfig        `yaml:"date"`
	NameAndDate *NameAndDateConfig `yaml:"nameAndDate"`
	Signature   SignatureConfig    `yaml:"signature"`
}

// ConsentPdfConfig is the full PDF layout for one consent template.
type ConsentPdfConfig struct {
	Consent OverviewConfig `yaml:"consent"`
	Fonts   FontsConfig    `yaml:"fonts"`
	Options *OptionsConfig `yaml:"options"`
	Signing SigningConfig  `yaml:"signing"`
}

// Normalize validates the font family and fills in signature box defaults.
func (c *ConsentPdfConfig) Normalize() error {
	switch strings.ToLower(c.Fonts.Family()) {
	case "helvetica":
		c.Fonts.Default = "Helvetica"
	default:
		return fmt.Errorf("font %q not supported", c.Fonts.Default)
	}
	if c.Signing.Signature.MaxWidth == 0 {
		c.Signing.Signature.MaxWidth = defaultSignatureMaxWidth
	}
	if c.Signing.Signature.MaxHeight == 0 {
		c.Signing.Signature.MaxHeight = defaultSignatureMaxHeight
	}
	return nil
}
