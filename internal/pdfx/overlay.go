package pdfx

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/font"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// fitFontSize computes the size that makes text exactly fill maxWidth,
// clamped to [min, max]. Short text renders at max; overlong text still
// overflows at min rather than shrinking unreadably.
func fitFontSize(text, fontName string, maxWidth, min, max float64) float64 {
	const probe = 1000
	width := font.TextWidth(text, fontName, probe) / probe
	if width <= 0 {
		return max
	}
	size := maxWidth / width
	if size < min {
		return min
	}
	if size > max {
		return max
	}
	return size
}

// ApplySignature renders the visual signing overlay: the typed name and date
// (or the combined "date, name" line when configured, which supersedes both)
// and the handwritten signature image, cropped to its ink bounding box and
// scaled down to the configured max box.
func ApplySignature(pdf []byte, cfg *ConsentPdfConfig, firstName, familyName string, signaturePNG []byte, now time.Time) ([]byte, error) {
	doc, err := applyNameAndDate(pdf, cfg, firstName, familyName, now)
	if err != nil {
		return nil, err
	}
	return applySignatureImage(doc, cfg, signaturePNG)
}

func applyNameAndDate(pdf []byte, cfg *ConsentPdfConfig, firstName, familyName string, now time.Time) ([]byte, error) {
	signing := cfg.Signing

	if nd := signing.NameAndDate; nd != nil {
		text := fmt.Sprintf("%s, %s %s", now.Format(nd.DateFormat), firstName, familyName)
		size := fitFontSize(text, cfg.Fonts.Family(), nd.MaxWidth, minFitFontSize, nd.FontSize)
		return stampText(pdf, cfg, text, nd.Page, nd.X, nd.Y, size)
	}

	doc := pdf
	if d := signing.Date; d != nil {
		var err error
		doc, err = stampText(doc, cfg, now.Format(d.Format), d.Page, d.X, d.Y, d.FontSize)
		if err != nil {
			return nil, err
		}
	}
	if n := signing.Name; n != nil {
		name := firstName + " " + familyName
		size := fitFontSize(name, cfg.Fonts.Family(), n.MaxWidth, n.MinFontSize(), n.MaxFontSize())
		var err error
		doc, err = stampText(doc, cfg, name, n.Page, n.X, n.Y, size)
		if err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func applySignatureImage(pdf []byte, cfg *ConsentPdfConfig, signaturePNG []byte) ([]byte, error) {
	img, err := decodeNRGBA(signaturePNG)
	if err != nil {
		return nil, err
	}
	fitted := fitWithin(cropWhitespace(img), cfg.Signing.Signature.MaxWidth, cfg.Signing.Signature.MaxHeight)
	fittedPNG, err := encodePNG(fitted)
	if err != nil {
		return nil, err
	}

	// scale:1 abs renders one pixel per point, so the fitted dimensions are
	// the on-page dimensions
	desc := fmt.Sprintf(
		"scale:1 abs, pos:bl, off:%.2f %.2f, rot:0, op:1",
		cfg.Signing.Signature.X, cfg.Signing.Signature.Y,
	)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(fittedPNG), desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build signature image overlay: %w", err)
	}

	var buf bytes.Buffer
	pages := []string{strconv.Itoa(cfg.Signing.Signature.Page + 1)}
	if err := api.AddWatermarks(bytes.NewReader(pdf), &buf, pages, wm, nil); err != nil {
		return nil, fmt.Errorf("failed to draw signature image: %w", err)
	}
	return buf.Bytes(), nil
}

// textPoints converts a computed font size to the integer point size pdfcpu
// watermark descriptors accept. Rounding keeps a fitted size close to the
// target width; truncating would always undershoot it.
func textPoints(size float64) int {
	p := int(math.Round(size))
	if p < 1 {
		p = 1
	}
	return p
}

func stampText(pdf []byte, cfg *ConsentPdfConfig, text string, page int, x, y, fontSize float64) ([]byte, error) {
	desc := fmt.Sprintf(
		"font:%s, points:%d, scale:1 abs, pos:bl, off:%.2f %.2f, fillc:#000000, rot:0, op:1",
		cfg.Fonts.Family(), textPoints(fontSize), x, y,
	)
	wm, err := api.TextWatermark(text, desc, true, false, types.POINTS)
	if err != nil {
		return nil, fmt.Errorf("failed to build text overlay: %w", err)
	}

	var buf bytes.Buffer
	pages := []string{strconv.Itoa(page + 1)}
	if err := api.AddWatermarks(bytes.NewReader(pdf), &buf, pages, wm, nil); err != nil {
		return nil, fmt.Errorf("failed to draw text overlay: %w", err)
	}
	return buf.Bytes(), nil
}
