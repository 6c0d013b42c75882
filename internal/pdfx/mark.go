package pdfx

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// markPlacement is one resolved checkbox mark: the zero-based page and the
// lower-left corner plus dimensions of the box to mark, in PDF points.
type markPlacement struct {
	optionID int
	page     int
	x, y     float64
	w, h     float64
}

// markPlacements resolves the option decisions against the layout. Only
// option indices present in opts produce a placement; a decision of true
// selects the yes box, false the no box. Indices without a configured input
// slot are ignored.
func markPlacements(cfg *ConsentPdfConfig, opts map[int]bool) []markPlacement {
	if cfg.Options == nil {
		return nil
	}

	var placements []markPlacement
	for i, input := range cfg.Options.Inputs {
		consented, ok := opts[i]
		if !ok {
			continue
		}
		coord := input.No
		if consented {
			coord = input.Yes
		}
		placements = append(placements, markPlacement{
			optionID: i,
			page:     input.Page,
			x:        coord.X,
			y:        coord.Y,
			w:        cfg.Options.Width,
			h:        cfg.Options.Height,
		})
	}
	return placements
}

// MarkOptions stamps a cross onto the selected yes/no checkbox of every
// decided option. Undecided options are left untouched; with no decisions the
// input document is returned unchanged.
func MarkOptions(pdf []byte, cfg *ConsentPdfConfig, opts map[int]bool) ([]byte, error) {
	placements := markPlacements(cfg, opts)
	if len(placements) == 0 {
		return pdf, nil
	}

	doc := pdf
	for _, p := range placements {
		desc := fmt.Sprintf(
			"font:%s, points:%d, scale:1 abs, pos:bl, off:%.2f %.2f, fillc:#000000, rot:0, op:1",
			cfg.Fonts.Family(), textPoints(p.h), p.x, p.y,
		)
		wm, err := api.TextWatermark("X", desc, true, false, types.POINTS)
		if err != nil {
			return nil, fmt.Errorf("failed to build option mark: %w", err)
		}

		var buf bytes.Buffer
		pages := []string{strconv.Itoa(p.page + 1)}
		if err := api.AddWatermarks(bytes.NewReader(doc), &buf, pages, wm, nil); err != nil {
			return nil, fmt.Errorf("failed to mark option %d: %w", p.optionID, err)
		}
		doc = buf.Bytes()
	}
	return doc, nil
}
