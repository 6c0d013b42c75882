package pdfx

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	xdraw "golang.org/x/image/draw"
)

// isBlack reports whether the pixel is fully opaque black. Signature pads
// draw pure-black strokes, so anti-aliased fringe pixels do not count.
func isBlack(img image.Image, x, y int) bool {
	r, g, b, a := img.At(x, y).RGBA()
	return a == 0xffff && r == 0 && g == 0 && b == 0
}

// cropWhitespace returns the tightest sub-image containing every black pixel,
// scanning each edge inward. An image with no black pixels is returned whole;
// an already-tight image keeps its dimensions.
func cropWhitespace(img *image.NRGBA) *image.NRGBA {
	b := img.Bounds()

	top := b.Min.Y
scanTop:
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isBlack(img, x, y) {
				top = y
				break scanTop
			}
		}
	}

	bottom := b.Max.Y - 1
scanBottom:
	for y := b.Max.Y - 1; y >= b.Min.Y; y-- {
		for x := b.Min.X; x < b.Max.X; x++ {
			if isBlack(img, x, y) {
				bottom = y
				break scanBottom
			}
		}
	}

	left := b.Min.X
scanLeft:
	for x := b.Min.X; x < b.Max.X; x++ {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if isBlack(img, x, y) {
				left = x
				break scanLeft
			}
		}
	}

	right := b.Max.X - 1
scanRight:
	for x := b.Max.X - 1; x >= b.Min.X; x-- {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			if isBlack(img, x, y) {
				right = x
				break scanRight
			}
		}
	}

	// edges are inclusive
	return img.SubImage(image.Rect(left, top, right+1, bottom+1)).(*image.NRGBA)
}

// fitWithin scales the image down by the smaller axis ratio so it fits the
// max box. Images already inside the box are returned unscaled.
func fitWithin(img *image.NRGBA, maxWidth, maxHeight float64) *image.NRGBA {
	b := img.Bounds()
	w := float64(b.Dx())
	h := float64(b.Dy())

	ratio := maxWidth / w
	if r := maxHeight / h; r < ratio {
		ratio = r
	}
	if ratio >= 1 {
		return img
	}

	dst := image.NewNRGBA(image.Rect(0, 0, int(w*ratio), int(h*ratio)))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

// decodeNRGBA decodes PNG bytes into NRGBA so sub-imaging and scaling work on
// a concrete pixel format.
func decodeNRGBA(data []byte) (*image.NRGBA, error) {
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode signature image: %w", err)
	}
	if nrgba, ok := img.(*image.NRGBA); ok {
		return nrgba, nil
	}
	b := img.Bounds()
	nrgba := image.NewNRGBA(b)
	xdraw.Draw(nrgba, b, img, b.Min, xdraw.Src)
	return nrgba, nil
}

func encodePNG(img *image.NRGBA) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode signature image: %w", err)
	}
	return buf.Bytes(), nil
}
