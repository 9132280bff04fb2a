package imaging

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"

	_ "image/gif"
	_ "image/jpeg"

	xdraw "golang.org/x/image/draw"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// MaxDimension bounds the longer side of a normalized upload.
const MaxDimension = 512

// Preprocessor normalizes uploads for the generative pipeline: decode,
// downscale to MaxDimension on the longer side, re-encode as PNG so alpha
// round-trips, and flag transparent backgrounds by sampling the corners.
type Preprocessor struct{}

func NewPreprocessor() *Preprocessor {
	return &Preprocessor{}
}

func (p *Preprocessor) Normalize(_ context.Context, data []byte) (*port.NormalizedImage, error) {
	src, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode upload: %v: %w", err, port.ErrUnsupportedImage)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("zero-sized %s image: %w", format, port.ErrUnsupportedImage)
	}

	outW, outH := fitWithin(w, h, MaxDimension)
	dst := image.NewNRGBA(image.Rect(0, 0, outW, outH))
	if outW == w && outH == h {
		xdraw.Draw(dst, dst.Bounds(), src, bounds.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode normalized image: %w", err)
	}

	return &port.NormalizedImage{
		Data:                  buf.Bytes(),
		MIME:                  "image/png",
		Width:                 outW,
		Height:                outH,
		TransparentBackground: cornersTransparent(dst),
	}, nil
}

// fitWithin shrinks (never grows) w×h so the longer side is at most max,
// preserving aspect ratio and keeping both sides at least 1.
func fitWithin(w, h, max int) (int, int) {
	if w <= max && h <= max {
		return w, h
	}
	if w >= h {
		scaled := h * max / w
		if scaled < 1 {
			scaled = 1
		}
		return max, scaled
	}
	scaled := w * max / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, max
}

// cornersTransparent reports whether all four corner pixels are fully
// transparent. A single opaque corner means the background is not
// transparent.
func cornersTransparent(img *image.NRGBA) bool {
	b := img.Bounds()
	corners := []image.Point{
		{b.Min.X, b.Min.Y},
		{b.Max.X - 1, b.Min.Y},
		{b.Min.X, b.Max.Y - 1},
		{b.Max.X - 1, b.Max.Y - 1},
	}
	for _, pt := range corners {
		if img.NRGBAAt(pt.X, pt.Y).A != 0 {
			return false
		}
	}
	return true
}
