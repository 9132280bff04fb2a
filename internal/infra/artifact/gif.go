package artifact

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color/palette"
	"image/draw"
	"image/gif"

	_ "image/jpeg"
	_ "image/png"

	xdraw "golang.org/x/image/draw"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// GIFEncoder builds the downloadable animated image: every non-blank frame is
// decoded, scaled to the first frame's dimensions, palettized and appended
// with a fixed display delay and an infinite loop.
type GIFEncoder struct {
	delay int // per frame, in hundredths of a second
}

func NewGIFEncoder(frameDelayMs int) *GIFEncoder {
	return &GIFEncoder{delay: frameDelayMs / 10}
}

func (e *GIFEncoder) EncodeAnimation(ctx context.Context, frames []port.IndexedFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to encode")
	}

	anim := &gif.GIF{LoopCount: 0}
	var bounds image.Rectangle

	for i, f := range frames {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		src, _, err := image.Decode(bytes.NewReader(f.Data))
		if err != nil {
			return nil, fmt.Errorf("decode frame %d: %w", f.Index, err)
		}

		if i == 0 {
			bounds = image.Rect(0, 0, src.Bounds().Dx(), src.Bounds().Dy())
		}

		uniform := image.NewRGBA(bounds)
		if src.Bounds().Dx() == bounds.Dx() && src.Bounds().Dy() == bounds.Dy() {
			draw.Draw(uniform, bounds, src, src.Bounds().Min, draw.Src)
		} else {
			xdraw.CatmullRom.Scale(uniform, bounds, src, src.Bounds(), xdraw.Src, nil)
		}

		paletted := image.NewPaletted(bounds, palette.Plan9)
		draw.FloydSteinberg.Draw(paletted, bounds, uniform, image.Point{})

		anim.Image = append(anim.Image, paletted)
		anim.Delay = append(anim.Delay, e.delay)
	}

	var buf bytes.Buffer
	if err := gif.EncodeAll(&buf, anim); err != nil {
		return nil, fmt.Errorf("encode gif: %w", err)
	}
	return buf.Bytes(), nil
}
