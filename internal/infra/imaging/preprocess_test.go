package imaging

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

// spriteImage builds a w×h image with a transparent background and an opaque
// square in the middle.
func spriteImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := h / 4; y < 3*h/4; y++ {
		for x := w / 4; x < 3*w/4; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	return encodePNG(t, img)
}

// opaqueImage builds a fully opaque w×h image.
func opaqueImage(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{R: 10, G: 120, B: 200, A: 255})
		}
	}
	return encodePNG(t, img)
}

func TestNormalizeKeepsSmallImages(t *testing.T) {
	p := NewPreprocessor()
	got, err := p.Normalize(context.Background(), spriteImage(t, 300, 200))
	require.NoError(t, err)

	assert.Equal(t, 300, got.Width)
	assert.Equal(t, 200, got.Height)
	assert.Equal(t, "image/png", got.MIME)
	assert.True(t, got.TransparentBackground)

	decoded, _, err := image.Decode(bytes.NewReader(got.Data))
	require.NoError(t, err)
	assert.Equal(t, 300, decoded.Bounds().Dx())
}

func TestNormalizeBoundsLongerSide(t *testing.T) {
	tests := []struct {
		w, h         int
		wantW, wantH int
	}{
		{1024, 512, 512, 256},
		{512, 1024, 256, 512},
		{2048, 2048, 512, 512},
		{513, 100, 512, 99},
		{512, 512, 512, 512},
	}
	p := NewPreprocessor()
	for _, tt := range tests {
		got, err := p.Normalize(context.Background(), opaqueImage(t, tt.w, tt.h))
		require.NoError(t, err, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantW, got.Width, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, got.Height, "%dx%d", tt.w, tt.h)
	}
}

func TestNormalizeDetectsOpaqueBackground(t *testing.T) {
	p := NewPreprocessor()
	got, err := p.Normalize(context.Background(), opaqueImage(t, 64, 64))
	require.NoError(t, err)
	assert.False(t, got.TransparentBackground)
}

func TestNormalizeOneOpaqueCornerIsNotTransparent(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 32, 32))
	img.SetNRGBA(31, 31, color.NRGBA{A: 255})

	p := NewPreprocessor()
	got, err := p.Normalize(context.Background(), encodePNG(t, img))
	require.NoError(t, err)
	assert.False(t, got.TransparentBackground)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	p := NewPreprocessor()
	for _, data := range [][]byte{
		nil,
		{},
		[]byte("definitely not an image"),
		{0x89, 0x50, 0x4e},
	} {
		_, err := p.Normalize(context.Background(), data)
		assert.ErrorIs(t, err, port.ErrUnsupportedImage)
	}
}

func TestNormalizeAlphaRoundTrips(t *testing.T) {
	p := NewPreprocessor()
	got, err := p.Normalize(context.Background(), spriteImage(t, 1000, 1000))
	require.NoError(t, err)
	require.Equal(t, 512, got.Width)

	decoded, _, err := image.Decode(bytes.NewReader(got.Data))
	require.NoError(t, err)

	// Center stays opaque, corner stays transparent after scaling.
	b := decoded.Bounds()
	_, _, _, centerA := decoded.At(b.Dx()/2, b.Dy()/2).RGBA()
	assert.NotZero(t, centerA)
	_, _, _, cornerA := decoded.At(0, 0).RGBA()
	assert.Zero(t, cornerA)
}
