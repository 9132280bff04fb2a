package port

import (
	"context"
	"errors"
)

// ErrUnsupportedImage is returned for uploads that cannot be decoded or that
// decode to a zero-sized image.
var ErrUnsupportedImage = errors.New("upload is not a decodable image")

// NormalizedImage is the upload after preprocessing: longest side bounded,
// lossless-alpha encoding, transparency flag from the four corner pixels.
type NormalizedImage struct {
	Data                  []byte
	MIME                  string
	Width                 int
	Height                int
	TransparentBackground bool
}

type Preprocessor interface {
	Normalize(ctx context.Context, data []byte) (*NormalizedImage, error)
}
