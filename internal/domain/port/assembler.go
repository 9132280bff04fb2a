package port

import "context"

// IndexedFrame is one resolved frame slot handed to the assemblers. Index is
// the slot position in the fixed-length sequence, not a dense counter, so
// gaps left by failed interior frames survive into artifact naming.
type IndexedFrame struct {
	Index int
	Data  []byte
	MIME  string
}

// Archiver packages resolved frames into a multi-file archive, one image per
// non-blank slot named by zero-padded index.
type Archiver interface {
	BuildArchive(ctx context.Context, frames []IndexedFrame) ([]byte, error)
}

// AnimationEncoder encodes resolved frames into a single animated image with
// a fixed per-frame delay and an infinite loop flag.
type AnimationEncoder interface {
	EncodeAnimation(ctx context.Context, frames []IndexedFrame) ([]byte, error)
}
