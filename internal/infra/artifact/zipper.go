package artifact

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// ZipArchiver packages resolved frames into an in-memory zip, one file per
// non-blank slot named frame_NN.png by slot index.
type ZipArchiver struct{}

func NewZipArchiver() *ZipArchiver {
	return &ZipArchiver{}
}

func (z *ZipArchiver) BuildArchive(ctx context.Context, frames []port.IndexedFrame) ([]byte, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to archive")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for _, f := range frames {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:   FrameFileName(f.Index),
			Method: zip.Deflate,
		})
		if err != nil {
			return nil, fmt.Errorf("create archive entry %d: %w", f.Index, err)
		}
		if _, err := w.Write(f.Data); err != nil {
			return nil, fmt.Errorf("write archive entry %d: %w", f.Index, err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize archive: %w", err)
	}
	return buf.Bytes(), nil
}

// FrameFileName names an archive entry by zero-padded slot index.
func FrameFileName(index int) string {
	return fmt.Sprintf("frame_%02d.png", index)
}
