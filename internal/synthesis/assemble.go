package synthesis

import (
	"strings"
	"unicode"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// DefaultArtifactName is used when the prompt slug comes out empty.
const DefaultArtifactName = "animation"

// maxArtifactNameLen bounds the slug taken from the user's prompt.
const maxArtifactNameLen = 30

// ResolvedFrames flattens the non-blank slots into the assembler input,
// keeping original slot indices so archive entries are named by position in
// the sequence.
func ResolvedFrames(fs *FrameSet) []port.IndexedFrame {
	var out []port.IndexedFrame
	for _, i := range fs.ResolvedIndices() {
		f, _ := fs.Frame(i)
		out = append(out, port.IndexedFrame{Index: i, Data: f.Data, MIME: f.MIME})
	}
	return out
}

// PlaybackOrder maps each playback tick to the slot displayed at that tick:
// the most recent non-blank slot at or before the tick, falling back to the
// first non-blank slot anywhere. Partially completed runs animate without
// flicker-to-blank. Returns nil when no slot is filled.
func PlaybackOrder(fs *FrameSet) []int {
	first := -1
	for i := 0; i < fs.Len(); i++ {
		if fs.Filled(i) {
			first = i
			break
		}
	}
	if first == -1 {
		return nil
	}

	order := make([]int, fs.Len())
	current := first
	for i := 0; i < fs.Len(); i++ {
		if fs.Filled(i) {
			current = i
		}
		if i < first {
			order[i] = first
		} else {
			order[i] = current
		}
	}
	return order
}

// ArtifactBaseName derives the artifact file name from the user's prompt: a
// sanitized, truncated slug, or DefaultArtifactName when nothing survives
// sanitization.
func ArtifactBaseName(prompt string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(prompt) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if r > unicode.MaxASCII {
				continue
			}
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
		if b.Len() >= maxArtifactNameLen {
			break
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return DefaultArtifactName
	}
	return slug
}
