package synthesis

import "fmt"

// FrameCount is the fixed length of every generated sequence. It is a
// build-time constant, not configuration.
const FrameCount = 9

// Frame is one owned image payload.
type Frame struct {
	Data []byte
	MIME string
}

// FrameSet holds the N slots of one generation run. A slot is written at most
// once; all writes happen on the scheduler goroutine at level joins, so no
// locking is needed.
type FrameSet struct {
	slots []*Frame
}

func NewFrameSet(n int) (*FrameSet, error) {
	if n < 3 {
		return nil, fmt.Errorf("frame count must be at least 3, got %d", n)
	}
	return &FrameSet{slots: make([]*Frame, n)}, nil
}

func (fs *FrameSet) Len() int {
	return len(fs.slots)
}

func (fs *FrameSet) Fill(i int, f Frame) error {
	if i < 0 || i >= len(fs.slots) {
		return fmt.Errorf("slot %d out of range [0,%d)", i, len(fs.slots))
	}
	if fs.slots[i] != nil {
		return fmt.Errorf("slot %d already filled", i)
	}
	fs.slots[i] = &f
	return nil
}

func (fs *FrameSet) Filled(i int) bool {
	return i >= 0 && i < len(fs.slots) && fs.slots[i] != nil
}

func (fs *FrameSet) Frame(i int) (Frame, bool) {
	if !fs.Filled(i) {
		return Frame{}, false
	}
	return *fs.slots[i], true
}

func (fs *FrameSet) ResolvedCount() int {
	n := 0
	for _, s := range fs.slots {
		if s != nil {
			n++
		}
	}
	return n
}

// ResolvedIndices returns the filled slot indices in ascending order.
func (fs *FrameSet) ResolvedIndices() []int {
	var idx []int
	for i, s := range fs.slots {
		if s != nil {
			idx = append(idx, i)
		}
	}
	return idx
}

// Range is a half-open gap (Start, End) of frame indices with End > Start.
type Range struct {
	Start int
	End   int
}

// Terminal reports whether the range can no longer contain an unresolved
// midpoint.
func (r Range) Terminal() bool {
	return r.End-r.Start <= 1
}

func (r Range) Mid() int {
	return (r.Start + r.End) / 2
}

// Split bisects the range into its two children. A range splits regardless of
// whether its midpoint was actually filled; children with a missing boundary
// skip their own call at the next level.
func (r Range) Split() (Range, Range) {
	mid := r.Mid()
	return Range{r.Start, mid}, Range{mid, r.End}
}
