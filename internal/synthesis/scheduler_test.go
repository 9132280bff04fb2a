package synthesis

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// fakeEditor returns a unique payload per call and records every request.
// onCall, when set, can fail selected calls by sequence number (1-based).
type fakeEditor struct {
	mu     sync.Mutex
	calls  []port.ImageEditRequest
	onCall func(seq int) error
}

func (f *fakeEditor) EditImage(_ context.Context, req port.ImageEditRequest) (*port.ImageResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	seq := len(f.calls)
	f.mu.Unlock()

	if f.onCall != nil {
		if err := f.onCall(seq); err != nil {
			return nil, err
		}
	}
	return &port.ImageResult{
		Data: []byte(fmt.Sprintf("img-%03d", seq)),
		MIME: "image/png",
	}, nil
}

func (f *fakeEditor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func sourceFrame() Frame {
	return Frame{Data: []byte("source-upload"), MIME: "image/png"}
}

func runScheduler(t *testing.T, editor *fakeEditor, req Request, n int) (*FrameSet, *CostTracker, error) {
	t.Helper()
	frames, err := NewFrameSet(n)
	require.NoError(t, err)
	tracker := NewCostTracker(testRates)
	s := NewScheduler(editor, tracker, nil, zap.NewNop())
	return frames, tracker, s.Run(context.Background(), req, frames)
}

func TestSchedulerFillsAllSlotsNonCyclic(t *testing.T) {
	editor := &fakeEditor{}
	frames, tracker, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "a small jump"}, 9)
	require.NoError(t, err)

	assert.Equal(t, 9, frames.ResolvedCount(), "all slots non-blank")
	assert.Equal(t, 9, editor.callCount(), "two endpoints plus seven interior calls")

	cost, steps := tracker.Snapshot()
	assert.InDelta(t, 9*testRates.ImageCallUSD, cost, 1e-9)
	assert.Equal(t, 9, steps, "one step per resolved frame")
}

func TestSchedulerResolvesEndpointsFirst(t *testing.T) {
	editor := &fakeEditor{}
	frames, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "wave"}, 9)
	require.NoError(t, err)

	// Call 1 regenerates the upload (single reference); call 2 is the final
	// frame conditioned on the first frame plus the upload as style anchor.
	require.GreaterOrEqual(t, editor.callCount(), 2)
	require.Len(t, editor.calls[0].References, 1)
	assert.Equal(t, sourceFrame().Data, editor.calls[0].References[0].Data)

	require.Len(t, editor.calls[1].References, 2)
	first, _ := frames.Frame(0)
	assert.Equal(t, first.Data, editor.calls[1].References[0].Data)
	assert.Equal(t, sourceFrame().Data, editor.calls[1].References[1].Data)

	// Every interior call references previously generated payloads only,
	// so the endpoints were resolved before any interior slot was attempted.
	for _, call := range editor.calls[2:] {
		for _, ref := range call.References {
			assert.True(t, bytes.HasPrefix(ref.Data, []byte("img-")),
				"interior calls are conditioned on generated frames, got %q", ref.Data)
		}
	}
}

// bisectionRanges maps each interior slot of a 9-frame sequence to the range
// whose midpoint it is.
var bisectionRanges = map[int]Range{
	4: {0, 8},
	2: {0, 4},
	6: {4, 8},
	1: {0, 2},
	3: {2, 4},
	5: {4, 6},
	7: {6, 8},
}

func TestSchedulerMidpointsReferenceRangeBoundariesOnly(t *testing.T) {
	editor := &fakeEditor{}
	frames, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "spin"}, 9)
	require.NoError(t, err)

	// Recover which slot each call produced by matching its payload.
	slotByData := map[string]int{}
	for i := 0; i < frames.Len(); i++ {
		f, ok := frames.Frame(i)
		require.True(t, ok)
		slotByData[string(f.Data)] = i
	}

	for _, call := range editor.calls[2:] {
		require.Len(t, call.References, 2, "no pose plan: midpoints see exactly the two boundary frames")
		start, ok := slotByData[string(call.References[0].Data)]
		require.True(t, ok)
		end, ok := slotByData[string(call.References[1].Data)]
		require.True(t, ok)

		// Identify the produced slot from the result payloads.
		mid := (start + end) / 2
		r, known := bisectionRanges[mid]
		require.True(t, known, "unexpected midpoint %d", mid)
		assert.Equal(t, r, Range{start, end})
	}
}

func TestSchedulerCyclicCopiesFirstFrame(t *testing.T) {
	editor := &fakeEditor{}
	frames, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "idle bounce", Cyclic: true}, 9)
	require.NoError(t, err)

	assert.Equal(t, 9, frames.ResolvedCount())
	assert.Equal(t, 8, editor.callCount(), "cyclic saves the final-frame call")

	first, _ := frames.Frame(0)
	last, _ := frames.Frame(8)
	assert.Equal(t, first.Data, last.Data, "seamless loop by construction")

	// Slot 8 carries the first frame's bytes (call 1's result); no call of
	// its own produced it, and the copy does not alias slot 0's buffer.
	assert.Equal(t, "img-001", string(last.Data))
	if len(first.Data) > 0 && len(last.Data) > 0 {
		assert.NotSame(t, &first.Data[0], &last.Data[0])
	}
}

func TestSchedulerEndpointFailureIsFatal(t *testing.T) {
	boom := fmt.Errorf("edit: %w", port.ErrNoImageReturned)

	editor := &fakeEditor{onCall: func(seq int) error {
		if seq == 1 {
			return boom
		}
		return nil
	}}
	_, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "jump"}, 9)
	require.ErrorIs(t, err, port.ErrNoImageReturned)
	assert.Equal(t, 1, editor.callCount(), "run aborts before any further call")

	editor = &fakeEditor{onCall: func(seq int) error {
		if seq == 2 {
			return boom
		}
		return nil
	}}
	_, _, err = runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "jump"}, 9)
	require.ErrorIs(t, err, port.ErrNoImageReturned)
	assert.Equal(t, 2, editor.callCount())
}

func TestSchedulerInteriorFailurePropagatesToDescendants(t *testing.T) {
	// Call 3 is the first interior midpoint, slot 4. Its failure must starve
	// both child ranges, so no further interior call is ever issued.
	editor := &fakeEditor{onCall: func(seq int) error {
		if seq == 3 {
			return port.ErrNoImageReturned
		}
		return nil
	}}
	frames, tracker, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "kick"}, 9)
	require.NoError(t, err, "interior failures do not fail the run")

	assert.Equal(t, 3, editor.callCount(), "descendant ranges skip their calls")
	assert.Equal(t, 2, frames.ResolvedCount())
	assert.True(t, frames.Filled(0))
	assert.True(t, frames.Filled(8))
	for i := 1; i <= 7; i++ {
		assert.False(t, frames.Filled(i), "slot %d stays blank", i)
	}

	cost, steps := tracker.Snapshot()
	assert.InDelta(t, 2*testRates.ImageCallUSD, cost, 1e-9, "failed calls are not billed")
	assert.Equal(t, 2, steps)
}

func TestSchedulerDeepFailureLeavesSiblingSubtreeIntact(t *testing.T) {
	// Failing the midpoint of (0,4) (slot 2) starves slots 2, 1 and 3, while
	// the (4,8) subtree still resolves fully. The fake cannot see midpoint
	// indices, and level-2 calls run concurrently in either order, so the
	// doomed call is picked by its references: slot 0 (payload of call 1)
	// and slot 4 (payload of call 3).
	slot0 := []byte("img-001")
	slot4 := []byte("img-003")
	editor := &fakeEditor{}
	editor.onCall = func(seq int) error {
		editor.mu.Lock()
		call := editor.calls[seq-1]
		editor.mu.Unlock()
		if len(call.References) == 2 &&
			bytes.Equal(call.References[0].Data, slot0) &&
			bytes.Equal(call.References[1].Data, slot4) {
			return port.ErrNoImageReturned
		}
		return nil
	}

	frames, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "stretch"}, 9)
	require.NoError(t, err)

	for _, blank := range []int{1, 2, 3} {
		assert.False(t, frames.Filled(blank), "slot %d starves", blank)
	}
	for _, filled := range []int{0, 4, 5, 6, 7, 8} {
		assert.True(t, frames.Filled(filled), "slot %d resolves", filled)
	}
	assert.Equal(t, 6, frames.ResolvedCount())
}

func TestSchedulerEmitsProgressEvents(t *testing.T) {
	events := make(chan ProgressEvent, 64)
	editor := &fakeEditor{}

	frames, err := NewFrameSet(9)
	require.NoError(t, err)
	tracker := NewCostTracker(testRates)
	s := NewScheduler(editor, tracker, events, zap.NewNop())
	require.NoError(t, s.Run(context.Background(), Request{Source: sourceFrame(), Motion: "wave"}, frames))
	close(events)

	resolved := 0
	prev := 0
	for ev := range events {
		assert.Equal(t, 9, ev.Total)
		if !ev.Failed {
			resolved++
			assert.GreaterOrEqual(t, ev.Resolved, prev, "progress never decreases")
			prev = ev.Resolved
		}
	}
	assert.Equal(t, 9, resolved)
}

func TestSchedulerPosePlanAddsStyleAnchor(t *testing.T) {
	poses := make([]port.PoseDescriptor, 9)
	for i := range poses {
		poses[i] = port.PoseDescriptor{
			Head: "neutral", Torso: "upright",
			LeftArm: fmt.Sprintf("raised %d deg", i*10), RightArm: "relaxed",
			LeftLeg: "planted", RightLeg: "planted",
			FacialExpression: "calm",
		}
	}

	editor := &fakeEditor{}
	frames, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "raise left arm", Poses: poses}, 9)
	require.NoError(t, err)
	require.Equal(t, 9, frames.ResolvedCount())

	for i, call := range editor.calls[2:] {
		require.Len(t, call.References, 3, "call %d carries the upload as third reference", i+3)
		assert.Equal(t, sourceFrame().Data, call.References[2].Data)
		assert.Contains(t, call.Instruction, "left_arm", "delta prompting names the changing part")
	}
}

func TestSchedulerContextErrorsSurfaceAsFatalOnEndpoints(t *testing.T) {
	editor := &fakeEditor{onCall: func(seq int) error {
		return errors.New("context canceled")
	}}
	_, _, err := runScheduler(t, editor, Request{Source: sourceFrame(), Motion: "jump"}, 9)
	assert.Error(t, err)
}
