package synthesis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// ErrInsufficientFrames means a run finished its schedule with fewer than two
// resolved frames. The run is a user-facing failure even though the
// individual calls "succeeded" in the scheduling sense.
var ErrInsufficientFrames = errors.New("fewer than two frames resolved")

// ImageEditor is the slice of the generative client the scheduler needs.
type ImageEditor interface {
	EditImage(ctx context.Context, req port.ImageEditRequest) (*port.ImageResult, error)
}

// ProgressEvent is emitted on the scheduler's notification channel whenever a
// slot resolves, or whenever a slot is given up on (failed call or skipped
// range). Resolved/Total render as "N/total" progress.
type ProgressEvent struct {
	Index    int
	Resolved int
	Total    int
	Failed   bool
}

// Request is the input of one scheduling run. Source is the preprocessed
// upload; it is the style anchor, never copied into a slot. Poses is nil when
// the planner is disabled.
type Request struct {
	Source Frame
	Motion string
	Cyclic bool
	Poses  []port.PoseDescriptor
}

// Scheduler fills all N frame slots by binary subdivision so that every
// generated frame is conditioned on its two temporally nearest already
// resolved neighbors. Each bisection level is one fan-out/fan-in unit: all
// image calls of a level run concurrently and the level boundary is a hard
// join. Interior failures leave their slot blank permanently; endpoint
// failures abort the run.
type Scheduler struct {
	editor  ImageEditor
	tracker *CostTracker
	events  chan<- ProgressEvent
	log     *zap.Logger
}

// NewScheduler builds a scheduler. events may be nil; sends never block, so a
// slow observer loses progress updates rather than stalling a level.
func NewScheduler(editor ImageEditor, tracker *CostTracker, events chan<- ProgressEvent, log *zap.Logger) *Scheduler {
	return &Scheduler{editor: editor, tracker: tracker, events: events, log: log}
}

func (s *Scheduler) Run(ctx context.Context, req Request, frames *FrameSet) error {
	n := frames.Len()
	last := n - 1

	if err := s.resolveFirst(ctx, req, frames); err != nil {
		return err
	}
	if err := s.resolveLast(ctx, req, frames); err != nil {
		return err
	}

	work := []Range{{Start: 0, End: last}}
	for level := 0; ; level++ {
		var next []Range
		var calls []Range
		for _, r := range work {
			if r.Terminal() {
				continue
			}
			if frames.Filled(r.Start) && frames.Filled(r.End) {
				calls = append(calls, r)
			} else {
				// A missing boundary slot poisons this range: no call is
				// issued, but the range still splits so deeper midpoints are
				// accounted for as given up.
				s.log.Warn("skipping range with missing boundary",
					zap.Int("start", r.Start),
					zap.Int("end", r.End),
					zap.Int("mid", r.Mid()),
				)
				s.emit(ProgressEvent{Index: r.Mid(), Resolved: frames.ResolvedCount(), Total: n, Failed: true})
			}
			a, b := r.Split()
			next = append(next, a, b)
		}
		if len(next) == 0 {
			break
		}

		s.runLevel(ctx, level, calls, req, frames)
		work = next
	}

	if frames.ResolvedCount() < 2 {
		return ErrInsufficientFrames
	}
	return nil
}

// resolveFirst regenerates the upload through the image model so the first
// frame shares the model's style with everything generated after it.
func (s *Scheduler) resolveFirst(ctx context.Context, req Request, frames *FrameSet) error {
	var pose *port.PoseDescriptor
	if len(req.Poses) > 0 {
		pose = &req.Poses[0]
	}
	res, err := s.editor.EditImage(ctx, port.ImageEditRequest{
		Instruction: firstFrameInstruction(pose),
		References: []port.ReferenceImage{
			{Data: req.Source.Data, MIME: req.Source.MIME},
		},
	})
	if err != nil {
		return fmt.Errorf("resolve first frame: %w", err)
	}
	s.tracker.AddImageCalls(1)
	if err := frames.Fill(0, Frame{Data: res.Data, MIME: res.MIME}); err != nil {
		return err
	}
	s.frameResolved(frames, 0)
	return nil
}

// resolveLast fills slot N-1. Cyclic runs copy slot 0 byte for byte with no
// image call, guaranteeing a seamless loop by construction.
func (s *Scheduler) resolveLast(ctx context.Context, req Request, frames *FrameSet) error {
	last := frames.Len() - 1
	first, _ := frames.Frame(0)

	if req.Cyclic {
		if err := frames.Fill(last, Frame{Data: append([]byte(nil), first.Data...), MIME: first.MIME}); err != nil {
			return err
		}
		s.frameResolved(frames, last)
		return nil
	}

	var pose *port.PoseDescriptor
	if len(req.Poses) > 0 {
		pose = &req.Poses[last]
	}
	res, err := s.editor.EditImage(ctx, port.ImageEditRequest{
		Instruction: lastFrameInstruction(req.Motion, pose),
		References: []port.ReferenceImage{
			{Data: first.Data, MIME: first.MIME},
			{Data: req.Source.Data, MIME: req.Source.MIME},
		},
	})
	if err != nil {
		return fmt.Errorf("resolve final frame: %w", err)
	}
	s.tracker.AddImageCalls(1)
	if err := frames.Fill(last, Frame{Data: res.Data, MIME: res.MIME}); err != nil {
		return err
	}
	s.frameResolved(frames, last)
	return nil
}

type midResult struct {
	index int
	frame *port.ImageResult
}

// runLevel fans out one call per resolvable range and joins them all before
// returning. Goroutines only read slots written by earlier levels, so the
// frame set needs no locking; the tracker takes the concurrent updates.
func (s *Scheduler) runLevel(ctx context.Context, level int, calls []Range, req Request, frames *FrameSet) {
	if len(calls) == 0 {
		return
	}
	s.log.Debug("bisection level dispatch", zap.Int("level", level), zap.Int("calls", len(calls)))

	results := make(chan midResult, len(calls))
	for _, r := range calls {
		go func(r Range) {
			mid := r.Mid()
			res, err := s.editor.EditImage(ctx, port.ImageEditRequest{
				Instruction: midpointInstruction(r.Start, mid, r.End, req.Poses),
				References:  s.midReferences(r, req, frames),
			})
			if err != nil {
				s.log.Warn("midpoint generation failed, slot left unfilled",
					zap.Int("slot", mid),
					zap.Error(err),
				)
				results <- midResult{index: mid}
				return
			}
			s.tracker.AddImageCalls(1)
			results <- midResult{index: mid, frame: res}
		}(r)
	}

	for range calls {
		r := <-results
		if r.frame == nil {
			s.emit(ProgressEvent{Index: r.index, Resolved: frames.ResolvedCount(), Total: frames.Len(), Failed: true})
			continue
		}
		if err := frames.Fill(r.index, Frame{Data: r.frame.Data, MIME: r.frame.MIME}); err != nil {
			s.log.Error("dropping duplicate midpoint result", zap.Int("slot", r.index), zap.Error(err))
			continue
		}
		s.frameResolved(frames, r.index)
	}
}

// midReferences conditions the midpoint only on its range boundaries, plus
// the original upload as a style anchor when a pose plan drives the prompt.
func (s *Scheduler) midReferences(r Range, req Request, frames *FrameSet) []port.ReferenceImage {
	start, _ := frames.Frame(r.Start)
	end, _ := frames.Frame(r.End)
	refs := []port.ReferenceImage{
		{Data: start.Data, MIME: start.MIME},
		{Data: end.Data, MIME: end.MIME},
	}
	if len(req.Poses) > 0 {
		refs = append(refs, port.ReferenceImage{Data: req.Source.Data, MIME: req.Source.MIME})
	}
	return refs
}

func (s *Scheduler) frameResolved(frames *FrameSet, index int) {
	s.tracker.StepCompleted()
	s.emit(ProgressEvent{Index: index, Resolved: frames.ResolvedCount(), Total: frames.Len()})
}

func (s *Scheduler) emit(ev ProgressEvent) {
	if s.events == nil {
		return
	}
	select {
	case s.events <- ev:
	default:
	}
}
