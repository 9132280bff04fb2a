package synthesis

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// TextPlanner is the slice of the generative client the planner needs.
type TextPlanner interface {
	CompletePlan(ctx context.Context, req port.PlanRequest) (*port.PlanResult, error)
}

// Planner produces exactly one pose descriptor per frame via a single text
// completion. Any shape problem aborts the whole run before the first image
// call; only the token cost of the failed planning call is accrued.
type Planner struct {
	client  TextPlanner
	tracker *CostTracker
	log     *zap.Logger
}

func NewPlanner(client TextPlanner, tracker *CostTracker, log *zap.Logger) *Planner {
	return &Planner{client: client, tracker: tracker, log: log}
}

func (p *Planner) Plan(ctx context.Context, motion string, frameCount int, cyclic bool) ([]port.PoseDescriptor, error) {
	res, err := p.client.CompletePlan(ctx, port.PlanRequest{
		Instruction: planInstruction(motion, frameCount, cyclic),
		FrameCount:  frameCount,
	})
	if err != nil {
		return nil, fmt.Errorf("plan poses: %w", err)
	}

	p.tracker.AddTokenUsage(res.PromptTokens, res.CompletionTokens)
	p.tracker.StepCompleted()

	if len(res.Poses) != frameCount {
		return nil, fmt.Errorf("plan has %d frames, want %d: %w", len(res.Poses), frameCount, port.ErrInvalidPlan)
	}
	for i, pose := range res.Poses {
		if !validatePose(pose) {
			return nil, fmt.Errorf("plan frame %d is missing body-part fields: %w", i, port.ErrInvalidPlan)
		}
	}

	p.log.Debug("pose plan accepted",
		zap.Int("frames", frameCount),
		zap.Int("prompt_tokens", res.PromptTokens),
		zap.Int("completion_tokens", res.CompletionTokens),
	)
	return res.Poses, nil
}
