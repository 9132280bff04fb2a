package port

import (
	"context"
	"errors"
)

var (
	// ErrInvalidPlan is returned when the text completion did not produce an
	// array of exactly the requested number of well-formed pose records.
	ErrInvalidPlan = errors.New("generative client returned an invalid pose plan")

	// ErrNoImageReturned is returned when an image edit response carries no
	// inline image part.
	ErrNoImageReturned = errors.New("generative client returned no image")
)

// PoseDescriptor is one per-frame target pose produced by the planning call.
// All body-part fields are required; Notes may be empty.
type PoseDescriptor struct {
	Head             string `json:"head"`
	Torso            string `json:"torso"`
	LeftArm          string `json:"left_arm"`
	RightArm         string `json:"right_arm"`
	LeftLeg          string `json:"left_leg"`
	RightLeg         string `json:"right_leg"`
	FacialExpression string `json:"facial_expression"`
	Notes            string `json:"notes"`
}

type PlanRequest struct {
	Instruction string
	FrameCount  int
}

type PlanResult struct {
	Poses            []PoseDescriptor
	PromptTokens     int
	CompletionTokens int
}

type ReferenceImage struct {
	Data []byte
	MIME string
}

// ImageEditRequest carries 1-3 reference images plus one instruction.
type ImageEditRequest struct {
	Instruction string
	References  []ReferenceImage
}

type ImageResult struct {
	Data []byte
	MIME string
}

// GenerativeClient wraps the external image/text generation service. Both
// calls are fallible and independent; the client never retries, since retry
// and drop policy belongs to the caller.
type GenerativeClient interface {
	CompletePlan(ctx context.Context, req PlanRequest) (*PlanResult, error)
	EditImage(ctx context.Context, req ImageEditRequest) (*ImageResult, error)
}
