package genai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
)

// maxReferenceImages is the most reference parts one edit request may carry.
const maxReferenceImages = 3

type ClientConfig struct {
	APIKey     string
	TextModel  string
	ImageModel string
}

// Client adapts the Gemini API to the generative ports. It performs no
// retries; drop and abort policy belongs to the scheduler and planner.
type Client struct {
	api        *genai.Client
	textModel  string
	imageModel string
	logger     *zap.Logger
}

func NewClient(ctx context.Context, cfg ClientConfig, logger *zap.Logger) (*Client, error) {
	api, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{
		api:        api,
		textModel:  cfg.TextModel,
		imageModel: cfg.ImageModel,
		logger:     logger,
	}, nil
}

func (c *Client) CompletePlan(ctx context.Context, req port.PlanRequest) (*port.PlanResult, error) {
	contents := []*genai.Content{
		genai.NewContentFromParts([]*genai.Part{
			genai.NewPartFromText(req.Instruction),
		}, genai.RoleUser),
	}
	config := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		ResponseSchema:   poseListSchema(),
	}

	resp, err := c.api.Models.GenerateContent(ctx, c.textModel, contents, config)
	if err != nil {
		return nil, fmt.Errorf("generate plan: %w", err)
	}

	poses, err := parsePlan([]byte(resp.Text()), req.FrameCount)
	if err != nil {
		return nil, err
	}

	result := &port.PlanResult{Poses: poses}
	if usage := resp.UsageMetadata; usage != nil {
		result.PromptTokens = int(usage.PromptTokenCount)
		result.CompletionTokens = int(usage.CandidatesTokenCount)
	}
	c.logger.Debug("plan completion succeeded",
		zap.Int("frames", len(poses)),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
	)
	return result, nil
}

func (c *Client) EditImage(ctx context.Context, req port.ImageEditRequest) (*port.ImageResult, error) {
	if len(req.References) == 0 || len(req.References) > maxReferenceImages {
		return nil, fmt.Errorf("image edit needs 1-%d references, got %d", maxReferenceImages, len(req.References))
	}

	parts := []*genai.Part{genai.NewPartFromText(req.Instruction)}
	for _, ref := range req.References {
		parts = append(parts, genai.NewPartFromBytes(ref.Data, ref.MIME))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.api.Models.GenerateContent(ctx, c.imageModel, contents, nil)
	if err != nil {
		return nil, fmt.Errorf("generate image: %w", err)
	}

	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part.InlineData != nil && len(part.InlineData.Data) > 0 {
				return &port.ImageResult{
					Data: part.InlineData.Data,
					MIME: part.InlineData.MIMEType,
				}, nil
			}
		}
	}
	return nil, port.ErrNoImageReturned
}

// parsePlan decodes and validates the structured completion. The model is
// asked for an exact-length array; anything else is an invalid plan, not a
// transport error.
func parsePlan(data []byte, frameCount int) ([]port.PoseDescriptor, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, fmt.Errorf("empty completion: %w", port.ErrInvalidPlan)
	}

	var poses []port.PoseDescriptor
	if err := json.Unmarshal([]byte(text), &poses); err != nil {
		return nil, fmt.Errorf("decode plan: %v: %w", err, port.ErrInvalidPlan)
	}
	if len(poses) != frameCount {
		return nil, fmt.Errorf("plan has %d records, want %d: %w", len(poses), frameCount, port.ErrInvalidPlan)
	}
	return poses, nil
}

// poseListSchema constrains the completion to the pose record shape. The
// exact array length is validated locally in parsePlan.
func poseListSchema() *genai.Schema {
	str := &genai.Schema{Type: genai.TypeString}
	return &genai.Schema{
		Type: genai.TypeArray,
		Items: &genai.Schema{
			Type: genai.TypeObject,
			Properties: map[string]*genai.Schema{
				"head":              str,
				"torso":             str,
				"left_arm":          str,
				"right_arm":         str,
				"left_leg":          str,
				"right_leg":         str,
				"facial_expression": str,
				"notes":             str,
			},
			Required: []string{
				"head", "torso", "left_arm", "right_arm",
				"left_leg", "right_leg", "facial_expression", "notes",
			},
		},
	}
}
