package entity

import "github.com/google/uuid"

// AnimationSynthesisMessage is the inbound message from the animation.synthesis queue.
type AnimationSynthesisMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	SourceImageKey string    `json:"source_image_key"`
	Prompt         string    `json:"prompt"`
	Cyclic         bool      `json:"cyclic"`
	UserEmail      string    `json:"user_email"`
}

// AnimationStatusMessage is the outbound message published to the animation.status
// queue on every state transition, including per-frame progress while bisecting.
type AnimationStatusMessage struct {
	JobID          uuid.UUID `json:"job_id"`
	UserID         string    `json:"user_id"`
	Status         JobStatus `json:"status"`
	ResolvedFrames int       `json:"resolved_frames"`
	TotalFrames    int       `json:"total_frames"`
	ArchiveKey     string    `json:"archive_key,omitempty"`
	AnimationKey   string    `json:"animation_key,omitempty"`
	CostUSD        float64   `json:"cost_usd"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
