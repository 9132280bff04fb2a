package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending            JobStatus = "PENDING"
	JobStatusPlanning           JobStatus = "PLANNING"
	JobStatusResolvingEndpoints JobStatus = "RESOLVING_ENDPOINTS"
	JobStatusBisecting          JobStatus = "BISECTING"
	JobStatusAssembling         JobStatus = "ASSEMBLING"
	JobStatusCompleted          JobStatus = "COMPLETED"
	JobStatusFailed             JobStatus = "FAILED"
)

// AnimationJob is one synthesis run. A redelivered message starts a fresh
// attempt with fully reset run state; nothing from a previous attempt carries
// over except the attempt counter.
type AnimationJob struct {
	ID             uuid.UUID
	UserID         string
	SourceImageKey string
	Prompt         string
	Cyclic         bool
	TotalFrames    int
	ResolvedFrames int
	ArchiveKey     string
	AnimationKey   string
	CostUSD        float64
	Steps          int
	Status         JobStatus
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewAnimationJob(userID, sourceImageKey, prompt string, cyclic bool, totalFrames, maxAttempts int) *AnimationJob {
	now := time.Now().UTC()
	return &AnimationJob{
		ID:             uuid.New(),
		UserID:         userID,
		SourceImageKey: sourceImageKey,
		Prompt:         prompt,
		Cyclic:         cyclic,
		TotalFrames:    totalFrames,
		Status:         JobStatusPending,
		Attempt:        0,
		MaxAttempts:    maxAttempts,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Start begins a new attempt and resets everything a previous attempt may
// have written.
func (j *AnimationJob) Start(initial JobStatus) {
	j.Attempt++
	j.Status = initial
	j.ResolvedFrames = 0
	j.ArchiveKey = ""
	j.AnimationKey = ""
	j.CostUSD = 0
	j.Steps = 0
	j.ErrorMessage = ""
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnimationJob) Advance(status JobStatus) {
	j.Status = status
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnimationJob) MarkCompleted(archiveKey, animationKey string, resolvedFrames int, costUSD float64, steps int) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.ArchiveKey = archiveKey
	j.AnimationKey = animationKey
	j.ResolvedFrames = resolvedFrames
	j.CostUSD = costUSD
	j.Steps = steps
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *AnimationJob) MarkFailed(errMsg string, costUSD float64, steps int) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CostUSD = costUSD
	j.Steps = steps
	j.UpdatedAt = time.Now().UTC()
}

func (j *AnimationJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
