package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/entity"
)

type JobRepository struct {
	pool *pgxpool.Pool
}

func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

func (r *JobRepository) Create(ctx context.Context, job *entity.AnimationJob) error {
	query := `
		INSERT INTO animation_jobs (
			id, user_id, source_image_key, prompt, cyclic,
			total_frames, resolved_frames, archive_key, animation_key,
			cost_usd, steps, status, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

	_, err := r.pool.Exec(ctx, query,
		job.ID, job.UserID, job.SourceImageKey, job.Prompt, job.Cyclic,
		job.TotalFrames, job.ResolvedFrames, job.ArchiveKey, job.AnimationKey,
		job.CostUSD, job.Steps, string(job.Status), job.Attempt, job.MaxAttempts,
		job.ErrorMessage, job.CreatedAt, job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

func (r *JobRepository) Update(ctx context.Context, job *entity.AnimationJob) error {
	query := `
		UPDATE animation_jobs SET
			status=$2, resolved_frames=$3, archive_key=$4, animation_key=$5,
			cost_usd=$6, steps=$7, attempt=$8, error_message=$9,
			updated_at=$10, completed_at=$11
		WHERE id=$1`

	_, err := r.pool.Exec(ctx, query,
		job.ID, string(job.Status), job.ResolvedFrames, job.ArchiveKey, job.AnimationKey,
		job.CostUSD, job.Steps, job.Attempt, job.ErrorMessage,
		job.UpdatedAt, job.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	return nil
}

func (r *JobRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.AnimationJob, error) {
	query := `
		SELECT id, user_id, source_image_key, prompt, cyclic,
			total_frames, resolved_frames, archive_key, animation_key,
			cost_usd, steps, status, attempt, max_attempts,
			error_message, created_at, updated_at, completed_at
		FROM animation_jobs WHERE id=$1`

	job := &entity.AnimationJob{}
	var status string
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&job.ID, &job.UserID, &job.SourceImageKey, &job.Prompt, &job.Cyclic,
		&job.TotalFrames, &job.ResolvedFrames, &job.ArchiveKey, &job.AnimationKey,
		&job.CostUSD, &job.Steps, &status, &job.Attempt, &job.MaxAttempts,
		&job.ErrorMessage, &job.CreatedAt, &job.UpdatedAt, &job.CompletedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("find job by id: %w", err)
	}
	job.Status = entity.JobStatus(status)
	return job, nil
}
