package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/entity"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/domain/port"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/metrics"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/synthesis"
)

type SynthesizeAnimationUseCase struct {
	repo         port.JobRepository
	storage      port.ObjectStorage
	preprocessor port.Preprocessor
	client       port.GenerativeClient
	archiver     port.Archiver
	encoder      port.AnimationEncoder
	publisher    port.StatusPublisher
	dlq          port.DLQPublisher
	notifier     port.FailureNotifier
	logger       *zap.Logger
	rates        synthesis.CostRates
	plannerOn    bool
	maxRetry     int
}

type SynthesizeAnimationConfig struct {
	Rates          synthesis.CostRates
	PlannerEnabled bool
	MaxRetries     int
}

func NewSynthesizeAnimationUseCase(
	repo port.JobRepository,
	storage port.ObjectStorage,
	preprocessor port.Preprocessor,
	client port.GenerativeClient,
	archiver port.Archiver,
	encoder port.AnimationEncoder,
	publisher port.StatusPublisher,
	dlq port.DLQPublisher,
	notifier port.FailureNotifier,
	logger *zap.Logger,
	cfg SynthesizeAnimationConfig,
) *SynthesizeAnimationUseCase {
	return &SynthesizeAnimationUseCase{
		repo:         repo,
		storage:      storage,
		preprocessor: preprocessor,
		client:       client,
		archiver:     archiver,
		encoder:      encoder,
		publisher:    publisher,
		dlq:          dlq,
		notifier:     notifier,
		logger:       logger,
		rates:        cfg.Rates,
		plannerOn:    cfg.PlannerEnabled,
		maxRetry:     cfg.MaxRetries,
	}
}

func (uc *SynthesizeAnimationUseCase) Execute(ctx context.Context, rawMsg []byte) error {
	tracer := otel.Tracer("usecase")
	ctx, span := tracer.Start(ctx, "SynthesizeAnimationUseCase.Execute")
	defer span.End()

	totalTimer := time.Now()

	var msg entity.AnimationSynthesisMessage
	if err := json.Unmarshal(rawMsg, &msg); err != nil {
		uc.logger.Error("failed to unmarshal message", zap.Error(err), zap.ByteString("body", rawMsg))
		_ = uc.dlq.PublishToDLQ(ctx, rawMsg, "unmarshal_error: "+err.Error())
		return nil
	}

	span.SetAttributes(
		attribute.String("job.id", msg.JobID.String()),
		attribute.String("job.source_image_key", msg.SourceImageKey),
	)

	log := uc.logger.With(zap.String("job_id", msg.JobID.String()), zap.String("source_image_key", msg.SourceImageKey))

	job, err := uc.repo.FindByID(ctx, msg.JobID)
	if err != nil {
		job = entity.NewAnimationJob(msg.UserID, msg.SourceImageKey, msg.Prompt, msg.Cyclic, synthesis.FrameCount, uc.maxRetry)
		job.ID = msg.JobID
		if err := uc.repo.Create(ctx, job); err != nil {
			log.Error("failed to create job record", zap.Error(err))
			return fmt.Errorf("create job: %w", err)
		}
	}

	if !job.CanRetry() {
		log.Warn("job exhausted attempts, sending to DLQ")
		_ = uc.handlePermanentFailure(ctx, job, msg, rawMsg, "max attempts exceeded")
		return nil
	}

	initial := entity.JobStatusResolvingEndpoints
	if uc.plannerOn {
		initial = entity.JobStatusPlanning
	}
	job.Start(initial)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job at attempt start", zap.Error(err))
		return fmt.Errorf("update job: %w", err)
	}
	if job.Attempt > 1 {
		metrics.RetryTotal.WithLabelValues(strconv.Itoa(job.Attempt)).Inc()
	}
	uc.publishStatus(ctx, job, log)

	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if err := uc.runPipeline(ctx, job, msg, rawMsg, log); err != nil {
		return err
	}

	metrics.JobsProcessedTotal.WithLabelValues("completed").Inc()
	metrics.JobStageDuration.WithLabelValues("total").Observe(time.Since(totalTimer).Seconds())

	return nil
}

func (uc *SynthesizeAnimationUseCase) runPipeline(
	ctx context.Context,
	job *entity.AnimationJob,
	msg entity.AnimationSynthesisMessage,
	rawMsg []byte,
	log *zap.Logger,
) error {
	tracer := otel.Tracer("usecase")
	tracker := synthesis.NewCostTracker(uc.rates)

	// Fetch the character upload from object storage
	fetchStart := time.Now()
	ctxFetch, spanFetch := tracer.Start(ctx, "fetch_source")
	source, err := uc.storage.FetchSource(ctxFetch, msg.SourceImageKey)
	spanFetch.End()
	if err != nil {
		log.Error("failed to fetch source image", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "fetch_source: "+err.Error(), log)
	}
	metrics.JobStageDuration.WithLabelValues("fetch").Observe(time.Since(fetchStart).Seconds())

	// Normalize: bound the longest side, re-encode lossless
	prepStart := time.Now()
	ctxPrep, spanPrep := tracer.Start(ctx, "preprocess")
	normalized, err := uc.preprocessor.Normalize(ctxPrep, source)
	spanPrep.End()
	if err != nil {
		log.Error("source image rejected", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "preprocess: "+err.Error(), log)
	}
	if !normalized.TransparentBackground {
		log.Warn("source image has no transparent background, generated frames may keep it")
	}
	metrics.JobStageDuration.WithLabelValues("preprocess").Observe(time.Since(prepStart).Seconds())

	// Optional pose planning. A malformed plan aborts the run before the
	// first image call; only the planning call's token cost is accrued.
	var poses []port.PoseDescriptor
	if uc.plannerOn {
		planStart := time.Now()
		ctxPlan, spanPlan := tracer.Start(ctx, "plan")
		planner := synthesis.NewPlanner(uc.client, tracker, log)
		poses, err = planner.Plan(ctxPlan, msg.Prompt, synthesis.FrameCount, msg.Cyclic)
		spanPlan.End()
		metrics.JobStageDuration.WithLabelValues("plan").Observe(time.Since(planStart).Seconds())
		if err != nil {
			log.Error("pose planning failed", zap.Error(err))
			return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "plan: "+err.Error(), log)
		}

		job.Advance(entity.JobStatusResolvingEndpoints)
		if err := uc.repo.Update(ctx, job); err != nil {
			log.Error("failed to update job to RESOLVING_ENDPOINTS", zap.Error(err))
		}
		uc.publishStatus(ctx, job, log)
	}

	// Binary subdivision over the frame slots
	synthStart := time.Now()
	ctxSynth, spanSynth := tracer.Start(ctx, "synthesize")

	frames, err := synthesis.NewFrameSet(synthesis.FrameCount)
	if err != nil {
		spanSynth.End()
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "frame_set: "+err.Error(), log)
	}

	events := make(chan synthesis.ProgressEvent, synthesis.FrameCount*2)
	drained := make(chan struct{})
	go uc.watchProgress(ctx, job, events, drained, log)

	scheduler := synthesis.NewScheduler(uc.client, tracker, events, log)
	runErr := scheduler.Run(ctxSynth, synthesis.Request{
		Source: synthesis.Frame{Data: normalized.Data, MIME: normalized.MIME},
		Motion: msg.Prompt,
		Cyclic: msg.Cyclic,
		Poses:  poses,
	}, frames)
	close(events)
	<-drained
	spanSynth.End()
	metrics.JobStageDuration.WithLabelValues("synthesize").Observe(time.Since(synthStart).Seconds())

	if runErr != nil {
		log.Error("frame synthesis failed", zap.Error(runErr))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "synthesize: "+runErr.Error(), log)
	}

	job.Advance(entity.JobStatusAssembling)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to ASSEMBLING", zap.Error(err))
	}
	uc.publishStatus(ctx, job, log)

	// Package the resolved slots into both artifacts
	asmStart := time.Now()
	ctxAsm, spanAsm := tracer.Start(ctx, "assemble")
	resolved := synthesis.ResolvedFrames(frames)

	archive, err := uc.archiver.BuildArchive(ctxAsm, resolved)
	if err != nil {
		spanAsm.End()
		log.Error("archive assembly failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "build_archive: "+err.Error(), log)
	}

	animation, err := uc.encoder.EncodeAnimation(ctxAsm, playbackFrames(frames))
	if err != nil {
		spanAsm.End()
		log.Error("animation encoding failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "encode_animation: "+err.Error(), log)
	}
	spanAsm.End()
	metrics.JobStageDuration.WithLabelValues("assemble").Observe(time.Since(asmStart).Seconds())

	// Upload both artifacts
	upStart := time.Now()
	ctxUp, spanUp := tracer.Start(ctx, "upload_artifacts")
	base := synthesis.ArtifactBaseName(job.Prompt)
	archiveKey := fmt.Sprintf("%s/%s/%s.zip", job.UserID, job.ID.String(), base)
	animationKey := fmt.Sprintf("%s/%s/%s.gif", job.UserID, job.ID.String(), base)

	if err := uc.storage.UploadArchive(ctxUp, archiveKey, archive); err != nil {
		spanUp.End()
		log.Error("archive upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "upload_archive: "+err.Error(), log)
	}
	if err := uc.storage.UploadAnimation(ctxUp, animationKey, animation); err != nil {
		spanUp.End()
		log.Error("animation upload failed", zap.Error(err))
		return uc.handleRetryableFailure(ctx, job, msg, rawMsg, tracker, "upload_animation: "+err.Error(), log)
	}
	spanUp.End()
	metrics.JobStageDuration.WithLabelValues("upload").Observe(time.Since(upStart).Seconds())

	costUSD, steps := tracker.Snapshot()
	job.MarkCompleted(archiveKey, animationKey, frames.ResolvedCount(), costUSD, steps)
	if err := uc.repo.Update(ctx, job); err != nil {
		log.Error("failed to update job to COMPLETED", zap.Error(err))
		return fmt.Errorf("update job completed: %w", err)
	}

	uc.publishStatus(ctx, job, log)
	metrics.GenerationCostUSDTotal.Add(costUSD)

	log.Info("job completed",
		zap.Int("resolved_frames", frames.ResolvedCount()),
		zap.Int("total_frames", frames.Len()),
		zap.Float64("cost_usd", costUSD),
		zap.String("archive_key", archiveKey),
		zap.String("animation_key", animationKey),
	)

	return nil
}

// watchProgress relays scheduler events as interim status messages and
// metrics. It reads job identity fields only, which no other goroutine
// mutates while the scheduler runs.
func (uc *SynthesizeAnimationUseCase) watchProgress(
	ctx context.Context,
	job *entity.AnimationJob,
	events <-chan synthesis.ProgressEvent,
	drained chan<- struct{},
	log *zap.Logger,
) {
	defer close(drained)
	for ev := range events {
		if ev.Failed {
			metrics.FramesAbandonedTotal.Inc()
			continue
		}
		metrics.FramesSynthesizedTotal.Inc()

		status := entity.JobStatusBisecting
		if ev.Resolved < 2 {
			status = entity.JobStatusResolvingEndpoints
		}
		interim := entity.AnimationStatusMessage{
			JobID:          job.ID,
			UserID:         job.UserID,
			Status:         status,
			ResolvedFrames: ev.Resolved,
			TotalFrames:    ev.Total,
			Attempt:        job.Attempt,
			MaxAttempts:    job.MaxAttempts,
		}
		data, _ := json.Marshal(interim)
		if err := uc.publisher.PublishStatus(ctx, data); err != nil {
			log.Warn("failed to publish progress", zap.Error(err), zap.Int("frame", ev.Index))
		}
	}
}

func (uc *SynthesizeAnimationUseCase) handleRetryableFailure(
	ctx context.Context,
	job *entity.AnimationJob,
	msg entity.AnimationSynthesisMessage,
	rawMsg []byte,
	tracker *synthesis.CostTracker,
	errMsg string,
	log *zap.Logger,
) error {
	costUSD, steps := tracker.Snapshot()
	job.MarkFailed(errMsg, costUSD, steps)
	_ = uc.repo.Update(ctx, job)
	metrics.GenerationCostUSDTotal.Add(costUSD)

	if !job.CanRetry() {
		return uc.handlePermanentFailure(ctx, job, msg, rawMsg, errMsg)
	}

	uc.publishStatus(ctx, job, log)

	return fmt.Errorf("retryable failure (attempt %d/%d): %s", job.Attempt, job.MaxAttempts, errMsg)
}

func (uc *SynthesizeAnimationUseCase) handlePermanentFailure(
	ctx context.Context,
	job *entity.AnimationJob,
	msg entity.AnimationSynthesisMessage,
	rawMsg []byte,
	errMsg string,
) error {
	if job.Status != entity.JobStatusFailed {
		job.MarkFailed(errMsg, job.CostUSD, job.Steps)
		_ = uc.repo.Update(ctx, job)
	}

	_ = uc.dlq.PublishToDLQ(ctx, rawMsg, errMsg)

	uc.publishStatus(ctx, job, uc.logger)

	metrics.JobsProcessedTotal.WithLabelValues("dlq").Inc()

	if msg.UserEmail != "" {
		_ = uc.notifier.NotifyFailure(ctx, msg.UserEmail, job.ID.String(), job.Prompt, errMsg)
	}

	return nil
}

func (uc *SynthesizeAnimationUseCase) publishStatus(ctx context.Context, job *entity.AnimationJob, log *zap.Logger) {
	statusMsg := entity.AnimationStatusMessage{
		JobID:          job.ID,
		UserID:         job.UserID,
		Status:         job.Status,
		ResolvedFrames: job.ResolvedFrames,
		TotalFrames:    job.TotalFrames,
		ArchiveKey:     job.ArchiveKey,
		AnimationKey:   job.AnimationKey,
		CostUSD:        job.CostUSD,
		ErrorMessage:   job.ErrorMessage,
		Attempt:        job.Attempt,
		MaxAttempts:    job.MaxAttempts,
	}
	data, _ := json.Marshal(statusMsg)
	if err := uc.publisher.PublishStatus(ctx, data); err != nil {
		log.Error("failed to publish status", zap.Error(err))
	}
}

// playbackFrames expands the sparse frame set into a dense tick sequence for
// the animation encoder. Blank slots repeat the most recent resolved frame so
// overall timing is preserved.
func playbackFrames(fs *synthesis.FrameSet) []port.IndexedFrame {
	order := synthesis.PlaybackOrder(fs)
	out := make([]port.IndexedFrame, 0, len(order))
	for tick, slot := range order {
		f, ok := fs.Frame(slot)
		if !ok {
			continue
		}
		out = append(out, port.IndexedFrame{Index: tick, Data: f.Data, MIME: f.MIME})
	}
	return out
}
