package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spriteforge_jobs_processed_total",
		Help: "Total number of synthesis jobs processed, by status",
	}, []string{"status"})

	JobStageDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spriteforge_job_stage_duration_seconds",
		Help:    "Duration of synthesis pipeline stages",
		Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
	}, []string{"stage"})

	FramesSynthesizedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spriteforge_frames_synthesized_total",
		Help: "Total number of frames resolved across all jobs",
	})

	FramesAbandonedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spriteforge_frames_abandoned_total",
		Help: "Total number of frame slots left blank by failed or skipped calls",
	})

	GenerationCostUSDTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spriteforge_generation_cost_usd_total",
		Help: "Accumulated generative API cost estimate in USD",
	})

	ActiveWorkers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spriteforge_active_workers",
		Help: "Number of currently active workers running synthesis jobs",
	})

	RetryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spriteforge_retry_total",
		Help: "Total number of job redeliveries",
	}, []string{"attempt"})
)
