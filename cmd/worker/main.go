package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/artifact"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/config"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/email"
	genaiclient "github.com/spriteforge/spriteforge-synthesis-service/internal/infra/genai"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/imaging"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/metrics"
	miniostorage "github.com/spriteforge/spriteforge-synthesis-service/internal/infra/minio"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/postgres"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/rabbitmq"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/infra/tracing"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/synthesis"
	"github.com/spriteforge/spriteforge-synthesis-service/internal/usecase"
	"github.com/spriteforge/spriteforge-synthesis-service/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	fatalOnErr(err, "load config")

	log, err := logger.New(cfg.LogLevel)
	fatalOnErr(err, "init logger")
	defer log.Sync()

	log.Info("starting spriteforge-synthesis-service")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Tracing (non-fatal if the collector is unavailable)
	tp, err := tracing.InitTracer(ctx, cfg.OTLPEndpoint)
	if err != nil {
		log.Warn("tracing init failed, continuing without tracing", zap.Error(err))
	} else {
		defer tp.Shutdown(ctx)
	}

	// Database
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	fatalOnErr(err, "connect to postgres")
	defer pool.Close()

	// Migrations
	err = postgres.RunMigrations(cfg.DatabaseURL, "migrations")
	if err != nil {
		log.Warn("migration warning", zap.Error(err))
	}

	// MinIO
	storage, err := miniostorage.NewStorage(miniostorage.StorageConfig{
		Endpoint:       cfg.MinIOEndpoint,
		AccessKey:      cfg.MinIOAccessKey,
		SecretKey:      cfg.MinIOSecretKey,
		UseSSL:         cfg.MinIOUseSSL,
		UploadBucket:   cfg.MinIOUploadBucket,
		ArtifactBucket: cfg.MinIOArtifactBucket,
	})
	fatalOnErr(err, "create minio storage")
	fatalOnErr(storage.EnsureBuckets(ctx), "ensure minio buckets")

	// RabbitMQ publisher connection
	rmqConn, err := amqp.Dial(cfg.RabbitMQURL)
	fatalOnErr(err, "connect to rabbitmq for publisher")
	defer rmqConn.Close()

	pub, err := rabbitmq.NewPublisher(rmqConn, cfg.RabbitMQExchange)
	fatalOnErr(err, "create rabbitmq publisher")

	statusPub := rabbitmq.NewStatusPublisher(pub)
	dlqPub := rabbitmq.NewDLQPublisher(pub, cfg.RabbitMQDLQ)

	// Generative client
	client, err := genaiclient.NewClient(ctx, genaiclient.ClientConfig{
		APIKey:     cfg.GeminiAPIKey,
		TextModel:  cfg.TextModel,
		ImageModel: cfg.ImageModel,
	}, log)
	fatalOnErr(err, "create genai client")

	// Infra adapters
	repo := postgres.NewJobRepository(pool)
	preprocessor := imaging.NewPreprocessor()
	archiver := artifact.NewZipArchiver()
	encoder := artifact.NewGIFEncoder(cfg.GIFFrameDelayMs)
	notifier := email.NewSMTPNotifier(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom, log)

	// Use case
	uc := usecase.NewSynthesizeAnimationUseCase(
		repo, storage, preprocessor, client,
		archiver, encoder,
		statusPub, dlqPub, notifier,
		log,
		usecase.SynthesizeAnimationConfig{
			Rates: synthesis.CostRates{
				InputTokenUSDPerM:  cfg.CostInputUSDPerMTok,
				OutputTokenUSDPerM: cfg.CostOutputUSDPerMTok,
				ImageCallUSD:       cfg.CostImageCallUSD,
			},
			PlannerEnabled: cfg.PlannerEnabled,
			MaxRetries:     cfg.MaxRetries,
		},
	)

	// Metrics server
	metricsSrv := metrics.StartMetricsServer(ctx, cfg.MetricsPort, log)

	// Consumer (worker pool)
	consumer, err := rabbitmq.NewConsumer(rabbitmq.ConsumerConfig{
		URL:         cfg.RabbitMQURL,
		Queue:       cfg.RabbitMQSynthesisQueue,
		Exchange:    cfg.RabbitMQExchange,
		DLQ:         cfg.RabbitMQDLQ,
		StatusQueue: cfg.RabbitMQStatusQueue,
		Prefetch:    cfg.RabbitMQPrefetch,
		WorkerCount: cfg.WorkerCount,
		BaseDelayMs: cfg.RetryBaseDelayMs,
	}, uc.Execute, log)
	fatalOnErr(err, "create consumer")

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	log.Info("spriteforge-synthesis-service started, consuming messages")

	if err := consumer.Start(ctx); err != nil {
		log.Error("consumer error", zap.Error(err))
	}

	// Shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Shutdown(shutdownCtx)

	consumer.Close()
	log.Info("spriteforge-synthesis-service stopped")
}

func fatalOnErr(err error, msg string) {
	if err != nil {
		panic(msg + ": " + err.Error())
	}
}
