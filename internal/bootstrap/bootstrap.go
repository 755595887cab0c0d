// Package bootstrap wires the worker's dependencies into a Processor.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/carelens/behavior-worker/internal/analyzer"
	"github.com/carelens/behavior-worker/internal/config"
	"github.com/carelens/behavior-worker/internal/inference"
	"github.com/carelens/behavior-worker/internal/job"
	"github.com/carelens/behavior-worker/internal/media"
	"github.com/carelens/behavior-worker/internal/modelclient"
	"github.com/carelens/behavior-worker/internal/ratelimit"
	"github.com/carelens/behavior-worker/internal/storage"
)

// Dependencies holds all initialized dependencies for the HTTP server.
type Dependencies struct {
	Processor *job.Processor
}

// NewDependencies creates and initializes all dependencies for the application.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	store, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	client, err := modelclient.NewHTTPClient(cfg.ModelAPIKey)
	if err != nil {
		return nil, fmt.Errorf("create model client: %w", err)
	}
	logger.Info("model client initialized", slog.String("model", cfg.Model))

	processor := media.NewFFmpegProcessor("", "")
	if ffPath, ffErr := exec.LookPath("ffmpeg"); ffErr != nil {
		logger.Warn("ffmpeg not found in PATH; media processing may fail")
	} else {
		logger.Info("media processor initialized", slog.String("ffmpeg_path", ffPath))
	}

	controller := ratelimit.New()
	callTimeout := time.Duration(cfg.CallTimeoutMs) * time.Millisecond
	rateLimitPause := time.Duration(cfg.GlobalRateLimitPauseMs) * time.Millisecond
	retryInterval := time.Duration(cfg.TransientRetryIntervalMs) * time.Millisecond
	policy := inference.NewPolicy(controller, callTimeout, rateLimitPause, retryInterval, cfg.MaxTransientRetries, logger)

	orchestrator := &analyzer.Orchestrator{
		Media:  processor,
		Client: client,
		Detect: &analyzer.DetectStage{
			Client:            client,
			Policy:            policy,
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			StrictTemperature: cfg.StrictTemperature,
			MaxClipFPS:        cfg.MaxClipFPS,
			MinActionDuration: cfg.MinActionDurationSeconds,
			Concurrency:       cfg.Concurrency,
			Logger:            logger,
		},
		Validate: &analyzer.ValidateStage{
			Client:            client,
			Policy:            policy,
			Model:             cfg.Model,
			Temperature:       cfg.Temperature,
			StrictTemperature: cfg.StrictTemperature,
			MarginSeconds:     cfg.ValidationMarginSeconds,
			MinActionDuration: cfg.MinActionDurationSeconds,
			Concurrency:       cfg.Concurrency,
			Logger:            logger,
		},
		ChunkSeconds:        float64(cfg.ChunkSeconds),
		ChunkOverlapSeconds: float64(cfg.ChunkOverlapSeconds),
		MergeGapSeconds:     cfg.MergeGapSeconds,
		FileReadyTimeout:    time.Duration(cfg.FileReadyTimeoutMs) * time.Millisecond,
		FileReadyPoll:       1 * time.Second,
		Logger:              logger,
	}

	repo := job.NewRepository(store, cfg.SessionsPrefix)

	proc := &job.Processor{
		Repo:           repo,
		Storage:        store,
		Orchestrator:   orchestrator,
		Model:          cfg.Model,
		VideosPrefix:   cfg.VideosPrefix,
		AnalysisPrefix: cfg.AnalysisPrefix,
		TempDir:        cfg.TempDir,
		Logger:         logger,
	}

	return &Dependencies{Processor: proc}, nil
}

// initStorage creates the S3 storage backend from configuration.
func initStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.Storage, error) {
	s3Cfg := storage.S3Config{
		Bucket:          cfg.S3Bucket,
		Region:          cfg.S3Region,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
	}
	s3Store, err := storage.NewS3Storage(ctx, s3Cfg)
	if err != nil {
		return nil, fmt.Errorf("create S3 storage: %w", err)
	}
	logger.Info("S3 storage configured",
		slog.String("bucket", cfg.S3Bucket),
		slog.String("region", cfg.S3Region),
	)
	return s3Store, nil
}
