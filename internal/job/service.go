package job

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/carelens/behavior-worker/internal/analyzer"
	"github.com/carelens/behavior-worker/internal/storage"
)

// StorageEvent is the normalized form of a storage-finalize notification,
// per spec.md §3.
type StorageEvent struct {
	EventType  string
	BucketName string
	ObjectName string
}

const eventTypeFinalize = "OBJECT_FINALIZE"

// Result is the informational outcome of processing one event. The HTTP
// adapter maps a non-nil error to a 500 so the push subscription
// retries; Result itself is never an error signal.
type Result struct {
	Ignored bool
	Reason  string
}

// Processor runs the 9-step job lifecycle described in spec.md §4.9.
type Processor struct {
	Repo         *Repository
	Storage      storage.Storage
	Orchestrator *analyzer.Orchestrator

	Model          string
	VideosPrefix   string
	AnalysisPrefix string

	TempDir string

	Logger *slog.Logger
}

// Process runs one storage-finalize event to completion.
func (p *Processor) Process(ctx context.Context, event StorageEvent) (Result, error) {
	if event.EventType != eventTypeFinalize || !strings.HasPrefix(event.ObjectName, p.VideosPrefix+"/") {
		return Result{Ignored: true, Reason: "not_in_scope"}, nil
	}

	icdKey, uploadEpoch, err := parseVideoPath(event.ObjectName)
	if err != nil {
		return Result{}, fmt.Errorf("job: parse object path %q: %w", event.ObjectName, err)
	}

	traceID := uuid.NewString()
	logger := p.Logger.With(slog.String("trace_id", traceID), slog.String("icd_key", icdKey), slog.String("object", event.ObjectName))

	sess, sessPath, err := p.Repo.Resolve(ctx, icdKey, uploadEpoch, event.ObjectName)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Result{}, fmt.Errorf("job: %w", err)
		}
		return Result{}, err
	}

	if sess.ReadyForIdempotentSkip() {
		logger.Info("session already processed, skipping")
		return Result{Ignored: true, Reason: "already_processed"}, nil
	}

	if err := sess.TransitionTo(StatusProcessing); err != nil {
		return Result{}, fmt.Errorf("job: transition to processing: %w", err)
	}
	now := time.Now().UTC()
	sess.ProcessingStartedAt = &now
	sess.ProcessingError = nil

	if err := p.Repo.Write(ctx, sessPath, sess); err != nil {
		return Result{}, err
	}

	if err := p.runPipeline(ctx, logger, icdKey, uploadEpoch, event, sessPath); err != nil {
		p.markFailed(ctx, logger, sessPath, err)
		return Result{}, err
	}

	return Result{}, nil
}

func (p *Processor) runPipeline(ctx context.Context, logger *slog.Logger, icdKey string, uploadEpoch *int64, event StorageEvent, sessPath string) error {
	workDir, err := os.MkdirTemp(p.TempDir, "job-*")
	if err != nil {
		return fmt.Errorf("job: create temp dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(workDir); rmErr != nil {
			logger.Warn("failed to remove job temp dir", slog.String("dir", workDir), slog.String("error", rmErr.Error()))
		}
	}()

	sourcePath := path.Join(workDir, "source.mp4")
	if err := p.Storage.DownloadToFile(ctx, event.ObjectName, sourcePath); err != nil {
		return fmt.Errorf("job: download source: %w", err)
	}

	artifacts, err := p.Orchestrator.Run(ctx, sourcePath, workDir, "video/mp4")
	if err != nil {
		return fmt.Errorf("job: run analyzer: %w", err)
	}

	analysisDestPrefix := fmt.Sprintf("%s/%s/%s", p.AnalysisPrefix, icdKey, epochString(uploadEpoch))
	uploads := map[string]string{
		artifacts.RawJSONPath:       analysisDestPrefix + "/behaviors_raw.json",
		artifacts.ValidatedJSONPath: analysisDestPrefix + "/behaviors_validated.json",
		artifacts.FinalJSONPath:     analysisDestPrefix + "/behaviors_final.json",
		artifacts.VideoPath:         analysisDestPrefix + "/video_with_behaviors.mp4",
	}

	jsonOpts := storage.PutOptions{ContentType: "application/json", CacheControl: "no-store"}
	videoOpts := storage.PutOptions{ContentType: "video/mp4", CacheControl: "no-store"}

	for srcPath, destKey := range uploads {
		opts := jsonOpts
		if strings.HasSuffix(destKey, ".mp4") {
			opts = videoOpts
		}
		if err := p.Storage.UploadFromFile(ctx, srcPath, destKey, opts); err != nil {
			return fmt.Errorf("job: upload artifact %s: %w", destKey, err)
		}
	}

	finalReport, err := readFinalReport(ctx, p.Storage, uploads[artifacts.FinalJSONPath])
	if err != nil {
		return fmt.Errorf("job: read final report for summary: %w", err)
	}

	return p.commitSuccess(ctx, sessPath, event.ObjectName, finalReport, uploads, artifacts)
}

func (p *Processor) commitSuccess(ctx context.Context, sessPath, sourceObject string, report analyzer.FinalReport, uploads map[string]string, artifacts analyzer.ArtifactSet) error {
	sess, err := p.Repo.Read(ctx, sessPath)
	if err != nil {
		return err
	}

	if err := sess.TransitionTo(StatusPendingReview); err != nil {
		return fmt.Errorf("job: transition to pending review: %w", err)
	}

	now := time.Now().UTC()
	sess.PendingReviewAt = &now
	sess.DominantCategory = report.DominantCategory
	sess.BehaviorSummary = summarizeBehaviors(report)

	analysisPath := uploads[artifacts.FinalJSONPath]
	videoPath := uploads[artifacts.VideoPath]
	sess.AnalysisJSONPath = &analysisPath
	sess.ProcessedVideoPath = &videoPath
	sess.LinkedSourceVideoPath = sourceObject

	sess.Worker = &WorkerInfo{
		Model:               p.Model,
		DurationSec:         artifacts.SourceDurationSec,
		MergedBehaviorCount: report.TotalBehaviors,
	}

	return p.Repo.Write(ctx, sessPath, sess)
}

func (p *Processor) markFailed(ctx context.Context, logger *slog.Logger, sessPath string, cause error) {
	sess, err := p.Repo.Read(ctx, sessPath)
	if err != nil {
		logger.Error("failed to re-read session while marking failure", slog.String("error", err.Error()))
		return
	}

	if err := sess.TransitionTo(StatusFailed); err != nil {
		logger.Error("failed to transition session to failed", slog.String("error", err.Error()))
		return
	}

	now := time.Now().UTC()
	msg := cause.Error()
	sess.FailedAt = &now
	sess.ProcessingError = &msg

	if err := p.Repo.Write(ctx, sessPath, sess); err != nil {
		logger.Error("failed to write failed session", slog.String("error", err.Error()))
	}
}

func summarizeBehaviors(report analyzer.FinalReport) map[string]int {
	summary := make(map[string]int)
	for _, b := range report.Behaviors {
		summary[string(b.Behavior)]++
	}
	return summary
}

func readFinalReport(ctx context.Context, store storage.Storage, path string) (analyzer.FinalReport, error) {
	var report analyzer.FinalReport
	err := store.ReadJSON(ctx, path, &report)
	return report, err
}

// parseVideoPath extracts icdKey (the directory component immediately
// preceding the filename) and uploadEpoch (the filename's leading
// numeric segment, or nil) from a source video object path shaped
// "<videos-prefix>/<icdKey>/<epoch>-<safeName>".
func parseVideoPath(objectName string) (icdKey string, uploadEpoch *int64, err error) {
	parts := strings.Split(objectName, "/")
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("job: object path %q has no icdKey component", objectName)
	}

	icdKey = parts[len(parts)-2]
	filename := parts[len(parts)-1]

	dash := strings.Index(filename, "-")
	if dash <= 0 {
		return icdKey, nil, nil
	}
	epoch, convErr := strconv.ParseInt(filename[:dash], 10, 64)
	if convErr != nil {
		return icdKey, nil, nil
	}
	return icdKey, &epoch, nil
}

func epochString(uploadEpoch *int64) string {
	if uploadEpoch == nil {
		return "unknown"
	}
	return strconv.FormatInt(*uploadEpoch, 10)
}
