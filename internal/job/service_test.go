package job

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/behavior-worker/internal/analyzer"
	"github.com/carelens/behavior-worker/internal/inference"
	"github.com/carelens/behavior-worker/internal/media"
	"github.com/carelens/behavior-worker/internal/modelclient"
	"github.com/carelens/behavior-worker/internal/ratelimit"
	"github.com/carelens/behavior-worker/internal/storage"
)

type fakeMediaProcessor struct {
	burnSubsErr error
}

func (f *fakeMediaProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	return 10, nil
}

func (f *fakeMediaProcessor) GetMediaFPS(ctx context.Context, path string) (float64, error) {
	return 24, nil
}

func (f *fakeMediaProcessor) BurnTimestampOverlay(ctx context.Context, input, output string) error {
	return os.WriteFile(output, []byte("overlay"), 0600)
}

func (f *fakeMediaProcessor) BurnSubtitles(ctx context.Context, input, srtPath, output string) error {
	if f.burnSubsErr != nil {
		return f.burnSubsErr
	}
	return os.WriteFile(output, []byte("final"), 0600)
}

var _ media.Processor = (*fakeMediaProcessor)(nil)

func newTestProcessor(t *testing.T, store storage.Storage, repo *Repository, mediaProc media.Processor, client modelclient.Client) *Processor {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	policy := inference.NewPolicy(ratelimit.New(), time.Second, 10*time.Millisecond, 5*time.Millisecond, 1, logger)

	orch := &analyzer.Orchestrator{
		Media:  mediaProc,
		Client: client,
		Detect: &analyzer.DetectStage{
			Client: client, Policy: policy, Model: "gemini-2.5-flash",
			Temperature: 0.2, MaxClipFPS: 24, MinActionDuration: 0.8,
			Concurrency: 2, Logger: logger,
		},
		Validate: &analyzer.ValidateStage{
			Client: client, Policy: policy, Model: "gemini-2.5-flash",
			Temperature: 0.2, MarginSeconds: 3.0, MinActionDuration: 0.8,
			Concurrency: 2, Logger: logger,
		},
		ChunkSeconds:        30,
		ChunkOverlapSeconds: 4,
		MergeGapSeconds:     2.5,
		FileReadyTimeout:    time.Second,
		FileReadyPoll:       time.Millisecond,
		Logger:              logger,
	}

	return &Processor{
		Repo:           repo,
		Storage:        store,
		Orchestrator:   orch,
		Model:          "gemini-2.5-flash",
		VideosPrefix:   "child-videos",
		AnalysisPrefix: "analysis",
		TempDir:        t.TempDir(),
		Logger:         logger,
	}
}

func seedSessionAndVideo(t *testing.T, store storage.Storage, repo *Repository) string {
	t.Helper()
	ctx := context.Background()
	objectName := "child-videos/icd-1/1700000000-clip.mp4"

	sess := &Session{Status: StatusAwaiting, StoragePath: objectName}
	require.NoError(t, repo.Write(ctx, "sessions/icd-1/1700000000.json", sess))
	require.NoError(t, store.UploadFromFile(ctx, writeTempVideo(t), objectName, storage.PutOptions{ContentType: "video/mp4"}))
	return objectName
}

func writeTempVideo(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "source.mp4")
	require.NoError(t, os.WriteFile(p, []byte("source"), 0600))
	return p
}

func TestProcessor_Process_IgnoresOutOfScopeEvent(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "sessions")
	proc := newTestProcessor(t, store, repo, &fakeMediaProcessor{}, modelclient.NewFake())

	result, err := proc.Process(context.Background(), StorageEvent{EventType: "OBJECT_DELETE", ObjectName: "child-videos/icd-1/1-clip.mp4"})
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, "not_in_scope", result.Reason)
}

func TestProcessor_Process_MissingSessionIsFatal(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "sessions")
	proc := newTestProcessor(t, store, repo, &fakeMediaProcessor{}, modelclient.NewFake())

	_, err = proc.Process(context.Background(), StorageEvent{EventType: eventTypeFinalize, ObjectName: "child-videos/missing/1-clip.mp4"})
	require.Error(t, err)
}

func TestProcessor_Process_IdempotencyGateSkipsAlreadyProcessed(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "sessions")
	analysisPath := "analysis/icd-1/1700000000/behaviors_final.json"
	videoPath := "analysis/icd-1/1700000000/video_with_behaviors.mp4"
	sess := &Session{
		Status:             StatusPendingReview,
		StoragePath:        "child-videos/icd-1/1700000000-clip.mp4",
		AnalysisJSONPath:   &analysisPath,
		ProcessedVideoPath: &videoPath,
	}
	require.NoError(t, repo.Write(context.Background(), "sessions/icd-1/1700000000.json", sess))

	proc := newTestProcessor(t, store, repo, &fakeMediaProcessor{}, modelclient.NewFake())
	result, err := proc.Process(context.Background(), StorageEvent{EventType: eventTypeFinalize, ObjectName: "child-videos/icd-1/1700000000-clip.mp4"})
	require.NoError(t, err)
	assert.True(t, result.Ignored)
	assert.Equal(t, "already_processed", result.Reason)
}

func TestProcessor_Process_SuccessfulPipelineMarksPendingReview(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "sessions")
	objectName := seedSessionAndVideo(t, store, repo)

	fake := modelclient.NewFake()
	fake.GenerateFunc = func(ctx context.Context, req modelclient.GenerateRequest) (modelclient.GenerateResponse, error) {
		if len(req.Parts) > 0 && req.Parts[0].FPS > 0 {
			return modelclient.GenerateResponse{Text: `[{"behavior":"hand-flapping","modality":"visual","startSec":1,"endSec":3}]`}, nil
		}
		return modelclient.GenerateResponse{Text: `{"correct":true,"startSec":1,"endSec":3}`}, nil
	}

	proc := newTestProcessor(t, store, repo, &fakeMediaProcessor{}, fake)
	result, err := proc.Process(context.Background(), StorageEvent{EventType: eventTypeFinalize, ObjectName: objectName})
	require.NoError(t, err)
	assert.False(t, result.Ignored)

	sess, err := repo.Read(context.Background(), "sessions/icd-1/1700000000.json")
	require.NoError(t, err)
	assert.Equal(t, StatusPendingReview, sess.Status)
	require.NotNil(t, sess.AnalysisJSONPath)
	require.NotNil(t, sess.ProcessedVideoPath)
	require.NotNil(t, sess.DominantCategory)
	assert.Equal(t, "hand-flapping", *sess.DominantCategory)
	require.NotNil(t, sess.Worker)
	assert.Equal(t, "gemini-2.5-flash", sess.Worker.Model)
	assert.Equal(t, objectName, sess.LinkedSourceVideoPath)
	assert.NotEmpty(t, sess.BehaviorSummary)

	exists, err := store.Exists(context.Background(), *sess.AnalysisJSONPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestProcessor_Process_PipelineFailureMarksSessionFailed(t *testing.T) {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	repo := NewRepository(store, "sessions")
	objectName := seedSessionAndVideo(t, store, repo)

	fake := modelclient.NewFake()
	fake.GenerateFunc = func(ctx context.Context, req modelclient.GenerateRequest) (modelclient.GenerateResponse, error) {
		return modelclient.GenerateResponse{Text: "[]"}, nil
	}

	proc := newTestProcessor(t, store, repo, &fakeMediaProcessor{burnSubsErr: assertErr("burn broke")}, fake)
	_, err = proc.Process(context.Background(), StorageEvent{EventType: eventTypeFinalize, ObjectName: objectName})
	require.Error(t, err)

	sess, readErr := repo.Read(context.Background(), "sessions/icd-1/1700000000.json")
	require.NoError(t, readErr)
	assert.Equal(t, StatusFailed, sess.Status)
	require.NotNil(t, sess.ProcessingError)
	assert.NotEmpty(t, *sess.ProcessingError)
	assert.NotNil(t, sess.FailedAt)
}

type assertErrType string

func (e assertErrType) Error() string { return string(e) }

func assertErr(msg string) error { return assertErrType(msg) }
