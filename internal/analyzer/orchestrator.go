package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/carelens/behavior-worker/internal/media"
	"github.com/carelens/behavior-worker/internal/modelclient"
	"github.com/carelens/behavior-worker/internal/segment"
)

// Orchestrator sequences the 12-step burn/upload/detect/merge/validate/
// emit pipeline over a single downloaded source video, per spec.md §4.10.
type Orchestrator struct {
	Media    media.Processor
	Client   modelclient.Client
	Detect   *DetectStage
	Validate *ValidateStage

	ChunkSeconds        float64
	ChunkOverlapSeconds float64
	MergeGapSeconds     float64

	FileReadyTimeout time.Duration
	FileReadyPoll    time.Duration

	Logger *slog.Logger
}

var errFileNeverActive = fmt.Errorf("analyzer: uploaded media never reached ACTIVE state within deadline")

// Run takes a local source video path and a job-scoped working
// directory, and produces the four artifacts described in ArtifactSet.
func (o *Orchestrator) Run(ctx context.Context, sourcePath, workDir, mimeType string) (ArtifactSet, error) {
	analysisInput := filepath.Join(workDir, "analysis_input.mp4")
	if err := o.Media.BurnTimestampOverlay(ctx, sourcePath, analysisInput); err != nil {
		o.Logger.Warn("timestamp overlay burn failed, falling back to original video", slog.String("error", err.Error()))
		analysisInput = sourcePath
	}

	uploaded, err := o.Client.UploadMedia(ctx, analysisInput, mimeType)
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: upload media: %w", err)
	}
	if err := o.waitUntilActive(ctx, uploaded.Name); err != nil {
		return ArtifactSet{}, err
	}

	duration, err := o.Media.GetMediaDuration(ctx, analysisInput)
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: probe duration: %w", err)
	}
	fps, err := o.Media.GetMediaFPS(ctx, analysisInput)
	if err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: probe fps: %w", err)
	}
	windows := segment.Plan(duration, o.ChunkSeconds, o.ChunkOverlapSeconds)

	raw := o.Detect.Run(ctx, uploaded.URI, mimeType, fps, windows)
	rawPath := filepath.Join(workDir, "behaviors_raw.json")
	if err := writeJSONFile(rawPath, raw); err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: write raw detections: %w", err)
	}

	mergedForValidation := Merge(raw, o.MergeGapSeconds)

	validated := o.Validate.Run(ctx, uploaded.URI, mimeType, duration, mergedForValidation)

	kept := make([]Detection, 0, len(validated))
	for _, v := range validated {
		kept = append(kept, v.Detection)
	}
	validatedPath := filepath.Join(workDir, "behaviors_validated.json")
	if err := writeJSONFile(validatedPath, validated); err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: write validated detections: %w", err)
	}

	final := roundDetections(Merge(kept, o.MergeGapSeconds))
	dominant := dominantCategory(final)

	report := FinalReport{
		GeneratedAt:      time.Now().UTC().Format(time.RFC3339),
		DominantCategory: dominant,
		TotalBehaviors:   len(final),
		Behaviors:        final,
	}
	finalPath := filepath.Join(workDir, "behaviors_final.json")
	if err := writeJSONFile(finalPath, report); err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: write final report: %w", err)
	}

	srtPath := filepath.Join(workDir, "behaviors.srt")
	if err := os.WriteFile(srtPath, []byte(buildSRT(final)), 0600); err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: write subtitles: %w", err)
	}

	videoPath := filepath.Join(workDir, "video_with_behaviors.mp4")
	if err := o.Media.BurnSubtitles(ctx, analysisInput, srtPath, videoPath); err != nil {
		return ArtifactSet{}, fmt.Errorf("analyzer: burn subtitles: %w", err)
	}

	return ArtifactSet{
		RawJSONPath:       rawPath,
		ValidatedJSONPath: validatedPath,
		FinalJSONPath:     finalPath,
		VideoPath:         videoPath,
		SourceDurationSec: duration,
	}, nil
}

func (o *Orchestrator) waitUntilActive(ctx context.Context, name string) error {
	deadline := time.Now().Add(o.FileReadyTimeout)
	poll := o.FileReadyPoll
	if poll <= 0 {
		poll = time.Second
	}

	for {
		m, err := o.Client.GetMedia(ctx, name)
		if err != nil {
			return fmt.Errorf("analyzer: poll media readiness: %w", err)
		}
		if m.State == modelclient.MediaActive {
			return nil
		}
		if m.State == modelclient.MediaError {
			return fmt.Errorf("analyzer: uploaded media entered ERROR state")
		}
		if time.Now().After(deadline) {
			return errFileNeverActive
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}
}

func roundDetections(in []Detection) []Detection {
	out := make([]Detection, len(in))
	for i, d := range in {
		d.StartSec = roundTo3(d.StartSec)
		d.EndSec = roundTo3(d.EndSec)
		out[i] = d
	}
	return out
}

// dominantCategory returns the behavior with the highest span count,
// first-wins on ties (stable over the input's iteration order), or nil
// if there are no behaviors at all.
func dominantCategory(detections []Detection) *string {
	if len(detections) == 0 {
		return nil
	}

	counts := make(map[string]int)
	order := make([]string, 0)
	for _, d := range detections {
		key := string(d.Behavior)
		if _, seen := counts[key]; !seen {
			order = append(order, key)
		}
		counts[key]++
	}

	best := order[0]
	for _, key := range order[1:] {
		if counts[key] > counts[best] {
			best = key
		}
	}
	return &best
}

func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// buildSRT renders detections, in startSec order, as a sequence-numbered
// SRT subtitle track per spec.md §4.10 step 11.
func buildSRT(detections []Detection) string {
	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].StartSec < sorted[j].StartSec })

	out := ""
	for i, d := range sorted {
		out += fmt.Sprintf("%d\n%s --> %s\n[%s] %s\n\n",
			i+1,
			formatSRTTimestamp(d.StartSec),
			formatSRTTimestamp(d.EndSec),
			d.Modality,
			d.Behavior,
		)
	}
	return out
}

func formatSRTTimestamp(seconds float64) string {
	total := time.Duration(seconds * float64(time.Second))
	h := total / time.Hour
	total -= h * time.Hour
	m := total / time.Minute
	total -= m * time.Minute
	s := total / time.Second
	total -= s * time.Second
	ms := total / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", h, m, s, ms)
}
