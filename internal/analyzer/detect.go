package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/carelens/behavior-worker/internal/behavior"
	"github.com/carelens/behavior-worker/internal/inference"
	"github.com/carelens/behavior-worker/internal/modelclient"
	"github.com/carelens/behavior-worker/internal/pool"
	"github.com/carelens/behavior-worker/internal/segment"
)

const detectionSchema = `{
  "type": "array",
  "items": {
    "type": "object",
    "required": ["behavior", "startSec", "endSec"],
    "properties": {
      "behavior": {"type": "string"},
      "modality": {"type": "string", "enum": ["visual", "audio"]},
      "startSec": {"type": "number"},
      "endSec": {"type": "number"}
    }
  }
}`

// DetectStage drives the per-segment detection prompt/schema flow,
// grounded on the worker's processJob step shape: one policy-wrapped
// call per unit, degraded to an empty result on SkipUnit.
type DetectStage struct {
	Client            modelclient.Client
	Policy            *inference.Policy
	Model             string
	Temperature       float64
	StrictTemperature float64
	MaxClipFPS        int
	MinActionDuration float64
	Concurrency       int
	Logger            *slog.Logger
}

type rawDetection struct {
	Behavior string  `json:"behavior"`
	Modality string  `json:"modality"`
	StartSec float64 `json:"startSec"`
	EndSec   float64 `json:"endSec"`
}

// Run executes detection for every window concurrently and returns the
// flattened, post-processed, absolute-time detection list.
func (d *DetectStage) Run(ctx context.Context, mediaURI, mimeType string, sourceFPS float64, windows []segment.Window) []Detection {
	perSegment := pool.RunTolerant(ctx, windows, d.Concurrency,
		func(ctx context.Context, w segment.Window, index int) ([]Detection, error) {
			return d.detectSegment(ctx, mediaURI, mimeType, sourceFPS, w, index)
		},
		func(w segment.Window, index int, err error) []Detection {
			d.Logger.Warn("detection segment skipped",
				slog.Int("segment_index", index),
				slog.Float64("start_sec", w.StartSec),
				slog.String("error", err.Error()),
			)
			return nil
		},
	)

	var all []Detection
	for _, ds := range perSegment {
		all = append(all, ds...)
	}
	return all
}

func (d *DetectStage) detectSegment(ctx context.Context, mediaURI, mimeType string, sourceFPS float64, w segment.Window, index int) ([]Detection, error) {
	fps := sourceFPS
	if fps <= 0 || fps > float64(d.MaxClipFPS) {
		fps = float64(d.MaxClipFPS)
	}

	label := fmt.Sprintf("detect-segment-%d", index)
	req := d.buildRequest(mediaURI, mimeType, w, fps, d.Temperature, false)

	text, err := d.call(ctx, label, req)
	if err != nil {
		return nil, err
	}

	raw, perr := parseDetectionArray(text)
	if perr != nil {
		strictReq := d.buildRequest(mediaURI, mimeType, w, fps, d.StrictTemperature, true)
		text, err = d.call(ctx, label+"-strict", strictReq)
		if err != nil {
			return nil, err
		}
		raw, perr = parseDetectionArray(text)
		if perr != nil {
			d.Logger.Warn("detection response not parseable after strict retry",
				slog.Int("segment_index", index),
			)
			return nil, nil
		}
	}

	return d.postProcess(raw, w), nil
}

func (d *DetectStage) call(ctx context.Context, label string, req modelclient.GenerateRequest) (string, error) {
	result, err := d.Policy.Call(ctx, label, func(callCtx context.Context) (any, error) {
		return d.Client.Generate(callCtx, req)
	})
	if err != nil {
		return "", err
	}
	resp, _ := result.(modelclient.GenerateResponse)
	return resp.Text, nil
}

func (d *DetectStage) buildRequest(mediaURI, mimeType string, w segment.Window, fps, temperature float64, strict bool) modelclient.GenerateRequest {
	prompt := buildDetectionPrompt(w, strict)
	return modelclient.GenerateRequest{
		Model:       d.Model,
		Temperature: temperature,
		Parts: []modelclient.Part{
			{
				MediaURI:      mediaURI,
				MediaMimeType: mimeType,
				StartOffset:   fmt.Sprintf("%.3fs", w.StartSec),
				EndOffset:     fmt.Sprintf("%.3fs", w.EndSec),
				FPS:           int(math.Round(fps)),
			},
			{Text: prompt},
		},
		ResponseMimeType: "application/json",
		ResponseSchema:   []byte(detectionSchema),
	}
}

func buildDetectionPrompt(w segment.Window, strict bool) string {
	var sb strings.Builder

	sb.WriteString("You are analyzing a clip of a child for behavior-analysis research. ")
	sb.WriteString("Identify every occurrence of the following behaviors, each belonging to exactly one vocabulary:\n\n")

	sb.WriteString("Visual behaviors:\n")
	for _, l := range behavior.VisualLabels() {
		mod, _ := behavior.ModalityOf(l)
		_ = mod
		sb.WriteString(fmt.Sprintf("- %s\n", l))
	}
	sb.WriteString("\nAudio behaviors:\n")
	for _, l := range behavior.AudioLabels() {
		sb.WriteString(fmt.Sprintf("- %s\n", l))
	}

	sb.WriteString("\nDefinitions:\n")
	for _, def := range behavior.Definitions() {
		sb.WriteString(fmt.Sprintf("- %s (%s): %s\n", def.Label, def.Modality, def.Description))
	}

	sb.WriteString(fmt.Sprintf(
		"\nThis clip spans %.3fs to %.3fs of the source video. Report all timestamps relative to "+
			"the START of THIS clip (clip-relative), not the full video. "+
			"Each continuous episode of a behavior must be reported as a single span, not fragmented "+
			"into per-second pieces. Respond with a JSON array of objects with fields "+
			"behavior, modality, startSec, endSec.\n",
		w.StartSec, w.EndSec,
	))

	if strict {
		sb.WriteString("\nRespond with strict JSON only: a bare JSON array, no markdown fences, no commentary.\n")
	}

	return sb.String()
}

// parseDetectionArray tries a direct JSON-array parse first, then falls
// back to lenient extraction of the first balanced [...] substring in
// text (models occasionally wrap JSON in markdown fences or prose).
func parseDetectionArray(text string) ([]rawDetection, error) {
	var out []rawDetection
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start < 0 || end < 0 || end < start {
		return nil, fmt.Errorf("analyzer: no JSON array found in response")
	}
	candidate := text[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return nil, fmt.Errorf("analyzer: lenient JSON extraction failed: %w", err)
	}
	return out, nil
}

// postProcess normalizes raw per-segment detections into absolute-time,
// vocabulary-closed Detection values, per spec.md §4.6.
func (d *DetectStage) postProcess(raw []rawDetection, w segment.Window) []Detection {
	out := make([]Detection, 0, len(raw))

	for _, r := range raw {
		label := behavior.Label(strings.ToLower(strings.TrimSpace(r.Behavior)))
		if !behavior.IsValid(label) {
			continue
		}

		modality := behavior.Modality(strings.ToLower(strings.TrimSpace(r.Modality)))
		if !modality.IsValid() {
			inferred, ok := behavior.ModalityOf(label)
			if !ok {
				continue
			}
			modality = inferred
		}

		startSec := r.StartSec + w.StartSec
		endSec := r.EndSec + w.StartSec

		if math.IsNaN(startSec) || math.IsNaN(endSec) || math.IsInf(startSec, 0) || math.IsInf(endSec, 0) {
			continue
		}
		if endSec < startSec {
			continue
		}
		if endSec-startSec < d.MinActionDuration {
			endSec = startSec + d.MinActionDuration
		}

		out = append(out, Detection{
			Behavior: label,
			Modality: modality,
			StartSec: roundTo3(startSec),
			EndSec:   roundTo3(endSec),
		})
	}

	return out
}

func roundTo3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
