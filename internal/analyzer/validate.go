package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/carelens/behavior-worker/internal/inference"
	"github.com/carelens/behavior-worker/internal/modelclient"
	"github.com/carelens/behavior-worker/internal/pool"
)

const validationSchema = `{
  "type": "object",
  "required": ["correct"],
  "properties": {
    "correct": {"type": "boolean"},
    "startSec": {"type": "number"},
    "endSec": {"type": "number"}
  }
}`

// ValidateStage re-confirms each merged span against a margin-expanded
// clip and refines its bounds, per spec.md §4.8.
type ValidateStage struct {
	Client            modelclient.Client
	Policy            *inference.Policy
	Model             string
	Temperature       float64
	StrictTemperature float64
	MarginSeconds     float64
	MinActionDuration float64
	Concurrency       int
	Logger            *slog.Logger
}

type rawValidation struct {
	Correct  bool     `json:"correct"`
	StartSec *float64 `json:"startSec"`
	EndSec   *float64 `json:"endSec"`
}

// Run validates every merged span concurrently against a video of total
// duration sourceDuration. Items the model confirms absent (correct =
// false) are dropped; skipped items are kept and treated as correct
// using their pre-validation bounds, per spec.md §4.8.
func (v *ValidateStage) Run(ctx context.Context, mediaURI, mimeType string, sourceDuration float64, spans []Detection) []ValidatedDetection {
	results := pool.RunTolerant(ctx, spans, v.Concurrency,
		func(ctx context.Context, span Detection, index int) (ValidatedDetection, error) {
			return v.validateSpan(ctx, mediaURI, mimeType, sourceDuration, span, index)
		},
		func(span Detection, index int, err error) ValidatedDetection {
			v.Logger.Warn("validation span skipped, treated as correct",
				slog.Int("span_index", index),
				slog.String("error", err.Error()),
			)
			return ValidatedDetection{Detection: span, Skipped: true}
		},
	)

	out := make([]ValidatedDetection, 0, len(results))
	for _, r := range results {
		if r.Dropped {
			continue
		}
		out = append(out, r)
	}
	return out
}

func (v *ValidateStage) validateSpan(ctx context.Context, mediaURI, mimeType string, sourceDuration float64, span Detection, index int) (ValidatedDetection, error) {
	localStart := math.Max(0, span.StartSec-v.MarginSeconds)
	localEnd := math.Min(sourceDuration, span.EndSec+v.MarginSeconds)

	label := fmt.Sprintf("validate-span-%d", index)
	req := v.buildRequest(mediaURI, mimeType, span, localStart, localEnd, v.Temperature, false)

	text, err := v.call(ctx, label, req)
	if err != nil {
		return ValidatedDetection{}, err
	}

	raw, perr := parseValidation(text)
	if perr != nil {
		strictReq := v.buildRequest(mediaURI, mimeType, span, localStart, localEnd, v.StrictTemperature, true)
		text, err = v.call(ctx, label+"-strict", strictReq)
		if err != nil {
			return ValidatedDetection{}, err
		}
		raw, perr = parseValidation(text)
		if perr != nil {
			return ValidatedDetection{}, fmt.Errorf("analyzer: validation response unparseable: %w", perr)
		}
	}

	if !raw.Correct {
		return ValidatedDetection{Detection: span, Skipped: false, Dropped: true}, nil
	}

	refined := span
	if raw.StartSec != nil {
		refined.StartSec = localStart + *raw.StartSec
	}
	if raw.EndSec != nil {
		refined.EndSec = localStart + *raw.EndSec
	}

	refined.StartSec = clamp(refined.StartSec, localStart, localEnd)
	refined.EndSec = clamp(refined.EndSec, localStart, localEnd)
	if refined.EndSec < refined.StartSec+0.01 {
		refined.EndSec = refined.StartSec + 0.01
	}
	if refined.EndSec-refined.StartSec < v.MinActionDuration {
		refined.EndSec = refined.StartSec + v.MinActionDuration
	}

	return ValidatedDetection{Detection: refined}, nil
}

func (v *ValidateStage) call(ctx context.Context, label string, req modelclient.GenerateRequest) (string, error) {
	result, err := v.Policy.Call(ctx, label, func(callCtx context.Context) (any, error) {
		return v.Client.Generate(callCtx, req)
	})
	if err != nil {
		return "", err
	}
	resp, _ := result.(modelclient.GenerateResponse)
	return resp.Text, nil
}

func (v *ValidateStage) buildRequest(mediaURI, mimeType string, span Detection, localStart, localEnd, temperature float64, strict bool) modelclient.GenerateRequest {
	prompt := buildValidationPrompt(span, localEnd-localStart)
	return modelclient.GenerateRequest{
		Model:       v.Model,
		Temperature: temperature,
		Parts: []modelclient.Part{
			{
				MediaURI:      mediaURI,
				MediaMimeType: mimeType,
				StartOffset:   fmt.Sprintf("%.3fs", localStart),
				EndOffset:     fmt.Sprintf("%.3fs", localEnd),
			},
			{Text: prompt},
		},
		ResponseMimeType: "application/json",
		ResponseSchema:   []byte(validationSchema),
	}
}

func buildValidationPrompt(span Detection, clipDuration float64) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(
		"This clip is %.3fs long. A prior pass detected \"%s\" (%s behavior) occurring in it. "+
			"Confirm whether this behavior is genuinely present for the child in this clip, and if so, "+
			"refine its start and end time relative to the START of THIS clip (clip-relative). "+
			"Respond with an object: correct (boolean), startSec, endSec.\n",
		clipDuration, span.Behavior, span.Modality,
	))
	sb.WriteString("Respond with strict JSON only: a bare JSON object, no markdown fences, no commentary.\n")
	return sb.String()
}

func parseValidation(text string) (rawValidation, error) {
	var out rawValidation
	if err := json.Unmarshal([]byte(text), &out); err == nil {
		return out, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return rawValidation{}, fmt.Errorf("analyzer: no JSON object found in response")
	}
	candidate := text[start : end+1]
	if err := json.Unmarshal([]byte(candidate), &out); err != nil {
		return rawValidation{}, fmt.Errorf("analyzer: lenient JSON extraction failed: %w", err)
	}
	return out, nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
