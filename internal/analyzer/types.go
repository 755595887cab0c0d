// Package analyzer implements the detection, merge, and validation stages
// that turn a probed source video into a set of confirmed behavior spans,
// plus the orchestrator that sequences them end to end.
package analyzer

import (
	"github.com/carelens/behavior-worker/internal/behavior"
)

// Detection is a single behavior span, either a raw per-segment detection
// or a merged/validated span — all absolute-time relative to the source
// video by the time it leaves the detection stage.
type Detection struct {
	Behavior behavior.Label    `json:"behavior"`
	Modality behavior.Modality `json:"modality"`
	StartSec float64           `json:"startSec"`
	EndSec   float64           `json:"endSec"`
	Notes    []string          `json:"notes,omitempty"`
}

// ValidatedDetection is a Detection carrying the validation stage's
// verdict. Skipped validations are treated as correct per spec: a
// throttled validator must not silently discard detections the detector
// already found.
type ValidatedDetection struct {
	Detection
	Skipped bool `json:"skipped,omitempty"`

	// Dropped marks a span the validator confirmed absent (correct=false).
	// It never reaches a written artifact; ValidateStage.Run filters it out
	// before returning.
	Dropped bool `json:"-"`
}

// FinalReport is the contents of behaviors_final.json.
type FinalReport struct {
	GeneratedAt      string      `json:"generatedAt"`
	DominantCategory *string     `json:"dominantCategory"`
	TotalBehaviors   int         `json:"totalBehaviors"`
	Behaviors        []Detection `json:"behaviors"`
}

// ArtifactSet is the four outputs the orchestrator produces on success,
// plus the source duration the job processor attaches to the session's
// worker block.
type ArtifactSet struct {
	RawJSONPath       string
	ValidatedJSONPath string
	FinalJSONPath     string
	VideoPath         string
	SourceDurationSec float64
}
