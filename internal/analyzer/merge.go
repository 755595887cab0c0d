package analyzer

import (
	"sort"
	"strings"
)

// defaultMergeGapSeconds is the default maximum gap between two
// same-behavior spans for them to be merged into one. Merge itself takes
// the gap as a parameter; the orchestrator passes its MergeGapSeconds,
// loaded from config, so it stays adjustable per deployment.
const defaultMergeGapSeconds = 2.5

type mergeKey struct {
	behavior string
	modality string
}

// Merge sorts detections by startSec (stable, so input order breaks
// ties) and merges consecutive same-(behavior,modality) spans whose gap
// is within gapSeconds, per spec.md §4.7. Different behaviors or
// modalities never merge into each other.
func Merge(detections []Detection, gapSeconds float64) []Detection {
	if len(detections) == 0 {
		return nil
	}

	sorted := make([]Detection, len(detections))
	copy(sorted, detections)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartSec < sorted[j].StartSec
	})

	last := make(map[mergeKey]*Detection)
	var out []*Detection

	for i := range sorted {
		item := sorted[i]
		key := mergeKey{behavior: string(item.Behavior), modality: string(item.Modality)}

		if prev, ok := last[key]; ok && item.StartSec <= prev.EndSec+gapSeconds {
			if item.EndSec > prev.EndSec {
				prev.EndSec = item.EndSec
			}
			prev.Notes = mergeNotes(prev.Notes, item.Notes)
			continue
		}

		merged := item
		last[key] = &merged
		out = append(out, &merged)
	}

	result := make([]Detection, len(out))
	for i, d := range out {
		result[i] = *d
	}
	return result
}

// mergeNotes appends notes from b into a, skipping any note that is a
// substring of (or contains) a note already present.
func mergeNotes(a, b []string) []string {
	for _, note := range b {
		if note == "" || containsSubstringNote(a, note) {
			continue
		}
		a = append(a, note)
	}
	return a
}

func containsSubstringNote(notes []string, candidate string) bool {
	for _, n := range notes {
		if strings.Contains(n, candidate) || strings.Contains(candidate, n) {
			return true
		}
	}
	return false
}
