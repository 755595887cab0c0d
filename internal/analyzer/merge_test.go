package analyzer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/behavior-worker/internal/behavior"
)

func TestMerge_ExtendsWithinGap(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 1, EndSec: 3},
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 5, EndSec: 7},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 1)
	assert.Equal(t, 1.0, out[0].StartSec)
	assert.Equal(t, 7.0, out[0].EndSec)
}

func TestMerge_SplitsBeyondGap(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 1, EndSec: 3},
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 10, EndSec: 12},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 2)
}

func TestMerge_DifferentBehaviorsNeverMerge(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 1, EndSec: 3},
		{Behavior: behavior.BodyRocking, Modality: behavior.Visual, StartSec: 3, EndSec: 5},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 2)
}

func TestMerge_DifferentModalitiesNeverMerge(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.Humming, Modality: behavior.Audio, StartSec: 1, EndSec: 3},
		{Behavior: behavior.Humming, Modality: behavior.Visual, StartSec: 3.5, EndSec: 5},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 2)
}

func TestMerge_SortsByStartSecRegardlessOfInputOrder(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.Spinning, Modality: behavior.Visual, StartSec: 20, EndSec: 22},
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 1, EndSec: 2},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 2)
	assert.Equal(t, behavior.HandFlapping, out[0].Behavior)
	assert.Equal(t, behavior.Spinning, out[1].Behavior)
}

func TestMerge_ExactlyAtGapBoundaryMerges(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.Grunting, Modality: behavior.Audio, StartSec: 0, EndSec: 5},
		{Behavior: behavior.Grunting, Modality: behavior.Audio, StartSec: 7.5, EndSec: 9},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 1)
	assert.Equal(t, 9.0, out[0].EndSec)
}

func TestMerge_NotesDeduplicatedBySubstring(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.Echolalia, Modality: behavior.Audio, StartSec: 0, EndSec: 2, Notes: []string{"repeats phrase"}},
		{Behavior: behavior.Echolalia, Modality: behavior.Audio, StartSec: 2.5, EndSec: 4, Notes: []string{"repeats phrase heard from caregiver"}},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Notes, 1)
}

func TestMerge_ContainedSpanExtendAlwaysUsesMax(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.ToeWalking, Modality: behavior.Visual, StartSec: 0, EndSec: 10},
		{Behavior: behavior.ToeWalking, Modality: behavior.Visual, StartSec: 2, EndSec: 4},
	}
	out := Merge(in, 2.5)
	require.Len(t, out, 1)
	assert.Equal(t, 10.0, out[0].EndSec, "later, shorter span must not shrink the merged end")
}

func TestMerge_EmptyInput(t *testing.T) {
	assert.Empty(t, Merge(nil, 2.5))
}

func TestMerge_DoesNotMutateInput(t *testing.T) {
	in := []Detection{
		{Behavior: behavior.HandFlapping, Modality: behavior.Visual, StartSec: 1, EndSec: 3},
	}
	_ = Merge(in, 2.5)
	assert.Equal(t, 3.0, in[0].EndSec)
}
