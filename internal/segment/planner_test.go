package segment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPlan_ShortVideo(t *testing.T) {
	// 45s duration -> 2 windows: 0-30, 26-45 (per spec.md scenario 1)
	windows := Plan(45, 30, 4)
	require := assert.New(t)
	require.Len(windows, 2)
	require.InDelta(0.0, windows[0].StartSec, 0.0001)
	require.InDelta(30.0, windows[0].EndSec, 0.0001)
	require.InDelta(26.0, windows[1].StartSec, 0.0001)
	require.InDelta(45.0, windows[1].EndSec, 0.0001)
}

func TestPlan_FinalWindowEndsAtDuration(t *testing.T) {
	windows := Plan(100, 30, 4)
	last := windows[len(windows)-1]
	assert.InDelta(t, 100.0, last.EndSec, 0.0001)
}

func TestPlan_ExactMultiple(t *testing.T) {
	windows := Plan(30, 30, 4)
	assert.Len(t, windows, 1)
	assert.InDelta(t, 0.0, windows[0].StartSec, 0.0001)
	assert.InDelta(t, 30.0, windows[0].EndSec, 0.0001)
}

func TestPlan_ZeroDuration(t *testing.T) {
	assert.Empty(t, Plan(0, 30, 4))
}

func TestPlan_NoOverlap(t *testing.T) {
	windows := Plan(90, 30, 0)
	assert.Len(t, windows, 3)
	assert.InDelta(t, 0.0, windows[0].StartSec, 0.0001)
	assert.InDelta(t, 30.0, windows[1].StartSec, 0.0001)
	assert.InDelta(t, 60.0, windows[2].StartSec, 0.0001)
}

func TestPlan_OverlapCoversBoundary(t *testing.T) {
	windows := Plan(60, 30, 4)
	// Each consecutive pair of windows must overlap by exactly the overlap
	for i := 1; i < len(windows); i++ {
		overlap := windows[i-1].EndSec - windows[i].StartSec
		assert.InDelta(t, 4.0, overlap, 0.0001)
	}
}
