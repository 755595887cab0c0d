// Package segment splits a video's duration into fixed-length overlapping
// analysis windows.
package segment

// Window is a contiguous analysis span of the source video, in seconds
// relative to the start of the video.
type Window struct {
	StartSec float64
	EndSec   float64
}

// Plan produces windows of length chunkSeconds starting at 0 and advancing
// by chunkSeconds-overlapSeconds, truncated at duration. The final window
// always ends exactly at duration, so nothing at the tail is dropped.
func Plan(duration, chunkSeconds, overlapSeconds float64) []Window {
	if duration <= 0 {
		return nil
	}

	stride := chunkSeconds - overlapSeconds
	if stride <= 0 {
		stride = chunkSeconds
	}

	var windows []Window
	start := 0.0
	for start < duration {
		end := start + chunkSeconds
		if end > duration {
			end = duration
		}
		windows = append(windows, Window{StartSec: start, EndSec: end})
		if end >= duration {
			break
		}
		start += stride
	}

	return windows
}
