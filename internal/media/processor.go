// Package media provides video probing and encoding capabilities.
package media

import "context"

// Processor defines the media operations the analyzer orchestrator
// depends on. Implementations wrap ffmpeg/ffprobe.
type Processor interface {
	// GetMediaDuration returns the duration in seconds of a media file.
	GetMediaDuration(ctx context.Context, path string) (float64, error)

	// GetMediaFPS returns the stream frame rate of a media file.
	GetMediaFPS(ctx context.Context, path string) (float64, error)

	// BurnTimestampOverlay re-encodes input producing output with a
	// readable HH:MM:SS overlay drawn at (20,20).
	BurnTimestampOverlay(ctx context.Context, input, output string) error

	// BurnSubtitles re-encodes input producing output with subtitle text
	// drawn from the SRT file at srtPath.
	BurnSubtitles(ctx context.Context, input, srtPath, output string) error
}
