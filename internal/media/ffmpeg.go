package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// Static errors for media operations.
var (
	// ErrFFprobeExecution is returned when ffprobe command fails.
	ErrFFprobeExecution = errors.New("ffprobe execution failed")
)

// FFmpegProcessor implements Processor using the ffmpeg/ffprobe CLIs.
type FFmpegProcessor struct {
	ffmpegPath  string
	ffprobePath string
}

// NewFFmpegProcessor creates a new FFmpegProcessor. Empty paths default to
// "ffmpeg"/"ffprobe", resolved via PATH.
func NewFFmpegProcessor(ffmpegPath, ffprobePath string) *FFmpegProcessor {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpegProcessor{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

// encodeArgs are the shared H.264/AAC settings used by every re-encode
// this worker performs.
var encodeArgs = []string{
	"-c:v", "libx264",
	"-preset", "veryfast",
	"-crf", "23",
	"-c:a", "aac",
	"-b:a", "128k",
	"-movflags", "+faststart",
}

// GetMediaDuration returns the duration in seconds of a media file via a
// frame-accurate container probe.
func (p *FFmpegProcessor) GetMediaDuration(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	var duration float64
	if _, err := fmt.Sscanf(strings.TrimSpace(stdout.String()), "%f", &duration); err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return duration, nil
}

// GetMediaFPS returns the stream frame rate, or 0 with no error if the
// container exposes no video stream.
func (p *FFmpegProcessor) GetMediaFPS(ctx context.Context, path string) (float64, error) {
	// #nosec G204 - ffprobePath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return 0, fmt.Errorf("ffprobe cancelled: %w", ctx.Err())
		}
		return 0, fmt.Errorf("%w: %w, stderr: %s", ErrFFprobeExecution, err, stderr.String())
	}

	fps, err := parseRational(strings.TrimSpace(stdout.String()))
	if err != nil {
		return 0, fmt.Errorf("parse frame rate: %w", err)
	}
	return fps, nil
}

// parseRational evaluates an ffprobe "num/den" rational string.
func parseRational(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	parts := strings.SplitN(s, "/", 2)
	num, err := strconv.ParseFloat(parts[0], 64)
	if err != nil {
		return 0, fmt.Errorf("parse numerator: %w", err)
	}
	if len(parts) == 1 {
		return num, nil
	}
	den, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return 0, fmt.Errorf("parse denominator: %w", err)
	}
	if den == 0 {
		return 0, nil
	}
	return num / den, nil
}

// BurnTimestampOverlay re-encodes input producing output with a readable
// HH:MM:SS overlay drawn at (20,20), so the analysis input carries
// wall-clock hints within the frames. Failure here is treated as
// non-fatal by callers; they fall back to the original video.
func (p *FFmpegProcessor) BurnTimestampOverlay(ctx context.Context, input, output string) error {
	filter := "drawtext=text='%{pts\\:hms}':x=20:y=20:fontcolor=white:fontsize=24:box=1:boxcolor=black@0.5:boxborderw=4"

	args := []string{"-y", "-i", input, "-vf", filter}
	args = append(args, encodeArgs...)
	args = append(args, output)

	return p.runFFmpeg(ctx, args)
}

// BurnSubtitles re-encodes input producing the final output video with
// subtitle text drawn from srtPath. Failure here is fatal to the job: no
// output video means no artifact.
func (p *FFmpegProcessor) BurnSubtitles(ctx context.Context, input, srtPath, output string) error {
	filter := fmt.Sprintf("subtitles=%s", escapeFilterPath(srtPath))

	args := []string{"-y", "-i", input, "-vf", filter}
	args = append(args, encodeArgs...)
	args = append(args, output)

	return p.runFFmpeg(ctx, args)
}

// escapeFilterPath escapes a path for embedding inside an ffmpeg filter
// string. Colons are special to the filter-graph parser on every
// platform this worker targets, and the Windows drive-letter colon is an
// additional case some ffmpeg builds also need escaped.
func escapeFilterPath(path string) string {
	escaped := strings.ReplaceAll(path, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, ":", `\:`)
	escaped = strings.ReplaceAll(escaped, "'", `\'`)
	return "'" + escaped + "'"
}

// runFFmpeg executes ffmpeg with the given arguments and returns an error
// containing stderr output if the command fails.
func (p *FFmpegProcessor) runFFmpeg(ctx context.Context, args []string) error {
	// #nosec G204 - ffmpegPath is set by the application, not user input
	cmd := exec.CommandContext(ctx, p.ffmpegPath, args...)

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("ffmpeg cancelled: %w", ctx.Err())
		}
		return &FFmpegError{Args: args, Stderr: stderr.String(), Err: err}
	}
	return nil
}

// FFmpegError represents an error from running ffmpeg, including the
// stderr output.
type FFmpegError struct {
	Args   []string
	Stderr string
	Err    error
}

func (e *FFmpegError) Error() string {
	return fmt.Sprintf("ffmpeg error: %v\nargs: %v\nstderr: %s", e.Err, e.Args, e.Stderr)
}

func (e *FFmpegError) Unwrap() error {
	return e.Err
}
