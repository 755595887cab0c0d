// Package modelclient is the abstract multimodal inference port the
// analyzer drives, plus an HTTP-backed implementation against a
// Gemini-style generative API.
package modelclient

import "context"

// MediaState is the processing state the backend reports for an
// uploaded media handle.
type MediaState string

const (
	MediaProcessing MediaState = "PROCESSING"
	MediaActive     MediaState = "ACTIVE"
	MediaError      MediaState = "ERROR"
)

// Media is an uploaded file handle as tracked by the inference backend.
type Media struct {
	Name  string
	URI   string
	State MediaState
}

// Part is one piece of a Generate request: either a reference into a
// previously uploaded media file, or literal text.
type Part struct {
	Text string

	MediaURI      string
	MediaMimeType string
	StartOffset   string // e.g. "5s"
	EndOffset     string
	FPS           int
}

// GenerateRequest is a single multimodal inference call.
type GenerateRequest struct {
	Model            string
	Parts            []Part
	Temperature      float64
	ResponseMimeType string
	ResponseSchema   []byte // raw JSON schema, opaque to the port
}

// GenerateResponse carries the model's raw text output; callers parse it
// per the response schema they requested.
type GenerateResponse struct {
	Text string
}

// Client is the abstract inference port: upload a media file, poll its
// readiness, and run a generation call against it.
type Client interface {
	// UploadMedia uploads the file at path and returns its initial handle.
	UploadMedia(ctx context.Context, path, mimeType string) (Media, error)

	// GetMedia re-fetches a media handle by name to observe state changes.
	GetMedia(ctx context.Context, name string) (Media, error)

	// Generate runs a single multimodal inference request.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error)
}
