package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/carelens/behavior-worker/internal/inference"
)

// Static errors for the model client.
var (
	ErrAPIKeyRequired = errors.New("modelclient: API key is required")
	ErrNoCandidates   = errors.New("modelclient: response contained no candidates")
)

// HTTPClient is the HTTP implementation of Client, generalized from the
// worker's own submit/poll HTTP client shape: a small struct holding the
// base URL and API key, one method per remote operation, a single
// attempt per call (retry/backoff is the caller's responsibility via
// internal/inference.Policy, not the transport's).
type HTTPClient struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// ClientOption configures an HTTPClient.
type ClientOption func(*HTTPClient)

// WithHTTPClient overrides the default *http.Client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(hc *HTTPClient) { hc.httpClient = c }
}

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) ClientOption {
	return func(hc *HTTPClient) { hc.baseURL = url }
}

// NewHTTPClient builds an HTTPClient. apiKey must be non-empty.
func NewHTTPClient(apiKey string, opts ...ClientOption) (*HTTPClient, error) {
	if apiKey == "" {
		return nil, ErrAPIKeyRequired
	}

	c := &HTTPClient{
		apiKey:     apiKey,
		baseURL:    "https://generativelanguage.googleapis.com/v1beta",
		httpClient: &http.Client{Timeout: 150 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type uploadResponse struct {
	File struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		State string `json:"state"`
	} `json:"file"`
}

// UploadMedia uploads the file at path to the backend's file store.
func (c *HTTPClient) UploadMedia(ctx context.Context, path, mimeType string) (Media, error) {
	f, err := os.Open(path) // #nosec G304 - path is a job-scoped temp file
	if err != nil {
		return Media{}, fmt.Errorf("modelclient: open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	url := fmt.Sprintf("%s/files?key=%s", c.baseURL, c.apiKey)

	var resp uploadResponse
	if err := c.doRequest(ctx, http.MethodPost, url, mimeType, f, &resp); err != nil {
		return Media{}, err
	}

	return Media{
		Name:  resp.File.Name,
		URI:   resp.File.URI,
		State: MediaState(resp.File.State),
	}, nil
}

// GetMedia re-fetches the handle for name to observe state changes.
func (c *HTTPClient) GetMedia(ctx context.Context, name string) (Media, error) {
	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, name, c.apiKey)

	var resp struct {
		Name  string `json:"name"`
		URI   string `json:"uri"`
		State string `json:"state"`
	}
	if err := c.doRequest(ctx, http.MethodGet, url, "", nil, &resp); err != nil {
		return Media{}, err
	}

	return Media{Name: resp.Name, URI: resp.URI, State: MediaState(resp.State)}, nil
}

type generateWirePart struct {
	Text     string           `json:"text,omitempty"`
	FileData *generateFileRef `json:"fileData,omitempty"`
	VideoMeta *videoMetadata   `json:"videoMetadata,omitempty"`
}

type generateFileRef struct {
	MimeType string `json:"mimeType"`
	FileURI  string `json:"fileUri"`
}

type videoMetadata struct {
	StartOffset string `json:"startOffset,omitempty"`
	EndOffset   string `json:"endOffset,omitempty"`
	FPS         int    `json:"fps,omitempty"`
}

type generateWireRequest struct {
	Contents []struct {
		Parts []generateWirePart `json:"parts"`
	} `json:"contents"`
	GenerationConfig struct {
		Temperature      float64         `json:"temperature"`
		ResponseMimeType string          `json:"responseMimeType,omitempty"`
		ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
	} `json:"generationConfig"`
}

type generateWireResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"error"`
}

// Generate runs a single multimodal inference request.
func (c *HTTPClient) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	wire := generateWireRequest{}
	wire.GenerationConfig.Temperature = req.Temperature
	wire.GenerationConfig.ResponseMimeType = req.ResponseMimeType
	if len(req.ResponseSchema) > 0 {
		wire.GenerationConfig.ResponseSchema = req.ResponseSchema
	}

	parts := make([]generateWirePart, 0, len(req.Parts))
	for _, p := range req.Parts {
		if p.Text != "" {
			parts = append(parts, generateWirePart{Text: p.Text})
			continue
		}
		part := generateWirePart{
			FileData: &generateFileRef{MimeType: p.MediaMimeType, FileURI: p.MediaURI},
		}
		if p.StartOffset != "" || p.EndOffset != "" || p.FPS > 0 {
			part.VideoMeta = &videoMetadata{StartOffset: p.StartOffset, EndOffset: p.EndOffset, FPS: p.FPS}
		}
		parts = append(parts, part)
	}
	wire.Contents = []struct {
		Parts []generateWirePart `json:"parts"`
	}{{Parts: parts}}

	body, err := json.Marshal(wire)
	if err != nil {
		return GenerateResponse{}, fmt.Errorf("modelclient: marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, req.Model, c.apiKey)

	var resp generateWireResponse
	if err := c.doRequest(ctx, http.MethodPost, url, "application/json", bytes.NewReader(body), &resp); err != nil {
		return GenerateResponse{}, err
	}

	if resp.Error != nil {
		return GenerateResponse{}, &inference.CallError{
			Status:  resp.Error.Code,
			Code:    resp.Error.Status,
			Message: resp.Error.Message,
		}
	}
	if len(resp.Candidates) == 0 || len(resp.Candidates[0].Content.Parts) == 0 {
		return GenerateResponse{}, ErrNoCandidates
	}

	return GenerateResponse{Text: resp.Candidates[0].Content.Parts[0].Text}, nil
}

// doRequest performs a single HTTP round trip and maps non-2xx responses
// to *inference.CallError so the policy layer can classify them.
func (c *HTTPClient) doRequest(ctx context.Context, method, url, contentType string, body io.Reader, result any) error {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("modelclient: create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &inference.CallError{Message: err.Error(), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &inference.CallError{Message: "read response: " + err.Error(), Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &inference.CallError{
			Status:  resp.StatusCode,
			Message: string(respBody),
		}
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("modelclient: unmarshal response: %w", err)
		}
	}
	return nil
}
