package modelclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/behavior-worker/internal/inference"
)

func TestNewHTTPClient_RequiresAPIKey(t *testing.T) {
	_, err := NewHTTPClient("")
	require.ErrorIs(t, err, ErrAPIKeyRequired)
}

func TestGetMedia_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"name":  "files/abc",
			"uri":   "https://example/files/abc",
			"state": "ACTIVE",
		})
	}))
	defer srv.Close()

	c, err := NewHTTPClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	media, err := c.GetMedia(context.Background(), "files/abc")
	require.NoError(t, err)
	assert.Equal(t, MediaActive, media.State)
}

func TestGenerate_ErrorStatusMapsToCallError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("rate limit exceeded"))
	}))
	defer srv.Close()

	c, err := NewHTTPClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), GenerateRequest{Model: "gemini-2.5-flash"})
	require.Error(t, err)

	var ce *inference.CallError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusTooManyRequests, ce.Status)
}

func TestGenerate_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"[]"}]}}]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), GenerateRequest{
		Model: "gemini-2.5-flash",
		Parts: []Part{{MediaURI: "uri", MediaMimeType: "video/mp4", StartOffset: "0s", EndOffset: "30s", FPS: 24}, {Text: "prompt"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Text)
}

func TestGenerate_NoCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"candidates":[]}`))
	}))
	defer srv.Close()

	c, err := NewHTTPClient("test-key", WithBaseURL(srv.URL))
	require.NoError(t, err)

	_, err = c.Generate(context.Background(), GenerateRequest{Model: "m"})
	require.ErrorIs(t, err, ErrNoCandidates)
}
