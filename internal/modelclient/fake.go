package modelclient

import (
	"context"
	"sync"
)

// Fake is an in-memory Client for tests, a hand-written fake rather than
// a mocking framework.
type Fake struct {
	mu sync.Mutex

	UploadFunc   func(ctx context.Context, path, mimeType string) (Media, error)
	GetMediaFunc func(ctx context.Context, name string) (Media, error)
	GenerateFunc func(ctx context.Context, req GenerateRequest) (GenerateResponse, error)

	GenerateCalls []GenerateRequest
}

func NewFake() *Fake {
	return &Fake{}
}

func (f *Fake) UploadMedia(ctx context.Context, path, mimeType string) (Media, error) {
	if f.UploadFunc != nil {
		return f.UploadFunc(ctx, path, mimeType)
	}
	return Media{Name: "files/fake", URI: "fake://" + path, State: MediaActive}, nil
}

func (f *Fake) GetMedia(ctx context.Context, name string) (Media, error) {
	if f.GetMediaFunc != nil {
		return f.GetMediaFunc(ctx, name)
	}
	return Media{Name: name, State: MediaActive}, nil
}

func (f *Fake) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, error) {
	f.mu.Lock()
	f.GenerateCalls = append(f.GenerateCalls, req)
	f.mu.Unlock()

	if f.GenerateFunc != nil {
		return f.GenerateFunc(ctx, req)
	}
	return GenerateResponse{Text: "[]"}, nil
}
