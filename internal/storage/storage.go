// Package storage provides the blob storage port used by the worker and
// implementations for S3-backed and local-disk storage.
package storage

import (
	"context"
	"errors"
)

// ErrNotConfigured names the error for a storage backend that is not
// configured. Neither LocalStorage nor S3Storage returns it.
var ErrNotConfigured = errors.New("storage: backend is not configured")

// ErrNotExist is returned by ReadJSON/DownloadToFile when the requested
// object does not exist.
var ErrNotExist = errors.New("storage: object does not exist")

// PutOptions controls metadata attached to an uploaded object.
type PutOptions struct {
	ContentType  string
	CacheControl string
}

// Storage is the abstract blob contract the job processor and analyzer
// depend on. Concrete implementations address objects by path/key.
type Storage interface {
	// Exists reports whether an object is present at path.
	Exists(ctx context.Context, path string) (bool, error)

	// DownloadToFile copies the object at path to a local file at dest.
	DownloadToFile(ctx context.Context, path, dest string) error

	// UploadFromFile uploads the local file at srcPath to destKey.
	UploadFromFile(ctx context.Context, srcPath, destKey string, opts PutOptions) error

	// ReadJSON decodes the object at path into v. Returns ErrNotExist if
	// the object is absent.
	ReadJSON(ctx context.Context, path string, v any) error

	// WriteJSON encodes v as JSON and writes it to path with
	// cache-control "no-store".
	WriteJSON(ctx context.Context, path string, v any) error

	// List returns the keys of every object under prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}
