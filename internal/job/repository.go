package job

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/carelens/behavior-worker/internal/storage"
)

// ErrSessionNotFound is returned when a session record cannot be resolved
// by direct path or by prefix scan.
var ErrSessionNotFound = errors.New("job: session record not found")

// Repository resolves and persists Session records against the blob
// store, keyed by (icdKey, uploadEpoch) per spec.md §3.
type Repository struct {
	Storage        storage.Storage
	SessionsPrefix string
}

// NewRepository builds a Repository over the given blob store and
// sessions prefix (e.g. "sessions").
func NewRepository(store storage.Storage, sessionsPrefix string) *Repository {
	return &Repository{Storage: store, SessionsPrefix: sessionsPrefix}
}

func (r *Repository) directPath(icdKey string, uploadEpoch *int64) string {
	epoch := "unknown"
	if uploadEpoch != nil {
		epoch = fmt.Sprintf("%d", *uploadEpoch)
	}
	return fmt.Sprintf("%s/%s/%s.json", r.SessionsPrefix, icdKey, epoch)
}

// Resolve implements spec.md §4.9 step 3: try the direct
// (icdKey, uploadEpoch) path first, then fall back to scanning every
// record under the icdKey prefix for one whose storagePath matches
// objectName.
func (r *Repository) Resolve(ctx context.Context, icdKey string, uploadEpoch *int64, objectName string) (*Session, string, error) {
	directPath := r.directPath(icdKey, uploadEpoch)

	var sess Session
	if err := r.Storage.ReadJSON(ctx, directPath, &sess); err == nil {
		return &sess, directPath, nil
	} else if !errors.Is(err, storage.ErrNotExist) {
		return nil, "", fmt.Errorf("job: read session at %s: %w", directPath, err)
	}

	scanPrefix := fmt.Sprintf("%s/%s/", r.SessionsPrefix, icdKey)
	paths, err := r.Storage.List(ctx, scanPrefix)
	if err != nil {
		return nil, "", fmt.Errorf("job: scan sessions under %s: %w", scanPrefix, err)
	}

	for _, p := range paths {
		if !strings.HasSuffix(p, ".json") {
			continue
		}
		var candidate Session
		if err := r.Storage.ReadJSON(ctx, p, &candidate); err != nil {
			continue
		}
		if candidate.StoragePath == objectName {
			return &candidate, p, nil
		}
	}

	return nil, "", ErrSessionNotFound
}

// Read re-reads the session at a known path, used before each write to
// narrow the race window against concurrent external edits.
func (r *Repository) Read(ctx context.Context, path string) (*Session, error) {
	var sess Session
	if err := r.Storage.ReadJSON(ctx, path, &sess); err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("job: read session at %s: %w", path, err)
	}
	return &sess, nil
}

// Write persists the session record at path.
func (r *Repository) Write(ctx context.Context, path string, sess *Session) error {
	if err := r.Storage.WriteJSON(ctx, path, sess); err != nil {
		return fmt.Errorf("job: write session at %s: %w", path, err)
	}
	return nil
}
