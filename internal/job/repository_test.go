package job

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelens/behavior-worker/internal/storage"
)

func newTestRepo(t *testing.T) (*Repository, storage.Storage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewRepository(store, "sessions"), store
}

func TestRepository_Resolve_DirectPath(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	epoch := int64(1700000000)
	sess := &Session{Status: StatusAwaiting, StoragePath: "child-videos/abc/1700000000-clip.mp4"}
	require.NoError(t, store.WriteJSON(ctx, "sessions/abc/1700000000.json", sess))

	got, path, err := repo.Resolve(ctx, "abc", &epoch, "child-videos/abc/1700000000-clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "sessions/abc/1700000000.json", path)
	assert.Equal(t, StatusAwaiting, got.Status)
}

func TestRepository_Resolve_FallsBackToScan(t *testing.T) {
	repo, store := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{Status: StatusAwaiting, StoragePath: "child-videos/abc/1700000000-clip.mp4"}
	require.NoError(t, store.WriteJSON(ctx, "sessions/abc/999999999.json", sess))

	epoch := int64(1700000000)
	got, path, err := repo.Resolve(ctx, "abc", &epoch, "child-videos/abc/1700000000-clip.mp4")
	require.NoError(t, err)
	assert.Equal(t, "sessions/abc/999999999.json", path)
	assert.Equal(t, "child-videos/abc/1700000000-clip.mp4", got.StoragePath)
}

func TestRepository_Resolve_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	epoch := int64(1)
	_, _, err := repo.Resolve(ctx, "missing", &epoch, "child-videos/missing/1-clip.mp4")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRepository_ReadWrite_RoundTrip(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	sess := &Session{Status: StatusProcessing, StoragePath: "child-videos/abc/1-clip.mp4"}
	require.NoError(t, repo.Write(ctx, "sessions/abc/1.json", sess))

	got, err := repo.Read(ctx, "sessions/abc/1.json")
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, got.Status)
}

func TestRepository_Read_NotFound(t *testing.T) {
	repo, _ := newTestRepo(t)
	_, err := repo.Read(context.Background(), "sessions/nope/1.json")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
