package badger

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

func newTestRepo(t *testing.T) *ShardStateRepository {
	t.Helper()
	repo, err := NewMemoryShardStateRepository()
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestShardState_SaveGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	state := &core.ShardState{
		RunID:      "run-a",
		ShardIndex: 3,
		JobHandle:  "batch_1",
		Status:     core.ShardSubmitted,
		FirstID:    100,
		LastID:     200,
		Count:      101,
	}
	require.NoError(t, repo.SaveShard(ctx, state))
	assert.False(t, state.UpdatedAt.IsZero())

	got, err := repo.GetShard(ctx, "run-a", 3)
	require.NoError(t, err)
	assert.Equal(t, state, got)

	_, err = repo.GetShard(ctx, "run-a", 4)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestShardState_ListOrdered(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for _, idx := range []int{10, 2, 0, 1} {
		require.NoError(t, repo.SaveShard(ctx, &core.ShardState{RunID: "run", ShardIndex: idx, Status: core.ShardPending}))
	}

	states, err := repo.ListShards(ctx)
	require.NoError(t, err)
	require.Len(t, states, 4)
	for i, want := range []int{0, 1, 2, 10} {
		assert.Equal(t, want, states[i].ShardIndex)
	}
}

func TestShardState_DeleteRun(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveShard(ctx, &core.ShardState{RunID: "run1", ShardIndex: 0}))
	require.NoError(t, repo.SaveShard(ctx, &core.ShardState{RunID: "run10", ShardIndex: 0}))
	_, err := repo.SaveArtifact(ctx, "run1", 0, strings.NewReader("data"))
	require.NoError(t, err)

	require.NoError(t, repo.DeleteRun(ctx, "run1"))

	states, err := repo.ListShards(ctx)
	require.NoError(t, err)
	require.Len(t, states, 1)
	assert.Equal(t, "run10", states[0].RunID)

	has, err := repo.HasArtifact(ctx, "run1", 0)
	require.NoError(t, err)
	assert.False(t, has)
}

func TestArtifact_RoundTripChunked(t *testing.T) {
	repo := newTestRepo(t)
	repo.chunkSize = 7
	ctx := context.Background()

	has, err := repo.HasArtifact(ctx, "run", 1)
	require.NoError(t, err)
	assert.False(t, has)

	_, err = repo.OpenArtifact(ctx, "run", 1)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	payload := strings.Repeat(`{"custom_id":"1"}`+"\n", 20)
	n, err := repo.SaveArtifact(ctx, "run", 1, strings.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, int64(len(payload)), n)

	has, err = repo.HasArtifact(ctx, "run", 1)
	require.NoError(t, err)
	assert.True(t, has)

	rc, err := repo.OpenArtifact(ctx, "run", 1)
	require.NoError(t, err)
	defer rc.Close()

	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, string(got))
}

func TestArtifact_OverwriteReplacesChunks(t *testing.T) {
	repo := newTestRepo(t)
	repo.chunkSize = 4
	ctx := context.Background()

	_, err := repo.SaveArtifact(ctx, "run", 0, bytes.NewReader(bytes.Repeat([]byte("x"), 40)))
	require.NoError(t, err)
	_, err = repo.SaveArtifact(ctx, "run", 0, strings.NewReader("short"))
	require.NoError(t, err)

	rc, err := repo.OpenArtifact(ctx, "run", 0)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))
}

func TestArtifact_Empty(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	n, err := repo.SaveArtifact(ctx, "run", 0, strings.NewReader(""))
	require.NoError(t, err)
	assert.Zero(t, n)

	rc, err := repo.OpenArtifact(ctx, "run", 0)
	require.NoError(t, err)
	got, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestShardState_ClosedStore(t *testing.T) {
	repo, err := NewMemoryShardStateRepository()
	require.NoError(t, err)
	require.NoError(t, repo.Close())

	err = repo.SaveShard(context.Background(), &core.ShardState{RunID: "run"})
	assert.ErrorIs(t, err, storage.ErrStorageClosed)
}
