package reembed

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/retry"
)

// mockEmbedder for testing
type mockEmbedder struct {
	embedTextsFunc func(ctx context.Context, texts []string) ([][]float32, error)
	calls          int
}

func (m *mockEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vecs, err := m.EmbedTexts(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

func (m *mockEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	m.calls++
	if m.embedTextsFunc != nil {
		return m.embedTextsFunc(ctx, texts)
	}
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = []float32{1.0, 2.0, 2.0}
	}
	return result, nil
}

func TestBatchProcessor_Process(t *testing.T) {
	store := setupTestStore(t, 2, "v0")
	ctx := context.Background()

	stale, err := store.Products().StaleProducts(ctx, "v1", 0, 10)
	require.NoError(t, err)

	processor := NewBatchProcessor(store.Products(), &mockEmbedder{}, "v1", 3, time.Millisecond)
	res, err := processor.Process(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Updated)

	p, err := store.Products().GetProduct(ctx, stale[0].InternalID)
	require.NoError(t, err)
	assert.Equal(t, "v1", p.EmbeddingVersion)
	assert.Equal(t, "dd0385000 | air max 0", p.EmbeddingText)
	assert.Equal(t, []float32{1, 2, 2}, p.Embedding)
}

func TestBatchProcessor_EmptyText(t *testing.T) {
	ctx := context.Background()
	embedder := &mockEmbedder{}
	processor := NewBatchProcessor(setupTestStore(t, 0, "").Products(), embedder, "v1", 3, time.Millisecond)

	res, err := processor.Process(ctx, []*core.CanonicalProduct{{InternalID: 1, DisplayName: "  "}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Empty)
	assert.Zero(t, embedder.calls)
}

func TestBatchProcessor_RetriesTransientFailures(t *testing.T) {
	store := setupTestStore(t, 1, "v0")
	ctx := context.Background()
	stale, err := store.Products().StaleProducts(ctx, "v1", 0, 10)
	require.NoError(t, err)

	attempts := 0
	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		attempts++
		if attempts < 3 {
			return nil, retry.Transient(errors.New("rate limited"))
		}
		return [][]float32{{1, 0, 0}}, nil
	}}

	res, err := NewBatchProcessor(store.Products(), embedder, "v1", 3, time.Millisecond).Process(ctx, stale)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 3, attempts)
}

func TestBatchProcessor_CountMismatch(t *testing.T) {
	store := setupTestStore(t, 2, "v0")
	ctx := context.Background()
	stale, err := store.Products().StaleProducts(ctx, "v1", 0, 10)
	require.NoError(t, err)

	embedder := &mockEmbedder{embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
		return [][]float32{{1}}, nil
	}}
	_, err = NewBatchProcessor(store.Products(), embedder, "v1", 1, time.Millisecond).Process(ctx, stale)
	assert.ErrorIs(t, err, ErrCountMismatch)
}

func TestBatchProcessor_InvalidAttempts(t *testing.T) {
	_, err := NewBatchProcessor(nil, &mockEmbedder{}, "v1", 0, time.Millisecond).Process(context.Background(), nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}
