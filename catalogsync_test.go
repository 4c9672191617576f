package catalogsync

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/ai/mock"
	"github.com/poiesic/catalogsync/batchjob"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/migrate"
	"github.com/poiesic/catalogsync/reembed"
	"github.com/poiesic/catalogsync/search"
	"github.com/poiesic/catalogsync/storage/badger"
	"github.com/poiesic/catalogsync/storage/memory"
)

func testSource() *memory.Source {
	return &memory.Source{
		StockX: []map[string]any{
			{"productId": "sx-1", "title": "Air Max 90", "styleId": "DD0385-100"},
			{"productId": "sx-2", "title": "Dunk Low", "styleId": "DD1391-100"},
		},
		Alias: []map[string]any{
			{"catalogId": "a-1", "name": "Air Max 90", "sku": "DD0385 100"},
		},
		Inventory: []core.InventoryUnit{
			{SKU: "SKU-1", RawItemLabel: "Air Max 90 [DD0385-100]"},
		},
	}
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, mock.NewMockProvider(4))
	assert.Error(t, err)

	_, err = New(memory.NewStore(), nil)
	assert.Error(t, err)
}

func TestCatalog_LazyStoresMissing(t *testing.T) {
	c, err := New(memory.NewStore(), mock.NewMockProvider(4))
	require.NoError(t, err)
	defer c.Close()

	_, err = c.NewOrchestrator(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = c.NewInventoryMigrator(context.Background())
	assert.ErrorIs(t, err, ErrNoSource)

	_, err = c.NewCoordinator()
	assert.ErrorIs(t, err, ErrNoShardState)
}

func TestCatalog_Pipeline(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	state, err := badger.NewMemoryShardStateRepository()
	require.NoError(t, err)

	c, err := New(store, mock.NewMockProvider(8), WithSource(testSource()), WithShardState(state))
	require.NoError(t, err)
	defer c.Close()

	orch, err := c.NewOrchestrator(ctx, migrate.WithChunkSize(2))
	require.NoError(t, err)
	report, err := orch.Run(ctx)
	orch.Release()
	require.NoError(t, err)
	assert.False(t, report.Canceled)

	total, embedded, err := c.Store().Products().CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(3), embedded)

	inv, err := c.NewInventoryMigrator(ctx)
	require.NoError(t, err)
	invReport, err := inv.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, invReport.Linked())

	engine, err := c.NewMatchingEngine()
	require.NoError(t, err)
	matchReport, err := engine.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, matchReport.Exact)

	builder, err := c.NewIndexBuilder()
	require.NoError(t, err)
	require.NoError(t, builder.BuildStandardIndexes(ctx))
	built, err := builder.BuildVectorIndex(ctx, false)
	require.NoError(t, err)
	assert.True(t, built.Built)

	searcher, err := c.NewSearcher()
	require.NoError(t, err)
	_, err = searcher.FindSimilar(ctx, search.Query{Text: "air max 90", MinSimilarity: 0.01})
	require.NoError(t, err)

	cfg := reembed.DefaultConfig()
	reembedReport, err := c.NewReembedder(cfg, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, reembedReport.Stale)

	coord, err := c.NewCoordinator(batchjob.WithCooldown(time.Millisecond))
	require.NoError(t, err)
	batchReport, err := coord.Run(ctx)
	require.NoError(t, err)
	assert.True(t, batchReport.Finished, "every product already carries a vector")
}

type failingProvider struct{ *mock.MockProvider }

func (failingProvider) Close() error { return errors.New("provider close") }

func TestCatalog_CloseJoinsErrors(t *testing.T) {
	p := mock.NewMockProvider(4).(*mock.MockProvider)
	c, err := New(memory.NewStore(), failingProvider{p})
	require.NoError(t, err)
	assert.ErrorContains(t, c.Close(), "provider close")
}
