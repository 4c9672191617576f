package postgres

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

func strPtr(s string) *string { return &s }

func unitVector(dim, hot int) []float32 {
	v := make([]float32, dim)
	v[hot] = 1
	return v
}

func testProduct(platform core.Platform, id, name, style string) *core.CanonicalProduct {
	p := &core.CanonicalProduct{
		PlatformID:       id,
		Platform:         platform,
		DisplayName:      name,
		EmbeddingText:    name,
		EmbeddingVersion: "v1",
		Attributes:       map[string]any{"brand": "NIKE"},
	}
	if style != "" {
		p.StyleKeyRaw = strPtr(style)
		p.StyleKeyNormalized = strPtr(style)
	}
	return p
}

func TestOpen_DimensionMismatch(t *testing.T) {
	url := testDatabaseURL(t)
	_, err := Open(context.Background(), &Config{URL: url, Dimensions: 768})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestProducts_UpsertAssignsStableIDs(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Products()

	p := testProduct(core.PlatformStockX, "sx-1", "AIR MAX 90", "DD0385-100")
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{p}))
	require.NotZero(t, p.InternalID)
	firstID := p.InternalID

	again := testProduct(core.PlatformStockX, "sx-1", "AIR MAX 90 WHITE", "DD0385-100")
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{again}))
	assert.Equal(t, firstID, again.InternalID)

	got, err := repo.GetProduct(ctx, firstID)
	require.NoError(t, err)
	assert.Equal(t, "AIR MAX 90 WHITE", got.DisplayName)
	assert.Equal(t, "NIKE", got.Attributes["brand"])
	require.NotNil(t, got.StyleKeyNormalized)
	assert.Equal(t, "DD0385-100", *got.StyleKeyNormalized)

	_, err = repo.GetProduct(ctx, firstID+1000)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProducts_UpsertKeepsVectorUntilTextChanges(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Products()

	p := testProduct(core.PlatformAlias, "a-1", "DUNK LOW", "")
	p.Embedding = unitVector(1536, 0)
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{p}))

	same := testProduct(core.PlatformAlias, "a-1", "DUNK LOW", "")
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{same}))
	got, err := repo.GetProduct(ctx, p.InternalID)
	require.NoError(t, err)
	assert.Len(t, got.Embedding, 1536)

	changed := testProduct(core.PlatformAlias, "a-1", "DUNK LOW PANDA", "")
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{changed}))
	got, err = repo.GetProduct(ctx, p.InternalID)
	require.NoError(t, err)
	assert.Nil(t, got.Embedding)
}

func TestProducts_EmbeddingWorkAndUpdates(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Products()

	products := []*core.CanonicalProduct{
		testProduct(core.PlatformStockX, "sx-1", "ONE", ""),
		testProduct(core.PlatformStockX, "sx-2", "TWO", ""),
		testProduct(core.PlatformStockX, "sx-3", "THREE", ""),
	}
	products[2].EmbeddingText = ""
	require.NoError(t, repo.UpsertProducts(ctx, products))

	work, err := repo.EmbeddingWork(ctx, storage.WorkFilter{})
	require.NoError(t, err)
	require.Len(t, work, 2)
	assert.Equal(t, products[0].InternalID, work[0].InternalID)

	n, err := repo.UpdateEmbeddings(ctx, []core.EmbeddingUpdate{
		{InternalID: products[0].InternalID, Version: "v1", Vector: unitVector(1536, 1)},
		{InternalID: 999999, Version: "v1", Vector: unitVector(1536, 1)},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	work, err = repo.EmbeddingWork(ctx, storage.WorkFilter{})
	require.NoError(t, err)
	require.Len(t, work, 1)
	assert.Equal(t, products[1].InternalID, work[0].InternalID)

	work, err = repo.EmbeddingWork(ctx, storage.WorkFilter{IncludeEmbedded: true, ThroughID: products[0].InternalID})
	require.NoError(t, err)
	assert.Len(t, work, 1)

	total, embedded, err := repo.CountProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Equal(t, int64(1), embedded)
}

func TestProducts_NearestProducts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	repo := s.Products()

	near := testProduct(core.PlatformStockX, "sx-1", "NEAR", "")
	near.Embedding = unitVector(1536, 0)
	far := testProduct(core.PlatformStockX, "sx-2", "FAR", "")
	far.Embedding = unitVector(1536, 1)
	other := testProduct(core.PlatformAlias, "a-1", "OTHER", "")
	other.Embedding = unitVector(1536, 0)
	require.NoError(t, repo.UpsertProducts(ctx, []*core.CanonicalProduct{near, far, other}))

	got, err := repo.NearestProducts(ctx, unitVector(1536, 0), storage.NearestQuery{
		Platform:      core.PlatformStockX,
		Limit:         5,
		MinSimilarity: 0.5,
	})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, near.InternalID, got[0].Product.InternalID)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)

	_, err = repo.NearestProducts(ctx, unitVector(1536, 0), storage.NearestQuery{})
	assert.ErrorIs(t, err, storage.ErrInvalidQuery)
}

func TestInventory_UpsertAndLinks(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := testProduct(core.PlatformStockX, "sx-1", "AIR MAX 90", "")
	require.NoError(t, s.Products().UpsertProducts(ctx, []*core.CanonicalProduct{p}))

	units := []core.InventoryUnit{
		{SKU: "SKU-1", RawItemLabel: "Air Max 90 [sx-1]", Size: "10", StockXProductID: "sx-1"},
		{SKU: "SKU-2", RawItemLabel: "Unknown", Size: "9"},
	}
	require.NoError(t, s.Inventory().UpsertInventory(ctx, units))

	unlinked, err := s.Inventory().UnlinkedInventory(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 2)
	assert.Equal(t, core.LinkNone, unlinked[0].LinkConfidence)

	linked := unlinked[0]
	linked.LinkedProductID = &p.InternalID
	linked.LinkConfidence = core.LinkPlatformID
	n, err := s.Inventory().UpdateLinks(ctx, []core.InventoryUnit{linked})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unlinked, err = s.Inventory().UnlinkedInventory(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, "SKU-2", unlinked[0].SKU)
}

func TestMappings_SaveAndDefaults(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	target := testProduct(core.PlatformStockX, "sx-1", "AIR MAX 90", "DD0385-100")
	a := testProduct(core.PlatformAlias, "a-1", "AIR MAX 90", "DD0385-100")
	b := testProduct(core.PlatformAlias, "a-2", "AIR MAX 90 OG", "")
	require.NoError(t, s.Products().UpsertProducts(ctx, []*core.CanonicalProduct{target, a, b}))

	mappings := []*core.ProductMapping{
		{SourceProductID: a.InternalID, TargetProductID: target.InternalID, ConfidenceScore: 1, Method: core.MethodExactKey},
		{SourceProductID: b.InternalID, TargetProductID: target.InternalID, ConfidenceScore: 0.91, Method: core.MethodEmbeddingSimilarity},
	}
	require.NoError(t, s.Mappings().SaveMappings(ctx, mappings))
	require.NotZero(t, mappings[0].MappingID)

	require.NoError(t, s.Mappings().ApplyDefaults(ctx, []int64{mappings[0].MappingID}))
	require.NoError(t, s.Mappings().ApplyDefaults(ctx, []int64{mappings[1].MappingID}))

	list, err := s.Mappings().ListMappings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.False(t, list[0].IsDefault)
	assert.True(t, list[1].IsDefault)

	err = s.Mappings().ApplyDefaults(ctx, []int64{mappings[0].MappingID, mappings[1].MappingID})
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	bad := []*core.ProductMapping{
		{SourceProductID: b.InternalID, TargetProductID: target.InternalID, ConfidenceScore: 0.5, Method: core.MethodExactKey},
	}
	assert.Error(t, s.Mappings().SaveMappings(ctx, bad))

	sources, err := s.Mappings().MappedSources(ctx)
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	require.NoError(t, s.Mappings().ClearMappings(ctx))
	list, err = s.Mappings().ListMappings(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestIndexes_CreateAndDrop(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	idx := s.Indexes()

	require.NoError(t, idx.CreateIndex(ctx, storage.IndexSpec{
		Name: "products_style_norm_idx", Table: "products", Columns: []string{"style_id_normalized"},
		Where: "style_id_normalized IS NOT NULL",
	}))
	ok, err := idx.IndexExists(ctx, "products_style_norm_idx")
	require.NoError(t, err)
	assert.True(t, ok)

	p := testProduct(core.PlatformStockX, "sx-1", "ONE", "")
	p.Embedding = unitVector(1536, 0)
	require.NoError(t, s.Products().UpsertProducts(ctx, []*core.CanonicalProduct{p}))
	require.NoError(t, idx.CreateVectorIndex(ctx, "products_embedding_ivfflat", 1, 64))
	ok, err = idx.IndexExists(ctx, "products_embedding_ivfflat")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, idx.DropIndex(ctx, "products_embedding_ivfflat"))
	ok, err = idx.IndexExists(ctx, "products_embedding_ivfflat")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	assert.Error(t, (&Config{}).Validate())
	assert.Error(t, (&Config{URL: "postgres://x", MaxConnections: -1}).Validate())
	assert.NoError(t, (&Config{URL: "postgres://x"}).Validate())
}
