package migrate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage/memory"
)

func seedProducts(t *testing.T, store *memory.Store) map[string]int64 {
	t.Helper()
	style := func(s string) *string { return &s }
	products := []*core.CanonicalProduct{
		{PlatformID: "sx-1", Platform: core.PlatformStockX, DisplayName: "AIR MAX 90", StyleKeyNormalized: style("DD0385100")},
		{PlatformID: "sx-2", Platform: core.PlatformStockX, DisplayName: "AIR MAX 90", StyleKeyNormalized: style("CN8490001")},
		{PlatformID: "sx-3", Platform: core.PlatformStockX, DisplayName: "DUNK LOW"},
		{PlatformID: "a-1", Platform: core.PlatformAlias, DisplayName: "SLIDES"},
	}
	require.NoError(t, store.Products().UpsertProducts(context.Background(), products))
	ids := make(map[string]int64)
	for _, p := range products {
		ids[p.PlatformID] = p.InternalID
	}
	return ids
}

func TestInventoryMigrator_Run(t *testing.T) {
	store := memory.NewStore()
	ids := seedProducts(t, store)

	source := &memory.Source{Inventory: []core.InventoryUnit{
		{SKU: "1", RawItemLabel: "Whatever", StockXProductID: "sx-3"},
		{SKU: "2", RawItemLabel: "Slides", AliasCatalogID: "a-1"},
		{SKU: "3", RawItemLabel: "Dunk Low"},
		{SKU: "4", RawItemLabel: "Air Max 90 [CN8490-001]"},
		{SKU: "5", RawItemLabel: "Air Max 90"},
		{SKU: "6", RawItemLabel: "Unknown Shoe"},
		{SKU: "", RawItemLabel: "no sku"},
	}}

	m, err := NewInventoryMigrator(source, store.Products(), store.Inventory(), WithChunkSize(2), WithRetryPolicy(fastRetry))
	require.NoError(t, err)

	report, err := m.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 7, report.Total)
	assert.Equal(t, 6, report.Written)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.PlatformID)
	assert.Equal(t, 1, report.Exact)
	assert.Equal(t, 1, report.Hinted)
	assert.Equal(t, 1, report.Ambiguous)
	assert.Equal(t, 1, report.Unlinked)
	assert.Equal(t, 5, report.Linked())

	check := func(sku string, want int64, conf core.LinkConfidence) {
		u, ok := store.InventoryUnit(sku)
		require.True(t, ok, sku)
		require.NotNil(t, u.LinkedProductID, sku)
		assert.Equal(t, want, *u.LinkedProductID, sku)
		assert.Equal(t, conf, u.LinkConfidence, sku)
	}
	check("1", ids["sx-3"], core.LinkPlatformID)
	check("2", ids["a-1"], core.LinkPlatformID)
	check("3", ids["sx-3"], core.LinkExact)
	check("4", ids["sx-2"], core.LinkHinted)
	check("5", ids["sx-1"], core.LinkAmbiguous)

	u, ok := store.InventoryUnit("6")
	require.True(t, ok)
	assert.Nil(t, u.LinkedProductID)
}

func TestInventoryMigrator_Relink(t *testing.T) {
	store := memory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.Inventory().UpsertInventory(ctx, []core.InventoryUnit{
		{SKU: "1", RawItemLabel: "Dunk Low"},
		{SKU: "2", RawItemLabel: "Unknown"},
	}))

	m, err := NewInventoryMigrator(nil, store.Products(), store.Inventory())
	require.NoError(t, err)

	_, err = m.Run(ctx)
	assert.ErrorIs(t, err, ErrSourceRequired)

	report, err := m.Relink(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Linked())

	ids := seedProducts(t, store)
	report, err = m.Relink(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Total)
	assert.Equal(t, 1, report.Exact)
	assert.Equal(t, 1, report.Written)

	u, _ := store.InventoryUnit("1")
	require.NotNil(t, u.LinkedProductID)
	assert.Equal(t, ids["sx-3"], *u.LinkedProductID)

	unlinked, err := store.Inventory().UnlinkedInventory(ctx)
	require.NoError(t, err)
	require.Len(t, unlinked, 1)
	assert.Equal(t, "2", unlinked[0].SKU)
}
