package indexbuild

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/catalogsync/storage/memory"
)

func TestLists(t *testing.T) {
	tests := []struct {
		count int64
		want  int
	}{
		{0, MinLists},
		{100, MinLists},
		{2500, 50},
		{10_000, 100},
		{250_000, 500},
		{1_000_000, 1000},
		{10_000_000, MaxLists},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Lists(tt.count), "count %d", tt.count)
	}
}

func TestLadder_StrictlyCheaper(t *testing.T) {
	for _, lists := range []int{MinLists, 60, 300, MaxLists} {
		rungs := Ladder(lists)
		assert.Equal(t, Rung{MemoryMB: 512, Lists: lists}, rungs[0])
		for i := 1; i < len(rungs); i++ {
			prev, cur := rungs[i-1], rungs[i]
			assert.LessOrEqual(t, cur.MemoryMB, prev.MemoryMB)
			assert.LessOrEqual(t, cur.Lists, prev.Lists)
			assert.NotEqual(t, prev, cur, "rung %d repeats %s", i, prev)
			assert.GreaterOrEqual(t, cur.Lists, MinLists, "rung %d (%s)", i, cur)
		}
	}
	assert.Len(t, Ladder(300), 5)
	assert.Equal(t, Rung{MemoryMB: 64, Lists: 250}, Ladder(1000)[4])
}

func TestLadder_SmallBaseline(t *testing.T) {
	assert.Equal(t, []Rung{
		{MemoryMB: 512, Lists: MinLists},
		{MemoryMB: 256, Lists: MinLists},
		{MemoryMB: 128, Lists: MinLists},
		{MemoryMB: 64, Lists: MinLists},
	}, Ladder(MinLists))

	assert.Equal(t, []Rung{
		{MemoryMB: 512, Lists: 60},
		{MemoryMB: 256, Lists: 60},
		{MemoryMB: 128, Lists: 60},
		{MemoryMB: 128, Lists: MinLists},
		{MemoryMB: 64, Lists: MinLists},
	}, Ladder(60))
}

func TestClassify(t *testing.T) {
	assert.True(t, IsResourceError(&pgconn.PgError{Code: "53200", Message: "out of memory"}))
	assert.True(t, IsResourceError(&pgconn.PgError{Code: "54000", Message: "program limit exceeded"}))
	assert.True(t, IsResourceError(fmt.Errorf("build: %w",
		errors.New("memory required is 163 MB, maintenance_work_mem is 64 MB"))))
	assert.False(t, IsResourceError(&pgconn.PgError{Code: "22P02", Message: "invalid input"}))
	assert.False(t, IsResourceError(nil))

	assert.True(t, IsAlreadyExists(&pgconn.PgError{Code: "42P07"}))
	assert.True(t, IsAlreadyExists(errors.New(`relation "x" already exists`)))
	assert.False(t, IsAlreadyExists(errors.New("boom")))
}

func newBuilder(t *testing.T, store *memory.Store) *Builder {
	t.Helper()
	b, err := NewBuilder(store.Indexes(), store.Products())
	require.NoError(t, err)
	return b
}

func TestBuildVectorIndex_FirstRung(t *testing.T) {
	store := memory.NewStore()
	b := newBuilder(t, store)

	res, err := b.BuildVectorIndex(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.Built)
	assert.Equal(t, Rung{MemoryMB: 512, Lists: MinLists}, res.Rung)
	ok, err := store.Indexes().IndexExists(context.Background(), VectorIndexName)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestBuildVectorIndex_FallsBack(t *testing.T) {
	store := memory.NewStore()
	var tried []Rung
	store.FailVectorIndex = func(lists, memoryMB int) error {
		tried = append(tried, Rung{MemoryMB: memoryMB, Lists: lists})
		if memoryMB > 128 {
			return &pgconn.PgError{Code: "53200", Message: "out of memory"}
		}
		return nil
	}

	res, err := newBuilder(t, store).BuildVectorIndex(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.Built)
	assert.Len(t, res.Attempts, 2)
	assert.Equal(t, 128, res.Rung.MemoryMB)
	assert.Len(t, tried, 3)
}

func TestBuildVectorIndex_Exhausted(t *testing.T) {
	store := memory.NewStore()
	store.FailVectorIndex = func(lists, memoryMB int) error {
		return errors.New("ERROR: memory required is 900 MB")
	}

	res, err := newBuilder(t, store).BuildVectorIndex(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Built)
	assert.True(t, res.Exhausted())
	assert.Len(t, res.Attempts, len(Ladder(MinLists)))
}

func TestBuildVectorIndex_OtherErrorAborts(t *testing.T) {
	store := memory.NewStore()
	calls := 0
	store.FailVectorIndex = func(lists, memoryMB int) error {
		calls++
		return &pgconn.PgError{Code: "XX000", Message: "corrupt data"}
	}

	_, err := newBuilder(t, store).BuildVectorIndex(context.Background(), false)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestBuildVectorIndex_AlreadyExistsIsSuccess(t *testing.T) {
	store := memory.NewStore()
	store.FailVectorIndex = func(lists, memoryMB int) error {
		return &pgconn.PgError{Code: "42P07", Message: "relation already exists"}
	}
	res, err := newBuilder(t, store).BuildVectorIndex(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.Built)
}

func TestBuildVectorIndex_ExistingAndRebuild(t *testing.T) {
	store := memory.NewStore()
	b := newBuilder(t, store)
	ctx := context.Background()

	_, err := b.BuildVectorIndex(ctx, false)
	require.NoError(t, err)

	res, err := b.BuildVectorIndex(ctx, false)
	require.NoError(t, err)
	assert.True(t, res.Existing)

	res, err = b.BuildVectorIndex(ctx, true)
	require.NoError(t, err)
	assert.False(t, res.Existing)
	assert.True(t, res.Built)
}

func TestBuildStandardIndexes(t *testing.T) {
	store := memory.NewStore()
	b := newBuilder(t, store)
	ctx := context.Background()

	require.NoError(t, b.BuildStandardIndexes(ctx))
	require.NoError(t, b.BuildStandardIndexes(ctx), "rebuilding is a no-op")
	for _, spec := range StandardIndexes {
		ok, err := store.Indexes().IndexExists(ctx, spec.Name)
		require.NoError(t, err)
		assert.True(t, ok, spec.Name)
	}
}
