package storage

import (
	"context"
	"io"

	"github.com/poiesic/catalogsync/core"
)

// SourceScope selects a subset of source product rows.
type SourceScope int

const (
	// ScopeAll selects every row.
	ScopeAll SourceScope = iota
	// ScopeInventoryReferenced selects rows whose style id appears as a
	// bracketed hint on at least one inventory label.
	ScopeInventoryReferenced
	// ScopeStyled selects rows with a non-blank style id.
	ScopeStyled
	// ScopeUnstyled selects rows without a style id.
	ScopeUnstyled
)

func (s SourceScope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeInventoryReferenced:
		return "inventory-referenced"
	case ScopeStyled:
		return "styled"
	case ScopeUnstyled:
		return "unstyled"
	}
	return "unknown"
}

// SourceRepository reads product and inventory rows from the source store.
// It never writes.
type SourceRepository interface {
	// Products returns the source rows of one platform within scope.
	Products(ctx context.Context, platform core.Platform, scope SourceScope) ([]core.SourceProduct, error)

	// InventoryUnits returns every source inventory row, unlinked.
	InventoryUnits(ctx context.Context) ([]core.InventoryUnit, error)

	// Close releases the underlying connection.
	Close() error
}

// WorkFilter selects products for embedding generation, ordered by internal id.
type WorkFilter struct {
	AfterID   int64 // Exclusive lower bound
	ThroughID int64 // Inclusive upper bound, 0 for unbounded
	Limit     int   // 0 for no limit

	// IncludeEmbedded also returns products that already carry a vector.
	IncludeEmbedded bool
}

// NearestQuery parameterizes a vector similarity query.
type NearestQuery struct {
	Platform      core.Platform // Empty for every platform
	Limit         int
	MinSimilarity float64
}

// ProductRepository provides operations on canonical products in the destination store.
// Implementations must be thread-safe and support concurrent access.
type ProductRepository interface {
	// UpsertProducts writes products in one transaction, keyed on
	// (platform_id, platform). Derived fields are overwritten on conflict;
	// internal ids are never changed. InternalID is populated on every product.
	// A product without an embedding keeps the stored vector unless its
	// embedding text changed.
	UpsertProducts(ctx context.Context, products []*core.CanonicalProduct) error

	// GetProduct retrieves a product by internal id.
	// Returns ErrNotFound if the product doesn't exist.
	GetProduct(ctx context.Context, id int64) (*core.CanonicalProduct, error)

	// ExistingPlatformIDs returns the platform ids of one platform already present.
	ExistingPlatformIDs(ctx context.Context, platform core.Platform) (map[string]struct{}, error)

	// ProductRefs returns the matching view of every product of a platform,
	// ordered by internal id. Embeddings are included when withEmbeddings is set.
	ProductRefs(ctx context.Context, platform core.Platform, withEmbeddings bool) ([]core.ProductRef, error)

	// ProductRefsByName returns products whose display name is in names,
	// grouped by display name, each group ordered by internal id.
	ProductRefsByName(ctx context.Context, names []string) (map[string][]core.ProductRef, error)

	// ProductIDsByPlatformID resolves platform ids of one platform to internal ids.
	ProductIDsByPlatformID(ctx context.Context, platform core.Platform, platformIDs []string) (map[string]int64, error)

	// EmbeddingWork lists products with embedding text that need a vector.
	EmbeddingWork(ctx context.Context, filter WorkFilter) ([]core.EmbeddingWork, error)

	// StaleProducts lists products whose embedding version differs from version,
	// ordered by internal id, starting after afterID.
	StaleProducts(ctx context.Context, version string, afterID int64, limit int) ([]*core.CanonicalProduct, error)

	// UpdateEmbeddings writes vectors in one transaction and returns the
	// number of products updated. Unknown ids are skipped.
	UpdateEmbeddings(ctx context.Context, updates []core.EmbeddingUpdate) (int, error)

	// CountProducts returns the total and embedded product counts.
	CountProducts(ctx context.Context) (total, embedded int64, err error)

	// NearestProducts returns the products closest to vector by cosine
	// similarity, highest first.
	NearestProducts(ctx context.Context, vector []float32, q NearestQuery) ([]core.ScoredProduct, error)
}

// InventoryRepository provides operations on inventory units in the destination store.
type InventoryRepository interface {
	// UpsertInventory writes units in one transaction keyed on sku.
	// On conflict sold, location, linked product and link confidence are overwritten.
	UpsertInventory(ctx context.Context, units []core.InventoryUnit) error

	// UnlinkedInventory returns units without a linked product.
	UnlinkedInventory(ctx context.Context) ([]core.InventoryUnit, error)

	// UpdateLinks sets the linked product and confidence of units by sku and
	// returns the number of rows changed.
	UpdateLinks(ctx context.Context, units []core.InventoryUnit) (int, error)
}

// MappingRepository provides operations on product mappings.
type MappingRepository interface {
	// SaveMappings writes mappings in one transaction keyed on source product.
	// MappingID is populated on every mapping; an existing mapping for the
	// same source keeps its id.
	SaveMappings(ctx context.Context, mappings []*core.ProductMapping) error

	// ListMappings returns every mapping ordered by mapping id.
	ListMappings(ctx context.Context) ([]core.ProductMapping, error)

	// MappedSources returns the ids of source products that already have a mapping.
	MappedSources(ctx context.Context) (map[int64]struct{}, error)

	// ApplyDefaults marks exactly the given mapping ids as default and clears
	// the flag on every other mapping, in one transaction.
	ApplyDefaults(ctx context.Context, defaultIDs []int64) error

	// ClearMappings removes every mapping.
	ClearMappings(ctx context.Context) error
}

// IndexSpec describes a plain btree index.
type IndexSpec struct {
	Name    string
	Table   string
	Columns []string
	Where   string // Optional partial index predicate
}

// IndexManager executes index DDL against the destination store.
// Builds are non-blocking for concurrent reads and writes where the store allows it.
type IndexManager interface {
	// CreateVectorIndex builds the approximate nearest-neighbour index with
	// the given partition count under a maintenance memory ceiling in MB.
	// Returns the store's error unchanged so callers can classify it.
	CreateVectorIndex(ctx context.Context, name string, lists int, memoryMB int) error

	// CreateIndex builds one btree index if it does not exist.
	CreateIndex(ctx context.Context, spec IndexSpec) error

	// DropIndex drops an index if it exists.
	DropIndex(ctx context.Context, name string) error

	// IndexExists reports whether a valid index with the name exists.
	IndexExists(ctx context.Context, name string) (bool, error)
}

// ShardStateRepository persists asynchronous embedding job state and result
// artifacts across process restarts.
type ShardStateRepository interface {
	// SaveShard persists one shard state, setting UpdatedAt.
	SaveShard(ctx context.Context, state *core.ShardState) error

	// GetShard retrieves one shard state.
	// Returns ErrNotFound if no state exists.
	GetShard(ctx context.Context, runID string, index int) (*core.ShardState, error)

	// ListShards returns every persisted shard ordered by run and shard index.
	ListShards(ctx context.Context) ([]*core.ShardState, error)

	// DeleteRun removes every shard state and artifact of a run.
	DeleteRun(ctx context.Context, runID string) error

	// SaveArtifact stores a shard's result stream. The artifact becomes
	// visible only once fully written.
	SaveArtifact(ctx context.Context, runID string, index int, r io.Reader) (int64, error)

	// HasArtifact reports whether a complete artifact exists for the shard.
	HasArtifact(ctx context.Context, runID string, index int) (bool, error)

	// OpenArtifact opens a stored artifact for reading.
	// Returns ErrNotFound if no complete artifact exists.
	OpenArtifact(ctx context.Context, runID string, index int) (io.ReadCloser, error)

	// Close releases the underlying store.
	Close() error
}

// Store aggregates the destination repositories.
type Store interface {
	Products() ProductRepository
	Inventory() InventoryRepository
	Mappings() MappingRepository
	Indexes() IndexManager
	Close() error
}
