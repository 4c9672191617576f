// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package indexbuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/catalogsync/storage"
)

// VectorIndexName is the name of the approximate nearest-neighbour index.
const VectorIndexName = "products_embedding_ivfflat_idx"

// ErrStoreRequired is returned when a builder is created without repositories.
var ErrStoreRequired = errors.New("index manager and product repository required")

// StandardIndexes are the btree indexes supporting lookups and linking.
var StandardIndexes = []storage.IndexSpec{
	{Name: "products_platform_idx", Table: "products", Columns: []string{"platform"}},
	{Name: "products_style_id_normalized_idx", Table: "products", Columns: []string{"style_id_normalized"}, Where: "style_id_normalized IS NOT NULL"},
	{Name: "products_name_idx", Table: "products", Columns: []string{"product_name_platform"}},
	{Name: "products_platform_platform_id_idx", Table: "products", Columns: []string{"platform", "product_id_platform"}},
	{Name: "inventory_linked_product_idx", Table: "inventory", Columns: []string{"product_id_internal"}, Where: "product_id_internal IS NOT NULL"},
}

// Attempt records one ladder rung that was tried.
type Attempt struct {
	Rung Rung
	Err  error
}

// Result describes a vector index build.
type Result struct {
	Embedded int64 // Embedded records at build time
	Built    bool
	Existing bool // The index was already present
	Rung     Rung // The rung that succeeded
	Attempts []Attempt
}

// Exhausted reports whether every rung failed for lack of resources.
func (r Result) Exhausted() bool {
	return !r.Built && len(r.Attempts) > 0
}

// Builder creates indexes on the destination store.
type Builder struct {
	indexes  storage.IndexManager
	products storage.ProductRepository
	logger   *slog.Logger
}

// Option configures a Builder.
type Option func(*Builder) error

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Builder) error {
		if logger == nil {
			logger = slog.Default()
		}
		b.logger = logger.With("component", "indexbuild")
		return nil
	}
}

// NewBuilder creates an index builder.
func NewBuilder(indexes storage.IndexManager, products storage.ProductRepository, opts ...Option) (*Builder, error) {
	if indexes == nil || products == nil {
		return nil, ErrStoreRequired
	}
	b := &Builder{
		indexes:  indexes,
		products: products,
		logger:   slog.Default().With("component", "indexbuild"),
	}
	for _, opt := range opts {
		if err := opt(b); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// BuildVectorIndex sizes the index from the embedded record count and walks
// the ladder until a rung succeeds. A non-resource failure is returned
// immediately. Exhausting the ladder is not an error; see Result.Exhausted.
// With rebuild set an existing index is dropped first.
func (b *Builder) BuildVectorIndex(ctx context.Context, rebuild bool) (Result, error) {
	var result Result

	_, embedded, err := b.products.CountProducts(ctx)
	if err != nil {
		return result, fmt.Errorf("count embedded products: %w", err)
	}
	result.Embedded = embedded

	if rebuild {
		if err := b.indexes.DropIndex(ctx, VectorIndexName); err != nil {
			return result, fmt.Errorf("drop %s: %w", VectorIndexName, err)
		}
	} else {
		exists, err := b.indexes.IndexExists(ctx, VectorIndexName)
		if err != nil {
			return result, err
		}
		if exists {
			b.logger.Info("vector index already present", "name", VectorIndexName)
			result.Built, result.Existing = true, true
			return result, nil
		}
	}

	lists := Lists(embedded)
	b.logger.Info("building vector index", "embedded", embedded, "lists", lists)
	for _, rung := range Ladder(lists) {
		err := b.indexes.CreateVectorIndex(ctx, VectorIndexName, rung.Lists, rung.MemoryMB)
		switch {
		case err == nil, IsAlreadyExists(err):
			result.Built = true
			result.Rung = rung
			b.logger.Info("vector index built", "rung", rung.String())
			return result, nil
		case ctx.Err() != nil:
			return result, ctx.Err()
		case IsResourceError(err):
			b.logger.Warn("index build ran out of resources, trying cheaper settings", "rung", rung.String(), "err", err)
			result.Attempts = append(result.Attempts, Attempt{Rung: rung, Err: err})
		default:
			return result, fmt.Errorf("build %s (%s): %w", VectorIndexName, rung, err)
		}
	}

	b.logger.Error("every index build attempt failed, similarity queries will scan sequentially",
		"attempts", len(result.Attempts))
	return result, nil
}

// BuildStandardIndexes creates every standard btree index that is missing.
func (b *Builder) BuildStandardIndexes(ctx context.Context) error {
	for _, spec := range StandardIndexes {
		if err := b.indexes.CreateIndex(ctx, spec); err != nil && !IsAlreadyExists(err) {
			return fmt.Errorf("create %s: %w", spec.Name, err)
		}
		b.logger.Debug("index ready", "name", spec.Name)
	}
	return nil
}
