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

// Package catalogsync wires the destination store, the embedding provider,
// the source store and batch job state into the migration, embedding,
// matching and search components.
package catalogsync

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/ai/openai"
	"github.com/poiesic/catalogsync/batchjob"
	"github.com/poiesic/catalogsync/config"
	"github.com/poiesic/catalogsync/indexbuild"
	"github.com/poiesic/catalogsync/matching"
	"github.com/poiesic/catalogsync/migrate"
	"github.com/poiesic/catalogsync/reembed"
	"github.com/poiesic/catalogsync/search"
	"github.com/poiesic/catalogsync/storage"
	"github.com/poiesic/catalogsync/storage/badger"
	"github.com/poiesic/catalogsync/storage/mysql"
	"github.com/poiesic/catalogsync/storage/postgres"
)

// ErrNoSource is returned when a source-backed operation runs on a Catalog
// built without a source.
var ErrNoSource = errors.New("source store not configured")

// ErrNoShardState is returned when batch embedding runs on a Catalog built
// without a state store.
var ErrNoShardState = errors.New("shard state store not configured")

// Catalog owns the long-lived connections shared by every command.
// The source store and shard state open on first use.
type Catalog struct {
	store    storage.Store
	provider ai.AIProvider
	logger   *slog.Logger

	mu         sync.Mutex
	source     storage.SourceRepository
	state      storage.ShardStateRepository
	openSource func(ctx context.Context) (storage.SourceRepository, error)
	openState  func() (storage.ShardStateRepository, error)
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSource uses an already open source store.
func WithSource(source storage.SourceRepository) Option {
	return func(c *Catalog) {
		c.source = source
	}
}

// WithShardState uses an already open shard state store.
func WithShardState(state storage.ShardStateRepository) Option {
	return func(c *Catalog) {
		c.state = state
	}
}

// Open connects to the destination store and creates the embedding provider
// described by cfg. The source store and shard state open lazily.
func Open(ctx context.Context, cfg *config.Config, opts ...Option) (*Catalog, error) {
	c := &Catalog{logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}

	provider, err := openai.NewProvider(cfg.AI.Provider())
	if err != nil {
		return nil, fmt.Errorf("create embedding provider: %w", err)
	}

	store, err := postgres.Open(ctx, cfg.Postgres(), postgres.WithLogger(c.logger))
	if err != nil {
		provider.Close()
		return nil, fmt.Errorf("open destination: %w", err)
	}

	c.store = store
	c.provider = provider
	src := cfg.Source.MySQL()
	c.openSource = func(ctx context.Context) (storage.SourceRepository, error) {
		return mysql.Open(ctx, src, mysql.WithLogger(c.logger))
	}
	statePath := cfg.StatePath
	c.openState = func() (storage.ShardStateRepository, error) {
		return badger.Open(statePath)
	}
	return c, nil
}

// New builds a Catalog around an existing store and provider.
func New(store storage.Store, provider ai.AIProvider, opts ...Option) (*Catalog, error) {
	if store == nil {
		return nil, errors.New("store is required")
	}
	if provider == nil {
		return nil, errors.New("provider is required")
	}
	c := &Catalog{store: store, provider: provider, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Close releases the provider, then the lazily opened stores, then the
// destination store.
func (c *Catalog) Close() error {
	var errs []error
	if err := c.provider.Close(); err != nil {
		c.logger.Error("error closing embedding provider", "err", err)
		errs = append(errs, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		if err := c.state.Close(); err != nil {
			c.logger.Error("error closing shard state", "err", err)
			errs = append(errs, err)
		}
	}
	if c.source != nil {
		if err := c.source.Close(); err != nil {
			c.logger.Error("error closing source store", "err", err)
			errs = append(errs, err)
		}
	}
	if err := c.store.Close(); err != nil {
		c.logger.Error("error closing destination store", "err", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (c *Catalog) Store() storage.Store {
	return c.store
}

func (c *Catalog) Provider() ai.AIProvider {
	return c.provider
}

// Source returns the source store, opening it on first use.
func (c *Catalog) Source(ctx context.Context) (storage.SourceRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.source != nil {
		return c.source, nil
	}
	if c.openSource == nil {
		return nil, ErrNoSource
	}
	src, err := c.openSource(ctx)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	c.source = src
	return src, nil
}

// ShardState returns the batch job state store, opening it on first use.
func (c *Catalog) ShardState() (storage.ShardStateRepository, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != nil {
		return c.state, nil
	}
	if c.openState == nil {
		return nil, ErrNoShardState
	}
	state, err := c.openState()
	if err != nil {
		return nil, fmt.Errorf("open shard state: %w", err)
	}
	c.state = state
	return state, nil
}

func (c *Catalog) NewOrchestrator(ctx context.Context, opts ...migrate.Option) (*migrate.Orchestrator, error) {
	source, err := c.Source(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]migrate.Option{migrate.WithLogger(c.logger)}, opts...)
	return migrate.NewOrchestrator(source, c.store.Products(), c.provider.Embedder(), opts...)
}

func (c *Catalog) NewInventoryMigrator(ctx context.Context, opts ...migrate.Option) (*migrate.InventoryMigrator, error) {
	source, err := c.Source(ctx)
	if err != nil {
		return nil, err
	}
	opts = append([]migrate.Option{migrate.WithLogger(c.logger)}, opts...)
	return migrate.NewInventoryMigrator(source, c.store.Products(), c.store.Inventory(), opts...)
}

func (c *Catalog) NewCoordinator(opts ...batchjob.Option) (*batchjob.Coordinator, error) {
	state, err := c.ShardState()
	if err != nil {
		return nil, err
	}
	opts = append([]batchjob.Option{batchjob.WithLogger(c.logger)}, opts...)
	return batchjob.NewCoordinator(c.store.Products(), state, c.provider.BatchEmbedder(), opts...)
}

func (c *Catalog) NewReembedder(cfg *reembed.Config, progress io.Writer) *reembed.Reembedder {
	return reembed.NewReembedder(c.store.Products(), c.provider.Embedder(), cfg, progress, c.logger)
}

func (c *Catalog) NewMatchingEngine(opts ...matching.Option) (*matching.Engine, error) {
	opts = append([]matching.Option{matching.WithLogger(c.logger)}, opts...)
	return matching.NewEngine(c.store.Products(), c.store.Mappings(), opts...)
}

func (c *Catalog) NewIndexBuilder(opts ...indexbuild.Option) (*indexbuild.Builder, error) {
	opts = append([]indexbuild.Option{indexbuild.WithLogger(c.logger)}, opts...)
	return indexbuild.NewBuilder(c.store.Indexes(), c.store.Products(), opts...)
}

func (c *Catalog) NewSearcher(opts ...search.Option) (*search.Searcher, error) {
	opts = append([]search.Option{search.WithLogger(c.logger)}, opts...)
	return search.NewSearcher(c.store.Products(), c.provider.Embedder(), opts...)
}

// Probe samples primary products and reports nearest secondary neighbours
// at each threshold.
func (c *Catalog) Probe(ctx context.Context, thresholds []float64, sampleSize int, seed uint64) (*search.ProbeReport, error) {
	return search.Probe(ctx, c.store.Products(), thresholds, sampleSize, seed)
}
