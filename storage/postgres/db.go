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


package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/poiesic/catalogsync/storage"
)

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool      *pgxpool.Pool
	products  *ProductRepository
	inventory *InventoryRepository
	mappings  *MappingRepository
	indexes   *IndexManager
	logger    *slog.Logger
}

var _ storage.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store) error

// WithLogger sets the logger used by the store.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) error {
		s.logger = logger.With("component", "postgres")
		return nil
	}
}

// Open connects to the destination, applies migrations and verifies the
// embedding column dimension.
//
// Returns storage.Store interface to enforce abstraction.
func Open(ctx context.Context, cfg *Config, opts ...Option) (storage.Store, error) {
	return open(ctx, cfg, opts...)
}

func open(ctx context.Context, cfg *Config, opts ...Option) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{logger: slog.Default().With("component", "postgres")}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	// The vector type must exist before connections register it
	if !cfg.SkipMigrations {
		if err := RunMigrations(cfg.URL, s.logger); err != nil {
			return nil, err
		}
	}

	pool, err := newPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	s.pool = pool

	if cfg.Dimensions > 0 {
		if err := s.checkDimensions(ctx, cfg.Dimensions); err != nil {
			pool.Close()
			return nil, err
		}
	}

	s.products = &ProductRepository{pool: pool, logger: s.logger}
	s.inventory = &InventoryRepository{pool: pool}
	s.mappings = &MappingRepository{pool: pool}
	s.indexes = &IndexManager{pool: pool, logger: s.logger}
	return s, nil
}

func newPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 10
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}

// checkDimensions compares the declared width of products.embedding with dim.
func (s *Store) checkDimensions(ctx context.Context, dim int) error {
	var width int
	err := s.pool.QueryRow(ctx, `
		SELECT atttypmod FROM pg_attribute
		WHERE attrelid = 'products'::regclass AND attname = 'embedding'`).Scan(&width)
	if err != nil {
		return fmt.Errorf("failed to read embedding column: %w", err)
	}
	if width > 0 && width != dim {
		return fmt.Errorf("%w: column holds %d, configured %d", ErrDimensionMismatch, width, dim)
	}
	return nil
}

// Products returns the product repository.
func (s *Store) Products() storage.ProductRepository { return s.products }

// Inventory returns the inventory repository.
func (s *Store) Inventory() storage.InventoryRepository { return s.inventory }

// Mappings returns the mapping repository.
func (s *Store) Mappings() storage.MappingRepository { return s.mappings }

// Indexes returns the index manager.
func (s *Store) Indexes() storage.IndexManager { return s.indexes }

// Close closes the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// inTx runs fn in a transaction on pool, committing on success.
func inTx(ctx context.Context, pool *pgxpool.Pool, fn func(tx pgx.Tx) error) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", storage.ErrTransactionFailed, err)
	}
	defer tx.Rollback(context.WithoutCancel(ctx)) //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit: %w", storage.ErrTransactionFailed, err)
	}
	return nil
}
