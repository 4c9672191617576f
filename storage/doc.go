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


// Package storage provides the storage abstraction layer for catalogsync.
//
// This package defines repository interfaces that decouple the ETL components
// from the stores they read and write. Backends:
//
//   - storage/mysql: the read-only source store (SourceRepository)
//   - storage/postgres: the destination store with pgvector (Store and its repositories)
//   - storage/badger: durable batch job state and result artifacts (ShardStateRepository)
//   - storage/memory: in-memory destination for tests
//
// # Constructor Return Type Pattern
//
// Public constructors return INTERFACE types to enforce abstraction:
//
//	store, err := postgres.Open(ctx, cfg)       // returns storage.Store
//	shards, err := badger.NewShardStateRepository(backend)
//
// Internal package constructors (newProductRepository, etc.) may return
// concrete types since they're only used within the implementation package.
//
// # Architecture
//
//   - SourceRepository: phased product reads and inventory reads
//   - ProductRepository: canonical product upserts, embedding work lists, vector search
//   - InventoryRepository: inventory upserts and link updates
//   - MappingRepository: product mappings and default selection
//   - IndexManager: index DDL
//   - ShardStateRepository: batch job resumption state
//
// # Thread Safety
//
// All repository implementations must be thread-safe and support
// concurrent access from multiple goroutines.
//
// # Context Support
//
// All repository methods accept context.Context for cancellation
// and timeout support.
package storage
