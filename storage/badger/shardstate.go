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


package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/storage"
)

// defaultChunkSize bounds a single artifact value.
const defaultChunkSize = 4 << 20

// ShardStateRepository implements storage.ShardStateRepository for BadgerDB.
type ShardStateRepository struct {
	backend   *Backend
	chunkSize int
	logger    *slog.Logger
}

var _ storage.ShardStateRepository = (*ShardStateRepository)(nil)

// NewShardStateRepository creates a shard state repository on an open backend.
// Closing the repository closes the backend.
func NewShardStateRepository(backend *Backend) *ShardStateRepository {
	return &ShardStateRepository{
		backend:   backend,
		chunkSize: defaultChunkSize,
		logger:    backend.logger.With("component", "shard-state"),
	}
}

// Open opens (or creates) a shard state store at path.
func Open(path string) (storage.ShardStateRepository, error) {
	backend, err := OpenBackend(path, false)
	if err != nil {
		return nil, err
	}
	return NewShardStateRepository(backend), nil
}

// SaveShard persists the state of one shard.
func (r *ShardStateRepository) SaveShard(ctx context.Context, state *core.ShardState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		state.UpdatedAt = time.Now().UTC().Truncate(time.Microsecond)
		return tx.Set(makeShardKey(state.RunID, state.ShardIndex), storage.MarshalShardState(state))
	}, true)
}

// GetShard retrieves the state of one shard.
func (r *ShardStateRepository) GetShard(ctx context.Context, runID string, index int) (*core.ShardState, error) {
	var state *core.ShardState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeShardKey(runID, index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			var unmarshalErr error
			state, unmarshalErr = storage.UnmarshalShardState(val)
			return unmarshalErr
		})
	}, false)
	return state, err
}

// ListShards returns every persisted shard, ordered by run id then shard index.
func (r *ShardStateRepository) ListShards(ctx context.Context) ([]*core.ShardState, error) {
	var states []*core.ShardState
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(shardStatePrefix + ":")
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			err := iter.Item().Value(func(val []byte) error {
				state, err := storage.UnmarshalShardState(val)
				if err != nil {
					return fmt.Errorf("shard %s: %w", iter.Item().Key(), err)
				}
				states = append(states, state)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	}, false)
	return states, err
}

// DeleteRun removes every shard state and artifact of a run.
func (r *ShardStateRepository) DeleteRun(ctx context.Context, runID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := r.backend.deletePrefixes(
		makeRunPrefix(shardStatePrefix, runID),
		makeRunPrefix(artifactMarkerPrefix, runID),
		makeRunPrefix(artifactChunkPrefix, runID),
	)
	if err != nil {
		return err
	}
	r.logger.Debug("deleted run state", "run", runID)
	return nil
}

// SaveArtifact stores r as the result artifact of a shard, split into
// fixed-size chunks. A marker recording the chunk count is written last;
// until then the artifact does not exist.
func (r *ShardStateRepository) SaveArtifact(ctx context.Context, runID string, index int, src io.Reader) (int64, error) {
	// Clear leftovers of an interrupted earlier attempt
	if err := r.backend.deletePrefixes(
		makeArtifactMarkerKey(runID, index),
		makeArtifactChunkPrefix(runID, index),
	); err != nil {
		return 0, err
	}

	wb := r.backend.db.NewWriteBatch()
	defer wb.Cancel()

	var (
		total  int64
		chunks int
	)
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		buf := make([]byte, r.chunkSize)
		n, err := io.ReadFull(src, buf)
		if n > 0 {
			if setErr := wb.Set(makeArtifactChunkKey(runID, index, chunks), buf[:n]); setErr != nil {
				return total, setErr
			}
			chunks++
			total += int64(n)
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			break
		}
		if err != nil {
			return total, err
		}
	}
	if err := wb.Flush(); err != nil {
		return total, err
	}

	marker := make([]byte, 16)
	binary.BigEndian.PutUint64(marker, uint64(chunks))
	binary.BigEndian.PutUint64(marker[8:], uint64(total))
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		return tx.Set(makeArtifactMarkerKey(runID, index), marker)
	}, true)
	if err != nil {
		return total, err
	}

	r.logger.Debug("stored artifact", "run", runID, "shard", index, "bytes", total, "chunks", chunks)
	return total, nil
}

// HasArtifact reports whether a complete artifact exists for the shard.
func (r *ShardStateRepository) HasArtifact(ctx context.Context, runID string, index int) (bool, error) {
	_, _, err := r.marker(runID, index)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// OpenArtifact opens a complete artifact for streaming.
func (r *ShardStateRepository) OpenArtifact(ctx context.Context, runID string, index int) (io.ReadCloser, error) {
	chunks, _, err := r.marker(runID, index)
	if err != nil {
		return nil, err
	}
	return &chunkReader{repo: r, runID: runID, index: index, chunks: chunks}, nil
}

// Close closes the underlying backend.
func (r *ShardStateRepository) Close() error {
	return r.backend.Close()
}

func (r *ShardStateRepository) marker(runID string, index int) (chunks int, size int64, err error) {
	err = r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeArtifactMarkerKey(runID, index))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return storage.ErrNotFound
			}
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != 16 {
				return storage.ErrSerializationFailed
			}
			chunks = int(binary.BigEndian.Uint64(val))
			size = int64(binary.BigEndian.Uint64(val[8:]))
			return nil
		})
	}, false)
	return chunks, size, err
}

// chunkReader streams an artifact one chunk at a time.
type chunkReader struct {
	repo   *ShardStateRepository
	runID  string
	index  int
	chunks int
	next   int
	buf    []byte
}

func (c *chunkReader) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if c.next >= c.chunks {
			return 0, io.EOF
		}
		err := c.repo.backend.WithTx(func(tx *badger.Txn) error {
			item, err := tx.Get(makeArtifactChunkKey(c.runID, c.index, c.next))
			if err != nil {
				if errors.Is(err, badger.ErrKeyNotFound) {
					return fmt.Errorf("%w: chunk %d of %d missing", storage.ErrTruncatedData, c.next, c.chunks)
				}
				return err
			}
			c.buf, err = item.ValueCopy(nil)
			return err
		}, false)
		if err != nil {
			return 0, err
		}
		c.next++
	}
	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

func (c *chunkReader) Close() error {
	c.buf = nil
	c.next = c.chunks
	return nil
}
