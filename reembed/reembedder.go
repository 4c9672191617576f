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

package reembed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/storage"
)

// Config holds configuration for the reembedding operation.
type Config struct {
	// BatchSize is the number of products per embedding call and transaction
	BatchSize int

	// ReportInterval is how often to report progress (number of products)
	ReportInterval int

	// MaxRetries is the maximum number of attempts for failed operations
	MaxRetries int

	// RetryDelay is the base delay for exponential backoff
	RetryDelay time.Duration

	// Version is the format tag written with regenerated vectors
	Version string
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		BatchSize:      DefaultBatchSize,
		ReportInterval: 100,
		MaxRetries:     3,
		RetryDelay:     1 * time.Second,
		Version:        normalize.EmbeddingFormatVersion,
	}
}

// Report summarizes a reembedding run.
type Report struct {
	Stale   int
	Updated int
	Failed  int
	Empty   int
	Elapsed time.Duration
}

// Reembedder regenerates every stale embedding in the destination store.
type Reembedder struct {
	products  storage.ProductRepository
	config    *Config
	progress  io.Writer
	processor *BatchProcessor
	iterator  *StaleIterator
	logger    *slog.Logger
}

// NewReembedder creates a new reembedder.
// progress: where to write progress output (typically os.Stderr)
func NewReembedder(products storage.ProductRepository, embedder ai.Embedder, config *Config, progress io.Writer, logger *slog.Logger) *Reembedder {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Version == "" {
		config.Version = normalize.EmbeddingFormatVersion
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Reembedder{
		products:  products,
		config:    config,
		progress:  progress,
		processor: NewBatchProcessor(products, embedder, config.Version, config.MaxRetries, config.RetryDelay),
		iterator:  NewStaleIterator(products, config.Version, config.BatchSize),
		logger:    logger.With("component", "reembed"),
	}
}

// Run regenerates all stale embeddings. A batch that fails after its retries
// is counted and left stale for the next run; the pass continues.
func (r *Reembedder) Run(ctx context.Context) (Report, error) {
	var report Report

	total, err := r.countStale(ctx)
	if err != nil {
		return report, fmt.Errorf("failed to count stale products: %w", err)
	}
	report.Stale = total
	if total == 0 {
		r.logger.Info("every embedding is current", "version", r.config.Version)
		return report, nil
	}
	r.logger.Info("starting reembedding", "stale", total, "version", r.config.Version, "batch_size", r.config.BatchSize)

	tracker := progress.NewTracker(r.progress, "reembed", total, r.config.ReportInterval)
	tracker.Start()

	err = r.iterator.ForEach(ctx, func(page []*core.CanonicalProduct) error {
		res, err := r.processor.Process(ctx, page)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.logger.Error("batch failed", "first_id", page[0].InternalID, "size", len(page), "err", err)
			report.Failed += len(page) - res.Empty
		}
		report.Updated += res.Updated
		report.Empty += res.Empty
		tracker.Increment(len(page))
		return nil
	})
	tracker.Finish()
	report.Elapsed = tracker.Elapsed()
	if err != nil {
		return report, err
	}

	r.logger.Info("reembedding complete", "updated", report.Updated, "failed", report.Failed,
		"empty", report.Empty, "elapsed", report.Elapsed.Round(time.Second))
	return report, nil
}

func (r *Reembedder) countStale(ctx context.Context) (int, error) {
	n := 0
	err := r.iterator.ForEach(ctx, func(page []*core.CanonicalProduct) error {
		n += len(page)
		return nil
	})
	return n, err
}
