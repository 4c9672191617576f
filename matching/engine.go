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

package matching

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/retry"
	"github.com/poiesic/catalogsync/storage"
)

// Engine reconciles secondary products with primary products.
type Engine struct {
	products storage.ProductRepository
	mappings storage.MappingRepository
	index    CandidateIndex

	threshold   float64
	commitEvery int
	workers     int
	rematch     bool
	policy      retry.Policy
	progress    io.Writer
	logger      *slog.Logger
}

// Report summarizes a matching run.
type Report struct {
	Secondary     int // Secondary products considered
	AlreadyMapped int
	Exact         int
	Similarity    int
	Unmatched     int
	NoEmbedding   int // Unmatched after the exact pass and without a vector
	Defaults      int
}

// Mapped returns the number of mappings created by the run.
func (r Report) Mapped() int { return r.Exact + r.Similarity }

// NewEngine creates a matching engine.
func NewEngine(products storage.ProductRepository, mappings storage.MappingRepository, opts ...Option) (*Engine, error) {
	if products == nil || mappings == nil {
		return nil, ErrStoreRequired
	}
	e := defaultEngine()
	e.products, e.mappings = products, mappings
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Run executes the exact pass, the similarity pass and default selection.
// Secondary products that already have a mapping are left alone unless the
// engine was built WithRematch.
func (e *Engine) Run(ctx context.Context) (Report, error) {
	var report Report

	if e.rematch {
		if err := e.mappings.ClearMappings(ctx); err != nil {
			return report, fmt.Errorf("clear mappings: %w", err)
		}
	}
	mapped, err := e.mappings.MappedSources(ctx)
	if err != nil {
		return report, fmt.Errorf("load mapped sources: %w", err)
	}

	primaries, err := e.products.ProductRefs(ctx, core.PlatformStockX, e.index == nil)
	if err != nil {
		return report, fmt.Errorf("load primary products: %w", err)
	}
	secondaries, err := e.products.ProductRefs(ctx, core.PlatformAlias, true)
	if err != nil {
		return report, fmt.Errorf("load secondary products: %w", err)
	}

	var pending []core.ProductRef
	for _, s := range secondaries {
		if _, ok := mapped[s.InternalID]; ok {
			report.AlreadyMapped++
			continue
		}
		pending = append(pending, s)
	}
	report.Secondary = len(pending)
	e.logger.Info("matching products", "primary", len(primaries), "secondary", len(pending),
		"already_mapped", report.AlreadyMapped)

	w := &committer{engine: e, ctx: ctx}

	keys := NewKeyIndex(primaries)
	var unmatched []core.ProductRef
	for _, s := range pending {
		target, ok := keys.Lookup(s.StyleKeyNormalized)
		if !ok {
			unmatched = append(unmatched, s)
			continue
		}
		if err := w.add(core.ProductMapping{
			SourceProductID: s.InternalID,
			TargetProductID: target,
			ConfidenceScore: 1.0,
			Method:          core.MethodExactKey,
		}); err != nil {
			return report, err
		}
		report.Exact++
	}
	e.logger.Info("exact pass complete", "matched", report.Exact, "remaining", len(unmatched))

	if err := e.similarityPass(ctx, primaries, unmatched, w, &report); err != nil {
		return report, err
	}
	if err := w.flush(); err != nil {
		return report, err
	}

	defaults, err := e.ApplyDefaults(ctx)
	if err != nil {
		return report, err
	}
	report.Defaults = defaults

	e.logger.Info("matching complete", "exact", report.Exact, "similarity", report.Similarity,
		"unmatched", report.Unmatched, "no_embedding", report.NoEmbedding, "defaults", report.Defaults)
	return report, nil
}

func (e *Engine) similarityPass(ctx context.Context, primaries, candidates []core.ProductRef, w *committer, report *Report) error {
	index := e.index
	if index == nil {
		mem, err := NewMemoryIndex(primaries, e.workers)
		if err != nil {
			return err
		}
		defer mem.Release()
		if mem.Len() == 0 {
			e.logger.Warn("no primary vectors, similarity pass finds nothing")
		}
		index = mem
	}

	tracker := progress.NewTracker(e.progress, "similarity", len(candidates), e.commitEvery)
	tracker.Start()
	defer tracker.Finish()

	for _, s := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}
		tracker.Increment(1)
		if len(s.Embedding) == 0 {
			report.NoEmbedding++
			continue
		}
		best, ok, err := index.Best(ctx, s.Embedding)
		if err != nil {
			return fmt.Errorf("similarity lookup for %d: %w", s.InternalID, err)
		}
		if !ok || best.Similarity < e.threshold {
			report.Unmatched++
			continue
		}
		if err := w.add(core.ProductMapping{
			SourceProductID: s.InternalID,
			TargetProductID: best.ProductID,
			ConfidenceScore: roundScore(best.Similarity),
			Method:          core.MethodEmbeddingSimilarity,
		}); err != nil {
			return err
		}
		report.Similarity++
	}
	return nil
}

// ApplyDefaults recomputes the default flag over every stored mapping and
// returns the number of defaults.
func (e *Engine) ApplyDefaults(ctx context.Context) (int, error) {
	all, err := e.mappings.ListMappings(ctx)
	if err != nil {
		return 0, fmt.Errorf("list mappings: %w", err)
	}
	ids := SelectDefaults(all)
	err = retry.Do(ctx, e.policy, func() error {
		return e.mappings.ApplyDefaults(ctx, ids)
	})
	if err != nil {
		return 0, fmt.Errorf("apply defaults: %w", err)
	}
	return len(ids), nil
}

// roundScore rounds to two decimals within [0, 1].
func roundScore(sim float64) float64 {
	return math.Min(1, math.Max(0, math.Round(sim*100)/100))
}

// committer buffers mappings and writes them in fixed-size transactions.
type committer struct {
	engine *Engine
	ctx    context.Context
	buf    []*core.ProductMapping
}

func (c *committer) add(m core.ProductMapping) error {
	c.buf = append(c.buf, &m)
	if len(c.buf) >= c.engine.commitEvery {
		return c.flush()
	}
	return nil
}

func (c *committer) flush() error {
	if len(c.buf) == 0 {
		return nil
	}
	batch := c.buf
	err := retry.Do(c.ctx, c.engine.policy, func() error {
		return c.engine.mappings.SaveMappings(c.ctx, batch)
	})
	if err != nil {
		return fmt.Errorf("save %d mappings: %w", len(batch), err)
	}
	c.engine.logger.Debug("committed mappings", "count", len(batch))
	c.buf = nil
	return nil
}

// KeyIndex resolves normalized style keys to primary product ids.
type KeyIndex map[string]int64

// NewKeyIndex indexes every match key of the primaries' normalized style keys,
// keeping the lowest product id per key.
func NewKeyIndex(primaries []core.ProductRef) KeyIndex {
	idx := make(KeyIndex)
	for _, p := range primaries {
		if p.StyleKeyNormalized == nil {
			continue
		}
		for _, k := range normalize.MatchKeys(*p.StyleKeyNormalized) {
			if cur, ok := idx[k]; !ok || p.InternalID < cur {
				idx[k] = p.InternalID
			}
		}
	}
	return idx
}

// Lookup returns the lowest primary id sharing a match key with key.
func (idx KeyIndex) Lookup(key *string) (int64, bool) {
	if key == nil {
		return 0, false
	}
	var best int64
	found := false
	for _, k := range normalize.MatchKeys(*key) {
		if id, ok := idx[k]; ok && (!found || id < best) {
			best, found = id, true
		}
	}
	return best, found
}
