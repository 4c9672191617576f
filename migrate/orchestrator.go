package migrate

import (
	"context"
	"fmt"
	"sync"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/progress"
	"github.com/poiesic/catalogsync/retry"
	"github.com/poiesic/catalogsync/storage"
	"github.com/poiesic/catalogsync/transform"
)

// Orchestrator runs the phased product migration.
type Orchestrator struct {
	source   storage.SourceRepository
	products storage.ProductRepository
	embedder ai.Embedder
	pool     *ants.Pool
	settings
}

// PhaseReport summarizes one phase.
type PhaseReport struct {
	Phase   Phase
	Records int // Records selected for migration after exclusions
	Stats   progress.Snapshot
}

// Report summarizes a run.
type Report struct {
	Phases   []PhaseReport
	Total    progress.Snapshot
	Canceled bool
}

// NewOrchestrator creates an orchestrator. embedder may be nil with WithoutEmbeddings.
func NewOrchestrator(source storage.SourceRepository, products storage.ProductRepository, embedder ai.Embedder, opts ...Option) (*Orchestrator, error) {
	if source == nil {
		return nil, ErrSourceRequired
	}
	if products == nil {
		return nil, ErrStoreRequired
	}

	o := &Orchestrator{source: source, products: products, embedder: embedder, settings: defaultSettings()}
	for _, opt := range opts {
		if err := opt(&o.settings); err != nil {
			return nil, err
		}
	}
	if embedder == nil && !o.withoutEmbeddings {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(o.workers)
	if err != nil {
		return nil, err
	}
	o.pool = pool
	return o, nil
}

// Release releases the worker pool.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}

// Run executes every phase in order. Cancellation stops after the current
// phase has flushed its computed chunks.
func (o *Orchestrator) Run(ctx context.Context) (Report, error) {
	var report Report
	seen := make(map[core.NaturalKey]struct{})
	for _, phase := range Phases {
		if ctx.Err() != nil {
			report.Canceled = true
			break
		}
		pr, err := o.RunPhase(ctx, phase, seen)
		report.Phases = append(report.Phases, pr)
		report.Total = report.Total.Add(pr.Stats)
		if err != nil {
			return report, fmt.Errorf("phase %s: %w", phase, err)
		}
	}
	if ctx.Err() != nil {
		report.Canceled = true
	}
	o.logger.Info("migration finished", "total", report.Total.String(), "canceled", report.Canceled)
	return report, nil
}

// RunPhase migrates one phase. seen accumulates the natural keys handled by
// earlier phases of the same run and is updated in place.
func (o *Orchestrator) RunPhase(ctx context.Context, phase Phase, seen map[core.NaturalKey]struct{}) (PhaseReport, error) {
	report := PhaseReport{Phase: phase}
	var stats progress.Stats

	records, err := o.collect(ctx, phase, seen, &stats)
	if err != nil {
		report.Stats = stats.Snapshot()
		return report, err
	}
	report.Records = len(records)
	o.logger.Info("phase starting", "phase", phase, "records", len(records))

	tracker := progress.NewTracker(o.progress, phase.String(), len(records), o.chunkSize)
	tracker.Start()
	o.process(ctx, chunk(records, o.chunkSize), &stats, tracker)
	tracker.Finish()

	report.Stats = stats.Snapshot()
	o.logger.Info("phase finished", "phase", phase, "stats", report.Stats.String())
	return report, nil
}

// collect reads and transforms every record of a phase, dropping natural keys
// already in the destination or in seen.
func (o *Orchestrator) collect(ctx context.Context, phase Phase, seen map[core.NaturalKey]struct{}, stats *progress.Stats) ([]*core.CanonicalProduct, error) {
	var out []*core.CanonicalProduct
	for _, platform := range core.Platforms {
		rows, err := o.source.Products(ctx, platform, phase.Scope())
		if err != nil {
			return nil, fmt.Errorf("read %s source: %w", platform, err)
		}
		existing, err := o.products.ExistingPlatformIDs(ctx, platform)
		if err != nil {
			return nil, fmt.Errorf("read migrated %s ids: %w", platform, err)
		}

		for _, row := range rows {
			p, err := transform.Transform(row)
			if err != nil {
				o.logger.Warn("skipping untransformable record", "platform", platform, "err", err)
				stats.AddFailed(1)
				continue
			}
			key := p.NaturalKey()
			if _, ok := seen[key]; ok {
				stats.AddSkipped(1)
				continue
			}
			seen[key] = struct{}{}
			if _, ok := existing[p.PlatformID]; ok {
				stats.AddSkipped(1)
				continue
			}
			out = append(out, p)
		}
	}
	return out, nil
}

type chunkResult struct {
	index    int
	products []*core.CanonicalProduct
}

// process runs the dispatcher, pool and writer for one phase's chunks and
// returns once every embedded chunk has been written or counted failed.
func (o *Orchestrator) process(ctx context.Context, chunks [][]*core.CanonicalProduct, stats *progress.Stats, tracker *progress.Tracker) {
	queue := make(chan chunkResult, o.queueSize)
	var g errgroup.Group

	g.Go(func() error {
		o.write(ctx, queue, stats, tracker)
		return nil
	})

	var wg sync.WaitGroup
	for i, c := range chunks {
		if ctx.Err() != nil {
			o.logger.Warn("canceled, not dispatching remaining chunks", "remaining", len(chunks)-i)
			break
		}
		wg.Add(1)
		err := o.pool.Submit(func() {
			defer wg.Done()
			if res, ok := o.embed(ctx, i, c, stats); ok {
				queue <- res
			}
		})
		if err != nil {
			wg.Done()
			o.logger.Error("failed to dispatch chunk", "chunk", i, "err", err)
			stats.AddFailed(len(c))
		}
	}
	wg.Wait()
	close(queue)
	_ = g.Wait()
}

// embed generates vectors for one chunk. The call runs detached from ctx so
// that a cancellation arriving mid-call does not discard the result.
func (o *Orchestrator) embed(ctx context.Context, index int, products []*core.CanonicalProduct, stats *progress.Stats) (chunkResult, bool) {
	res := chunkResult{index: index, products: products}
	if o.withoutEmbeddings {
		return res, true
	}

	texts := make([]string, len(products))
	for i, p := range products {
		texts[i] = p.EmbeddingText
	}

	vectors, err := retry.DoWithResult(ctx, o.policy, func() ([][]float32, error) {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.embedTimeout)
		defer cancel()
		return o.embedder.EmbedTexts(callCtx, texts)
	})
	if err != nil {
		o.logger.Error("chunk embedding failed", "chunk", index, "records", len(products), "err", err)
		stats.AddFailed(len(products))
		return res, false
	}

	for i, p := range products {
		p.Embedding = vectors[i]
	}
	stats.AddGenerated(len(products))
	return res, true
}

// write is the single writer. It drains the queue even after cancellation.
func (o *Orchestrator) write(ctx context.Context, queue <-chan chunkResult, stats *progress.Stats, tracker *progress.Tracker) {
	writeCtx := context.WithoutCancel(ctx)
	for res := range queue {
		err := retry.Do(writeCtx, o.policy, func() error {
			return o.products.UpsertProducts(writeCtx, res.products)
		})
		if err != nil {
			o.logger.Error("chunk write failed", "chunk", res.index, "records", len(res.products), "err", err)
			stats.AddFailed(len(res.products))
			continue
		}
		stats.AddInserted(len(res.products))
		tracker.Increment(len(res.products))
	}
}

func chunk[T any](items []T, size int) [][]T {
	var out [][]T
	for size < len(items) {
		items, out = items[size:], append(out, items[0:size:size])
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
