package search

import (
	"context"
	"log/slog"
	"sort"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/storage"
)

// Search defaults.
const (
	DefaultLimit         = 10
	DefaultMinSimilarity = 0.7
	verbatimBoost        = 0.3
)

// Query parameterizes a search.
type Query struct {
	Text          string
	Platform      core.Platform // Empty searches both platforms
	Limit         int
	MinSimilarity float64
}

// Result is one ranked product.
type Result struct {
	Product    core.ProductRef
	Similarity float64
	Score      float64
	Verbatim   bool
}

// Searcher provides semantic search over canonical products.
type Searcher struct {
	products storage.ProductRepository
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "search")
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(products storage.ProductRepository, embedder ai.Embedder, opts ...Option) (*Searcher, error) {
	if products == nil {
		return nil, ErrProductRepositoryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		products: products,
		embedder: embedder,
		logger:   slog.Default().With("component", "search"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// FindSimilar searches for products similar to the query.
func (s *Searcher) FindSimilar(ctx context.Context, q Query) ([]*Result, error) {
	return s.FindSimilarWithMonitor(ctx, q, nil)
}

// FindSimilarWithMonitor searches for products similar to the query with monitoring.
// Returns up to q.Limit results ranked by score.
func (s *Searcher) FindSimilarWithMonitor(ctx context.Context, q Query, monitor SearchMonitor) ([]*Result, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}

	text := normalize.QueryText(q.Text)
	if text == "" {
		return nil, ErrEmptyQuery
	}
	monitor.Start(text)

	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", text, "err", err)
		return nil, err
	}

	hits, err := s.products.NearestProducts(ctx, embedding, storage.NearestQuery{
		Platform:      q.Platform,
		Limit:         q.Limit,
		MinSimilarity: q.MinSimilarity,
	})
	if err != nil {
		s.logger.Error("error querying for similar products", "err", err)
		return nil, err
	}
	monitor.AfterNearestProducts(hits)

	results := make([]*Result, 0, len(hits))
	for _, hit := range hits {
		r := &Result{Product: hit.Product, Similarity: hit.Similarity, Score: hit.Similarity}
		if matchesVerbatim(hit.Product, q.Text) {
			r.Verbatim = true
			r.Score += verbatimBoost
			monitor.VerbatimHit(hit.Product)
		}
		results = append(results, r)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	monitor.Finish(results)
	return results, nil
}
