package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/retry"
	"github.com/poiesic/catalogsync/storage"
)

// BatchResult counts the outcome of one batch.
type BatchResult struct {
	Updated int
	Empty   int // Products with no text to embed
}

// BatchProcessor regenerates text and vectors for batches of products.
type BatchProcessor struct {
	products       storage.ProductRepository
	embedder       ai.Embedder
	version        string
	maxRetries     int
	retryBaseDelay time.Duration
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding and write calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(products storage.ProductRepository, embedder ai.Embedder, version string, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		products:       products,
		embedder:       embedder,
		version:        version,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process rebuilds each product's embedding text in the current format,
// embeds the texts in one call and writes text, vector and version together.
func (bp *BatchProcessor) Process(ctx context.Context, products []*core.CanonicalProduct) (BatchResult, error) {
	var result BatchResult
	if bp.maxRetries <= 0 {
		return result, ErrInvalidMaxAttempts
	}

	texts := make([]string, 0, len(products))
	ids := make([]int64, 0, len(products))
	for _, p := range products {
		text := normalize.BuildEmbeddingText(p.DisplayName, p.StyleKeyRaw)
		if text == "" {
			result.Empty++
			continue
		}
		texts = append(texts, text)
		ids = append(ids, p.InternalID)
	}
	if len(texts) == 0 {
		return result, nil
	}

	var embeddings [][]float32
	err := retry.WithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to generate embeddings after %d attempts: %w", bp.maxRetries, err)
	}
	if len(embeddings) != len(texts) {
		return result, fmt.Errorf("%w: expected %d, got %d", ErrCountMismatch, len(texts), len(embeddings))
	}

	updates := make([]core.EmbeddingUpdate, len(texts))
	for i := range texts {
		updates[i] = core.EmbeddingUpdate{
			InternalID: ids[i],
			Text:       texts[i],
			Version:    bp.version,
			Vector:     embeddings[i],
		}
	}

	err = retry.WithBackoff(context.WithoutCancel(ctx), func() error {
		n, err := bp.products.UpdateEmbeddings(context.WithoutCancel(ctx), updates)
		result.Updated = n
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		return result, fmt.Errorf("failed to update products: %w", err)
	}
	return result, nil
}
