package ai

import (
	"context"
	"io"
)

// Embedder generates vector embeddings from text synchronously.
// Implementations must be thread-safe for concurrent use.
type Embedder interface {
	// EmbedText generates a vector embedding for a single text string.
	EmbedText(ctx context.Context, text string) ([]float32, error)

	// EmbedTexts generates vector embeddings for multiple text strings in one call.
	// The returned slice contains embeddings in the same order as the input texts.
	// Returns an error for the whole call if any embedding fails.
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// BatchEmbedder drives the provider's asynchronous batch API.
// A job is submitted once, then polled across process restarts until it
// reaches a terminal state; results are fetched as a line-oriented stream.
type BatchEmbedder interface {
	// SubmitBatch uploads the request manifest and creates a job.
	SubmitBatch(ctx context.Context, req BatchRequest) (BatchJob, error)

	// BatchStatus polls a job by its handle.
	// Returns ErrJobNotFound when the provider no longer knows the handle.
	BatchStatus(ctx context.Context, handle string) (BatchJob, error)

	// FetchResults opens the result stream of a completed job.
	// The caller must close it.
	FetchResults(ctx context.Context, location string) (io.ReadCloser, error)
}

// AIProvider aggregates the embedding services for convenient initialization
// and lifecycle management.
type AIProvider interface {
	// Embedder returns the synchronous embedding service.
	Embedder() Embedder

	// BatchEmbedder returns the asynchronous batch embedding service.
	BatchEmbedder() BatchEmbedder

	// Close releases resources held by the provider and its services.
	Close() error
}
