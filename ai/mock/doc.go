// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder, ai.BatchEmbedder,
// and ai.AIProvider for use in unit tests. The mocks allow tests to run without
// external AI service dependencies and enable controlled, deterministic behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider(8)
//	vector, err := mockProvider.Embedder().EmbedText(ctx, "test")
//
//	// Custom behavior injection
//	mockEmbedder := mock.NewMockEmbedder(3)
//	mockEmbedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("provider down")
//	}
//
//	// Drive a batch job to completion
//	batch := mock.NewMockBatchEmbedder(3)
//	job, _ := batch.SubmitBatch(ctx, req)
//	batch.Complete(job.Handle)
//
// # Default Behavior
//
//   - MockEmbedder: returns deterministic unit vectors based on text hash
//   - MockBatchEmbedder: keeps jobs in memory; they stay running until
//     Complete, Fail or Forget is called
//   - MockProvider: aggregates the two
package mock
