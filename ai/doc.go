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


// Package ai provides abstractions for the embedding provider used by catalogsync.
//
// The provider is consumed through two calling conventions:
//
//   - Embedder: synchronous calls mapping up to MaxBatchInputs strings to vectors
//     in input order, or failing as a whole
//   - BatchEmbedder: asynchronous jobs built from a JSONL manifest of
//     correlation-id/text pairs, polled by handle and read back as a result stream
//
// AIProvider aggregates both for convenient initialization.
//
// # Implementation Packages
//
//   - ai/openai: production implementation (langchaingo for synchronous calls,
//     go-openai for the batch API)
//   - ai/mock: test doubles with deterministic vectors and an in-memory batch queue
//
// # Constructor Return Type Pattern
//
// Public constructors (openai.NewProvider, openai.NewEmbedder, ...) return
// INTERFACE types. Test utility constructors (mock.NewMockEmbedder,
// mock.NewMockBatchEmbedder) return CONCRETE types so tests can inject behavior
// and assert on call counts.
//
// # Errors
//
// Provider failures are returned as *Error carrying the HTTP status and a
// Retryable flag; the retry package honours that flag. A batch handle the
// provider no longer recognizes yields ErrJobNotFound.
//
// # Usage Example
//
//	config := ai.NewConfig(ai.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	provider, err := openai.NewProvider(config)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"dd0385100 | air max 90"})
//	job, err := provider.BatchEmbedder().SubmitBatch(ctx, ai.BatchRequest{Entries: entries})
package ai
