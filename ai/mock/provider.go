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


package mock

import "github.com/poiesic/catalogsync/ai"

// MockProvider is a test double for ai.AIProvider.
// It aggregates mock embedder and batch embedder instances.
type MockProvider struct {
	embedder *MockEmbedder
	batch    *MockBatchEmbedder
}

// NewMockProvider creates a new mock provider with default mock services
// producing vectors of length dim.
//
// Returns ai.AIProvider interface for consistency with production constructors.
// Use GetMockEmbedder()/GetMockBatchEmbedder() to access concrete types for test assertions.
func NewMockProvider(dim int) ai.AIProvider {
	return &MockProvider{
		embedder: NewMockEmbedder(dim),
		batch:    NewMockBatchEmbedder(dim),
	}
}

// NewMockProviderWithServices creates a mock provider with custom mock services.
func NewMockProviderWithServices(embedder *MockEmbedder, batch *MockBatchEmbedder) ai.AIProvider {
	return &MockProvider{
		embedder: embedder,
		batch:    batch,
	}
}

// Embedder returns the mock embedder.
func (p *MockProvider) Embedder() ai.Embedder {
	return p.embedder
}

// BatchEmbedder returns the mock batch embedder.
func (p *MockProvider) BatchEmbedder() ai.BatchEmbedder {
	return p.batch
}

// Close is a no-op for mock provider.
func (p *MockProvider) Close() error {
	return nil
}

// GetMockEmbedder returns the underlying mock embedder for test assertions.
func (p *MockProvider) GetMockEmbedder() *MockEmbedder {
	return p.embedder
}

// GetMockBatchEmbedder returns the underlying mock batch embedder for test assertions.
func (p *MockProvider) GetMockBatchEmbedder() *MockBatchEmbedder {
	return p.batch
}
