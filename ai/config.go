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


package ai

import (
	"errors"
	"strings"
	"time"
)

const (
	// DefaultMaxBatchInputs is the provider cap on inputs per synchronous call.
	DefaultMaxBatchInputs = 2048

	// DefaultMaxBatchRequests is the provider cap on requests per batch job.
	DefaultMaxBatchRequests = 50000
)

// Config holds configuration for the embedding provider.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "https://api.openai.com/v1" or "http://localhost:11434/v1"
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "text-embedding-3-small"
	EmbeddingModel string

	// APIKey authenticates against the provider. Local OpenAI-compatible
	// servers accept any value.
	APIKey string

	// Dimensions is the expected vector length. Every stored vector has it.
	Dimensions int

	// MaxBatchInputs caps the inputs sent in one synchronous call.
	MaxBatchInputs int

	// MaxBatchRequests caps the requests in one asynchronous batch job.
	MaxBatchRequests int

	// RequestsPerMinute throttles synchronous calls. 0 disables throttling.
	RequestsPerMinute int

	// CompletionWindow is the batch job completion window, e.g. "24h".
	CompletionWindow string

	// RequestTimeout bounds a single synchronous embedding call.
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithEmbeddingHost sets the embedding service host URL.
func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

// WithEmbeddingModel sets the embedding model identifier.
func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

// WithAPIKey sets the provider API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithDimensions sets the expected embedding dimensionality.
func WithDimensions(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimensions = dim
	}
}

// WithMaxBatchInputs sets the synchronous call input cap.
func WithMaxBatchInputs(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchInputs = n
	}
}

// WithMaxBatchRequests sets the per-job request cap for batch jobs.
func WithMaxBatchRequests(n int) ConfigOption {
	return func(c *Config) {
		c.MaxBatchRequests = n
	}
}

// WithRequestsPerMinute sets the synchronous call throttle.
func WithRequestsPerMinute(rpm int) ConfigOption {
	return func(c *Config) {
		c.RequestsPerMinute = rpm
	}
}

// WithCompletionWindow sets the batch job completion window.
func WithCompletionWindow(window string) ConfigOption {
	return func(c *Config) {
		c.CompletionWindow = window
	}
}

// WithRequestTimeout bounds each synchronous call.
func WithRequestTimeout(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = d
	}
}

// DefaultConfig returns a Config with defaults for the OpenAI embeddings API.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:     "https://api.openai.com/v1",
		EmbeddingModel:    "text-embedding-3-small",
		APIKey:            "none",
		Dimensions:        1536,
		MaxBatchInputs:    DefaultMaxBatchInputs,
		MaxBatchRequests:  DefaultMaxBatchRequests,
		RequestsPerMinute: 3000,
		CompletionWindow:  "24h",
		RequestTimeout:    60 * time.Second,
	}
}

// NewConfig creates a Config with the default values and applies the provided options.
//
// Example:
//
//	cfg := NewConfig(
//	    WithEmbeddingModel("text-embedding-3-small"),
//	    WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	)
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the configuration is in a canonical form.
// It adds the /v1 suffix to the host if missing, which is required
// by most OpenAI-compatible APIs (Ollama, LocalAI, vLLM, etc).
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.MaxBatchInputs > DefaultMaxBatchInputs {
		c.MaxBatchInputs = DefaultMaxBatchInputs
	}
	if c.MaxBatchRequests > DefaultMaxBatchRequests {
		c.MaxBatchRequests = DefaultMaxBatchRequests
	}
}

// Validate checks that the configuration is valid and complete.
// It normalizes the configuration before validation.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.APIKey == "" {
		return errors.New("ai config: APIKey is required")
	}
	if c.Dimensions <= 0 {
		return errors.New("ai config: Dimensions must be greater than 0")
	}
	if c.MaxBatchInputs <= 0 {
		return errors.New("ai config: MaxBatchInputs must be greater than 0")
	}
	if c.MaxBatchRequests <= 0 {
		return errors.New("ai config: MaxBatchRequests must be greater than 0")
	}
	if c.RequestsPerMinute < 0 {
		return errors.New("ai config: RequestsPerMinute cannot be negative")
	}
	if c.CompletionWindow == "" {
		return errors.New("ai config: CompletionWindow is required")
	}
	return nil
}
