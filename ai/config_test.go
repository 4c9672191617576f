package ai

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
	assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
	assert.Equal(t, 1536, cfg.Dimensions)
	assert.Equal(t, DefaultMaxBatchInputs, cfg.MaxBatchInputs)
	assert.Equal(t, DefaultMaxBatchRequests, cfg.MaxBatchRequests)
	assert.Equal(t, "24h", cfg.CompletionWindow)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, "https://api.openai.com/v1", cfg.EmbeddingHost)
		assert.Equal(t, 1536, cfg.Dimensions)
	})

	t.Run("with multiple options", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://localhost:11434/v1"),
			WithEmbeddingModel("nomic-embed-text"),
			WithAPIKey("sk-test"),
			WithDimensions(768),
			WithMaxBatchInputs(64),
			WithMaxBatchRequests(1000),
			WithRequestsPerMinute(60),
			WithCompletionWindow("24h"),
			WithRequestTimeout(5*time.Second),
		)

		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "nomic-embed-text", cfg.EmbeddingModel)
		assert.Equal(t, "sk-test", cfg.APIKey)
		assert.Equal(t, 768, cfg.Dimensions)
		assert.Equal(t, 64, cfg.MaxBatchInputs)
		assert.Equal(t, 1000, cfg.MaxBatchRequests)
		assert.Equal(t, 60, cfg.RequestsPerMinute)
		assert.Equal(t, 5*time.Second, cfg.RequestTimeout)
	})
}

func TestConfig_Normalize(t *testing.T) {
	tests := []struct {
		name string
		host string
		want string
	}{
		{name: "adds suffix", host: "http://localhost:11434", want: "http://localhost:11434/v1"},
		{name: "trailing slash", host: "http://localhost:11434/", want: "http://localhost:11434/v1"},
		{name: "already normalized", host: "https://api.openai.com/v1", want: "https://api.openai.com/v1"},
		{name: "empty stays empty", host: "", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewConfig(WithEmbeddingHost(tt.host))
			cfg.Normalize()
			assert.Equal(t, tt.want, cfg.EmbeddingHost)
		})
	}

	t.Run("caps provider limits", func(t *testing.T) {
		cfg := NewConfig(WithMaxBatchInputs(10000), WithMaxBatchRequests(100000))
		cfg.Normalize()
		assert.Equal(t, DefaultMaxBatchInputs, cfg.MaxBatchInputs)
		assert.Equal(t, DefaultMaxBatchRequests, cfg.MaxBatchRequests)
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Run("valid default config", func(t *testing.T) {
		require.NoError(t, DefaultConfig().Validate())
	})

	tests := []struct {
		name    string
		opt     ConfigOption
		wantMsg string
	}{
		{name: "missing host", opt: WithEmbeddingHost(""), wantMsg: "EmbeddingHost"},
		{name: "missing model", opt: WithEmbeddingModel(""), wantMsg: "EmbeddingModel"},
		{name: "missing key", opt: WithAPIKey(""), wantMsg: "APIKey"},
		{name: "zero dimensions", opt: WithDimensions(0), wantMsg: "Dimensions"},
		{name: "zero inputs", opt: WithMaxBatchInputs(0), wantMsg: "MaxBatchInputs"},
		{name: "zero requests", opt: WithMaxBatchRequests(0), wantMsg: "MaxBatchRequests"},
		{name: "negative rpm", opt: WithRequestsPerMinute(-1), wantMsg: "RequestsPerMinute"},
		{name: "missing window", opt: WithCompletionWindow(""), wantMsg: "CompletionWindow"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewConfig(tt.opt).Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}

	t.Run("validate normalizes host", func(t *testing.T) {
		cfg := NewConfig(WithEmbeddingHost("http://localhost:8080"))
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:8080/v1", cfg.EmbeddingHost)
	})
}
