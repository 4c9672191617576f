package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 3306, cfg.Source.Port)
	assert.Equal(t, 10*time.Second, cfg.Source.Timeout)
	assert.Equal(t, 1536, cfg.AI.Dimensions)
	assert.Equal(t, "sk-test", cfg.AI.APIKey)
	assert.Equal(t, 0.85, cfg.Matching.Threshold)
	assert.Equal(t, 50000, cfg.Batch.ShardSize)
	assert.Equal(t, 60*time.Second, cfg.Batch.Cooldown)
	assert.Equal(t, "catalogsync-state", cfg.StatePath)
}

func TestLoad_YAMLWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
source:
  host: mysql.internal
  database: catalog
destination:
  host: pg.internal
  ssl_mode: disable
matching:
  threshold: 0.9
migrate:
  workers: 8
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("MATCH_THRESHOLD", "0.88")
	t.Setenv("MYSQL_PASSWORD", "secret")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "mysql.internal", cfg.Source.Host)
	assert.Equal(t, "secret", cfg.Source.Password)
	assert.Equal(t, 0.88, cfg.Matching.Threshold)
	assert.Equal(t, 8, cfg.Migrate.Workers)
	assert.Equal(t, "postgres://postgres@pg.internal:5432/postgres?sslmode=disable", cfg.Destination.ConnString())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			AI:        AIConfig{Dimensions: 1536},
			Matching:  MatchingConfig{Threshold: 0.85},
			Batch:     BatchConfig{ShardSize: 100},
			StatePath: "state",
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"zero dimensions", func(c *Config) { c.AI.Dimensions = 0 }, "dimensions"},
		{"threshold too high", func(c *Config) { c.Matching.Threshold = 1.2 }, "threshold"},
		{"shard too large", func(c *Config) { c.Batch.ShardSize = 60000 }, "shard_size"},
		{"no state path", func(c *Config) { c.StatePath = "" }, "state_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := valid()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestConversions(t *testing.T) {
	cfg := &Config{
		Source: SourceConfig{Host: "h", Port: 3307, User: "u", Password: "p", Database: "d"},
		Destination: DestinationConfig{
			Host: "pg", Port: 5432, User: "app", Password: "p@ss", Database: "cat", SSLMode: "require", MaxConnections: 4,
		},
		AI: AIConfig{Host: "http://localhost:11434", Model: "m", APIKey: "k", Dimensions: 768, CompletionWindow: "24h"},
	}

	my := cfg.Source.MySQL()
	assert.Equal(t, 3307, my.Port)
	assert.Equal(t, "p", my.Password)

	pg := cfg.Postgres()
	assert.Equal(t, "postgres://app:p%40ss@pg:5432/cat?sslmode=require", pg.URL)
	assert.Equal(t, 768, pg.Dimensions)
	assert.Equal(t, int32(4), pg.MaxConnections)

	cfg.Destination.URL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.Postgres().URL)

	p := cfg.AI.Provider()
	assert.Equal(t, "m", p.EmbeddingModel)
	assert.Equal(t, 768, p.Dimensions)
	require.NoError(t, p.Validate())
	assert.Equal(t, "http://localhost:11434/v1", p.EmbeddingHost)

	cfg.AI.APIKey = ""
	require.NoError(t, cfg.AI.Provider().Validate(), "missing key falls back to the provider default")
}
