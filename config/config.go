// Package config loads catalogsync configuration from an optional YAML file
// with environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/storage/mysql"
	"github.com/poiesic/catalogsync/storage/postgres"
)

// Config holds all configuration for catalogsync.
// Environment variables always override YAML values. Secrets (passwords,
// keys) only come from environment variables.
type Config struct {
	Source      SourceConfig      `yaml:"source"`
	Destination DestinationConfig `yaml:"destination"`
	AI          AIConfig          `yaml:"ai"`
	Migrate     MigrateConfig     `yaml:"migrate"`
	Batch       BatchConfig       `yaml:"batch"`
	Matching    MatchingConfig    `yaml:"matching"`

	// StatePath is the directory holding batch job state and result artifacts.
	StatePath string `yaml:"state_path" env:"CATALOGSYNC_STATE_PATH" env-default:"catalogsync-state"`
}

// SourceConfig holds the MySQL source connection.
type SourceConfig struct {
	Host     string        `yaml:"host" env:"MYSQL_HOST" env-default:"localhost"`
	Port     int           `yaml:"port" env:"MYSQL_PORT" env-default:"3306"`
	User     string        `yaml:"user" env:"MYSQL_USER" env-default:"root"`
	Password string        `yaml:"-" env:"MYSQL_PASSWORD"` // Secret - not in YAML
	Database string        `yaml:"database" env:"MYSQL_DATABASE" env-default:"sneakers"`
	Timeout  time.Duration `yaml:"timeout" env:"MYSQL_TIMEOUT" env-default:"10s"`
}

// DestinationConfig holds the PostgreSQL destination connection.
// URL, when set, takes precedence over the individual fields.
type DestinationConfig struct {
	URL            string `yaml:"-" env:"DATABASE_URL"` // May embed a password
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"postgres"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"postgres"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"require"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"8"`
}

// AIConfig holds the embedding provider settings.
type AIConfig struct {
	Host              string        `yaml:"host" env:"EMBEDDING_HOST" env-default:"https://api.openai.com/v1"`
	Model             string        `yaml:"model" env:"EMBEDDING_MODEL" env-default:"text-embedding-3-small"`
	APIKey            string        `yaml:"-" env:"OPENAI_API_KEY"` // Secret - not in YAML
	Dimensions        int           `yaml:"dimensions" env:"EMBEDDING_DIMENSIONS" env-default:"1536"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"EMBEDDING_RPM" env-default:"0"`
	RequestTimeout    time.Duration `yaml:"request_timeout" env:"EMBEDDING_TIMEOUT" env-default:"60s"`
	CompletionWindow  string        `yaml:"completion_window" env:"BATCH_COMPLETION_WINDOW" env-default:"24h"`
}

// MigrateConfig tunes product migration.
type MigrateConfig struct {
	ChunkSize int `yaml:"chunk_size" env:"MIGRATE_CHUNK_SIZE" env-default:"500"`
	Workers   int `yaml:"workers" env:"MIGRATE_WORKERS" env-default:"4"`
}

// BatchConfig tunes the asynchronous batch coordinator.
type BatchConfig struct {
	ShardSize   int           `yaml:"shard_size" env:"BATCH_SHARD_SIZE" env-default:"50000"`
	Cooldown    time.Duration `yaml:"cooldown" env:"BATCH_COOLDOWN" env-default:"60s"`
	SubmitLimit int           `yaml:"submit_limit" env:"BATCH_SUBMIT_LIMIT" env-default:"0"`
}

// MatchingConfig tunes reconciliation.
type MatchingConfig struct {
	Threshold   float64 `yaml:"threshold" env:"MATCH_THRESHOLD" env-default:"0.85"`
	CommitEvery int     `yaml:"commit_every" env:"MATCH_COMMIT_EVERY" env-default:"100"`
}

// Load reads configuration from path, if given, with environment variable
// overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings every command relies on. Connection settings are
// validated by the stores when opened.
func (c *Config) Validate() error {
	if c.AI.Dimensions <= 0 {
		return errors.New("ai.dimensions must be positive")
	}
	if c.Matching.Threshold <= 0 || c.Matching.Threshold > 1 {
		return fmt.Errorf("matching.threshold %v must be in (0, 1]", c.Matching.Threshold)
	}
	if c.Batch.ShardSize <= 0 || c.Batch.ShardSize > ai.DefaultMaxBatchRequests {
		return fmt.Errorf("batch.shard_size must be in [1, %d]", ai.DefaultMaxBatchRequests)
	}
	if c.StatePath == "" {
		return errors.New("state_path is required")
	}
	return nil
}

// MySQL returns the source store configuration.
func (s SourceConfig) MySQL() *mysql.Config {
	return &mysql.Config{
		Host:     s.Host,
		Port:     s.Port,
		User:     s.User,
		Password: s.Password,
		Database: s.Database,
		Timeout:  s.Timeout,
	}
}

// ConnString returns URL or builds one from the individual fields.
func (d DestinationConfig) ConnString() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(d.Host, strconv.Itoa(d.Port)),
		Path:   "/" + d.Database,
	}
	if d.Password != "" {
		u.User = url.UserPassword(d.User, d.Password)
	} else {
		u.User = url.User(d.User)
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// Postgres returns the destination store configuration.
func (c *Config) Postgres() *postgres.Config {
	return &postgres.Config{
		URL:            c.Destination.ConnString(),
		MaxConnections: c.Destination.MaxConnections,
		Dimensions:     c.AI.Dimensions,
	}
}

// Provider returns the embedding provider configuration. Without an API key
// the provider default applies, which local OpenAI-compatible servers accept.
func (a AIConfig) Provider() *ai.Config {
	opts := []ai.ConfigOption{
		ai.WithEmbeddingHost(a.Host),
		ai.WithEmbeddingModel(a.Model),
		ai.WithDimensions(a.Dimensions),
		ai.WithRequestsPerMinute(a.RequestsPerMinute),
		ai.WithRequestTimeout(a.RequestTimeout),
		ai.WithCompletionWindow(a.CompletionWindow),
	}
	if a.APIKey != "" {
		opts = append(opts, ai.WithAPIKey(a.APIKey))
	}
	return ai.NewConfig(opts...)
}
