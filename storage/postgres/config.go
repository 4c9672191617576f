package postgres

import (
	"errors"
	"time"
)

// Config holds destination connection configuration.
type Config struct {
	URL             string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration

	// Dimensions is the expected embedding length; 0 skips the schema check.
	Dimensions int

	// SkipMigrations opens the store without applying migrations.
	SkipMigrations bool
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("postgres config: URL is required")
	}
	if c.MaxConnections < 0 {
		return errors.New("postgres config: MaxConnections cannot be negative")
	}
	if c.Dimensions < 0 {
		return errors.New("postgres config: Dimensions cannot be negative")
	}
	return nil
}
