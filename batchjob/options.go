package batchjob

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/catalogsync/ai"
	"github.com/poiesic/catalogsync/normalize"
	"github.com/poiesic/catalogsync/retry"
)

// Defaults for Coordinator.
const (
	DefaultShardSize  = ai.DefaultMaxBatchRequests
	DefaultCooldown   = 60 * time.Second
	DefaultApplyChunk = 500
)

// Option configures a Coordinator.
type Option func(*Coordinator) error

// WithShardSize sets the number of requests per job, capped at the provider limit.
func WithShardSize(n int) Option {
	return func(c *Coordinator) error {
		if n < 1 {
			n = 1
		}
		if n > ai.DefaultMaxBatchRequests {
			n = ai.DefaultMaxBatchRequests
		}
		c.shardSize = n
		return nil
	}
}

// WithCooldown sets the pause before the final submission of a burst.
func WithCooldown(d time.Duration) Option {
	return func(c *Coordinator) error {
		c.cooldown = d
		return nil
	}
}

// WithSubmitLimit caps submissions per run; 0 submits every pending shard.
func WithSubmitLimit(n int) Option {
	return func(c *Coordinator) error {
		c.submitLimit = n
		return nil
	}
}

// WithRegenerate plans shards over every product with text, not only those
// without a vector.
func WithRegenerate() Option {
	return func(c *Coordinator) error {
		c.regenerate = true
		return nil
	}
}

// WithEmbeddingVersion sets the version tag written with applied vectors.
func WithEmbeddingVersion(v string) Option {
	return func(c *Coordinator) error {
		c.version = v
		return nil
	}
}

// WithDimensions rejects result vectors of any other length. 0 accepts all.
func WithDimensions(dim int) Option {
	return func(c *Coordinator) error {
		c.dimensions = dim
		return nil
	}
}

// WithRetryPolicy sets the policy for provider calls.
func WithRetryPolicy(p retry.Policy) Option {
	return func(c *Coordinator) error {
		c.policy = p
		return nil
	}
}

// WithProgress reports apply progress to w.
func WithProgress(w io.Writer) Option {
	return func(c *Coordinator) error {
		c.progress = w
		return nil
	}
}

// WithSleep replaces the cooldown wait. Intended for tests.
func WithSleep(fn func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Coordinator) error {
		c.sleep = fn
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger.With("component", "batchjob")
		return nil
	}
}

func defaultCoordinator() *Coordinator {
	return &Coordinator{
		shardSize:  DefaultShardSize,
		cooldown:   DefaultCooldown,
		applyChunk: DefaultApplyChunk,
		version:    normalize.EmbeddingFormatVersion,
		policy:     retry.DefaultPolicy(),
		sleep:      retry.Sleep,
		logger:     slog.Default().With("component", "batchjob"),
	}
}
