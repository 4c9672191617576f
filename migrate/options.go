package migrate

import (
	"io"
	"log/slog"
	"time"

	"github.com/poiesic/catalogsync/retry"
)

// Defaults for Orchestrator.
const (
	DefaultChunkSize    = 500
	DefaultWorkers      = 4
	MaxWorkers          = 10
	DefaultQueueSize    = 8
	DefaultEmbedTimeout = 2 * time.Minute
)

// Option configures an Orchestrator or InventoryMigrator.
type Option func(*settings) error

type settings struct {
	chunkSize         int
	workers           int
	queueSize         int
	embedTimeout      time.Duration
	policy            retry.Policy
	withoutEmbeddings bool
	progress          io.Writer
	logger            *slog.Logger
}

func defaultSettings() settings {
	return settings{
		chunkSize:    DefaultChunkSize,
		workers:      DefaultWorkers,
		queueSize:    DefaultQueueSize,
		embedTimeout: DefaultEmbedTimeout,
		policy:       retry.DefaultPolicy(),
		logger:       slog.Default().With("component", "migrate"),
	}
}

// WithChunkSize sets the number of records per embedding call and transaction.
func WithChunkSize(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			n = 1
		}
		s.chunkSize = n
		return nil
	}
}

// WithWorkers sets the embedding pool size, capped at MaxWorkers.
func WithWorkers(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			n = 1
		}
		if n > MaxWorkers {
			n = MaxWorkers
		}
		s.workers = n
		return nil
	}
}

// WithQueueSize sets the number of embedded chunks that may wait for the writer.
func WithQueueSize(n int) Option {
	return func(s *settings) error {
		if n < 1 {
			n = 1
		}
		s.queueSize = n
		return nil
	}
}

// WithEmbedTimeout bounds each embedding call, including calls finishing after cancellation.
func WithEmbedTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d > 0 {
			s.embedTimeout = d
		}
		return nil
	}
}

// WithRetryPolicy sets the policy for embedding calls and writes.
func WithRetryPolicy(p retry.Policy) Option {
	return func(s *settings) error {
		s.policy = p
		return nil
	}
}

// WithoutEmbeddings writes products without vectors for the batch coordinator to fill.
func WithoutEmbeddings() Option {
	return func(s *settings) error {
		s.withoutEmbeddings = true
		return nil
	}
}

// WithProgress reports progress lines to w.
func WithProgress(w io.Writer) Option {
	return func(s *settings) error {
		s.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "migrate")
		return nil
	}
}
