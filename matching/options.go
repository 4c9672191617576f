package matching

import (
	"io"
	"log/slog"
	"runtime"

	"github.com/poiesic/catalogsync/retry"
)

// Defaults for Engine.
const (
	DefaultThreshold   = 0.85
	DefaultCommitEvery = 100
)

// Option configures an Engine.
type Option func(*Engine) error

// WithThreshold sets the minimum cosine similarity for a similarity mapping.
func WithThreshold(t float64) Option {
	return func(e *Engine) error {
		if t <= 0 || t > 1 {
			return ErrInvalidThreshold
		}
		e.threshold = t
		return nil
	}
}

// WithCommitEvery sets how many mappings are written per transaction.
func WithCommitEvery(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.commitEvery = n
		return nil
	}
}

// WithCandidateIndex replaces the in-memory brute-force index, e.g. with a
// StoreIndex that queries the destination's vector index.
func WithCandidateIndex(idx CandidateIndex) Option {
	return func(e *Engine) error {
		e.index = idx
		return nil
	}
}

// WithWorkers sets the scan parallelism of the in-memory index.
func WithWorkers(n int) Option {
	return func(e *Engine) error {
		if n < 1 {
			n = 1
		}
		e.workers = n
		return nil
	}
}

// WithRematch discards existing mappings before matching.
func WithRematch() Option {
	return func(e *Engine) error {
		e.rematch = true
		return nil
	}
}

// WithRetryPolicy sets the policy for mapping writes.
func WithRetryPolicy(p retry.Policy) Option {
	return func(e *Engine) error {
		e.policy = p
		return nil
	}
}

// WithProgress reports pass progress to w.
func WithProgress(w io.Writer) Option {
	return func(e *Engine) error {
		e.progress = w
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) error {
		if logger == nil {
			logger = slog.Default()
		}
		e.logger = logger.With("component", "matching")
		return nil
	}
}

func defaultEngine() *Engine {
	return &Engine{
		threshold:   DefaultThreshold,
		commitEvery: DefaultCommitEvery,
		workers:     runtime.GOMAXPROCS(0),
		policy:      retry.DefaultPolicy(),
		logger:      slog.Default().With("component", "matching"),
	}
}
