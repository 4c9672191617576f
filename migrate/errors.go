package migrate

import "errors"

var (
	// ErrSourceRequired is returned when no source repository is provided.
	ErrSourceRequired = errors.New("source repository required")

	// ErrStoreRequired is returned when no destination repository is provided.
	ErrStoreRequired = errors.New("destination repository required")

	// ErrEmbedderRequired is returned when embeddings are enabled without an embedder.
	ErrEmbedderRequired = errors.New("embedder required unless running without embeddings")
)
