// Package normalize converts raw product names and style identifiers into
// canonical matching keys and the canonical embedding-input text.
//
// Every function here is pure and deterministic. The embedding text format is
// tagged with EmbeddingFormatVersion; vectors produced from a different version
// are stale and must be regenerated as a whole.
package normalize
