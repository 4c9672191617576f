// Package reembed regenerates embeddings whose text format is out of date.
//
// Every product whose stored embedding version differs from the current
// normalize.EmbeddingFormatVersion has its embedding text rebuilt from its
// display name and style key, and a new vector generated from that text.
// Vectors from different formats are never mixed, so a format change is
// always followed by a full pass over the catalog.
package reembed
