// Package memory provides in-memory implementations of the storage contracts.
//
// They back unit tests of the pipeline packages and dry runs. Semantics follow
// the Postgres store: natural-key upserts, stable internal ids, one mapping per
// source and at most one default per target.
package memory
