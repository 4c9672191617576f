// Package postgres implements the destination store on PostgreSQL with the
// pgvector extension.
//
// The schema is created by embedded golang-migrate migrations on Open.
// Products carry a vector(1536) column; Open verifies the configured
// dimensionality against the column so vectors of another size are rejected
// before any write. Bulk writes are sent as pgx batches inside one
// transaction per call, so a failed chunk rolls back as a unit.
package postgres
