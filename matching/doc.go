// Package matching reconciles secondary-platform products with primary-platform
// products.
//
// Reconciliation runs in two passes. The exact pass joins products on their
// normalized style keys; composite keys join on any shared component. The
// similarity pass compares the vectors of products still unmatched against
// every primary vector through a CandidateIndex and accepts the best candidate
// at or above the threshold. Finally exactly one mapping per target is marked
// default: the highest confidence, ties to the earliest mapping.
package matching
