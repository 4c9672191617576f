// Package indexbuild creates the destination's search indexes.
//
// The approximate nearest-neighbour index is built under a descending ladder
// of resource budgets. A build that fails for lack of memory moves to the next
// cheaper rung; any other failure stops the ladder and is returned. When every
// rung fails the store is left without the index and similarity queries fall
// back to sequential scans, which the build result reports.
package indexbuild
