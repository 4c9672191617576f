package search

import "github.com/poiesic/catalogsync/core"

// SearchMonitor receives callbacks at each stage of a search.
type SearchMonitor interface {
	Start(query string)
	AfterNearestProducts(hits []core.ScoredProduct)
	VerbatimHit(product core.ProductRef)
	Finish(results []*Result)
}

type noopMonitor struct{}

func (n *noopMonitor) Start(_ string)                              {}
func (n *noopMonitor) AfterNearestProducts(_ []core.ScoredProduct) {}
func (n *noopMonitor) VerbatimHit(_ core.ProductRef)               {}
func (n *noopMonitor) Finish(_ []*Result)                          {}
