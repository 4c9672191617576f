package migrate

import (
	"github.com/poiesic/catalogsync/storage"
)

// Phase is one pass of the product migration.
type Phase int

const (
	// PhasePriority migrates products referenced by inventory labels.
	PhasePriority Phase = iota + 1
	// PhaseStyled migrates the remaining products with a style id.
	PhaseStyled
	// PhaseRemainder migrates products without a style id.
	PhaseRemainder
)

// Phases lists every phase in execution order.
var Phases = []Phase{PhasePriority, PhaseStyled, PhaseRemainder}

func (p Phase) String() string {
	switch p {
	case PhasePriority:
		return "priority"
	case PhaseStyled:
		return "styled"
	case PhaseRemainder:
		return "remainder"
	}
	return "unknown"
}

// Scope returns the source scope a phase reads.
func (p Phase) Scope() storage.SourceScope {
	switch p {
	case PhasePriority:
		return storage.ScopeInventoryReferenced
	case PhaseStyled:
		return storage.ScopeStyled
	case PhaseRemainder:
		return storage.ScopeUnstyled
	}
	return storage.ScopeAll
}
