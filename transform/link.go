package transform

import (
	"strings"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
)

// LinkResult is the outcome of linking one inventory unit.
type LinkResult struct {
	ProductID  *int64
	Confidence core.LinkConfidence
	Hint       string // Bracketed style hint found on the label, if any

	// NeedsReview is set when several candidates remained and the lowest
	// internal id was chosen by default.
	NeedsReview bool
}

// Linked reports whether a product was chosen.
func (r LinkResult) Linked() bool { return r.ProductID != nil }

// LinkInventory links an inventory label to one of candidates by display name.
//
// Candidates whose display name differs from the label's normalized item name
// are ignored. Zero matches leave the unit unlinked; one match links exactly.
// Among several, the lowest internal id whose normalized style key contains the
// normalized hint wins; without one the lowest internal id is chosen and flagged.
func LinkInventory(label string, candidates []core.ProductRef) LinkResult {
	hint, _ := normalize.ExtractStyleHint(label)
	res := LinkResult{Confidence: core.LinkNone, Hint: hint}

	name := normalize.ItemName(label)
	var matches []core.ProductRef
	for _, c := range candidates {
		if c.DisplayName == name {
			matches = append(matches, c)
		}
	}

	switch len(matches) {
	case 0:
		return res
	case 1:
		res.ProductID = idPtr(matches[0].InternalID)
		res.Confidence = core.LinkExact
		return res
	}

	if key, ok := normalize.StyleKey(hint); ok {
		if best, found := lowest(matches, func(c core.ProductRef) bool {
			return c.StyleKeyNormalized != nil && strings.Contains(*c.StyleKeyNormalized, key)
		}); found {
			res.ProductID = idPtr(best.InternalID)
			res.Confidence = core.LinkHinted
			return res
		}
	}

	best, _ := lowest(matches, func(core.ProductRef) bool { return true })
	res.ProductID = idPtr(best.InternalID)
	res.Confidence = core.LinkAmbiguous
	res.NeedsReview = true
	return res
}

// PlatformIDIndex resolves platform-native product ids to internal ids.
type PlatformIDIndex struct {
	StockX map[string]int64
	Alias  map[string]int64
}

// LinkByPlatformID links a unit through the product ids it carries:
// StockX first, then Alias.
func LinkByPlatformID(u core.InventoryUnit, idx PlatformIDIndex) LinkResult {
	if id, ok := idx.StockX[u.StockXProductID]; ok && u.StockXProductID != "" {
		return LinkResult{ProductID: idPtr(id), Confidence: core.LinkPlatformID}
	}
	if id, ok := idx.Alias[u.AliasCatalogID]; ok && u.AliasCatalogID != "" {
		return LinkResult{ProductID: idPtr(id), Confidence: core.LinkPlatformID}
	}
	return LinkResult{Confidence: core.LinkNone}
}

// Apply records the result on a unit.
func (r LinkResult) Apply(u *core.InventoryUnit) {
	u.LinkedProductID = r.ProductID
	u.LinkConfidence = r.Confidence
}

func lowest(refs []core.ProductRef, keep func(core.ProductRef) bool) (core.ProductRef, bool) {
	var best core.ProductRef
	found := false
	for _, r := range refs {
		if !keep(r) {
			continue
		}
		if !found || r.InternalID < best.InternalID {
			best, found = r, true
		}
	}
	return best, found
}

func idPtr(id int64) *int64 { return &id }
