package matching

import "github.com/poiesic/catalogsync/core"

// SelectDefaults picks one mapping per target product: the highest confidence
// score, then an exact key match over a similarity match (a similarity of
// 0.995 or more rounds to 1.00), then the lowest mapping id. It returns the
// chosen mapping ids in input order.
func SelectDefaults(mappings []core.ProductMapping) []int64 {
	best := make(map[int64]core.ProductMapping, len(mappings))
	for _, m := range mappings {
		cur, ok := best[m.TargetProductID]
		if !ok || preferred(m, cur) {
			best[m.TargetProductID] = m
		}
	}
	ids := make([]int64, 0, len(best))
	for _, m := range mappings {
		if b := best[m.TargetProductID]; b.MappingID == m.MappingID {
			ids = append(ids, m.MappingID)
		}
	}
	return ids
}

// preferred reports whether m ranks above cur as a target's default.
func preferred(m, cur core.ProductMapping) bool {
	if m.ConfidenceScore != cur.ConfidenceScore {
		return m.ConfidenceScore > cur.ConfidenceScore
	}
	mExact, curExact := m.Method == core.MethodExactKey, cur.Method == core.MethodExactKey
	if mExact != curExact {
		return mExact
	}
	return m.MappingID < cur.MappingID
}
