package normalize

import (
	"strings"
	"unicode"
)

// CompositeSeparator splits multi-SKU composite style identifiers (e.g. "W/DM0807-160").
const CompositeSeparator = "/"

// MinComponentLength is the shortest component of a composite key that takes part
// in matching. Shorter components are prefixes such as "W" and would equate
// unrelated products.
const MinComponentLength = 4

// StyleKey normalizes a platform-native style identifier or SKU.
// Hyphens, underscores and whitespace are removed, letters are uppercased and
// leading zeros are stripped (an all-zero value becomes "0"). Forward slashes are
// kept as component separators and each component is normalized on its own.
// Returns false when nothing remains.
func StyleKey(raw string) (string, bool) {
	if strings.TrimSpace(raw) == "" {
		return "", false
	}

	parts := strings.Split(raw, CompositeSeparator)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if c := normalizeComponent(part); c != "" {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		return "", false
	}
	return strings.Join(out, CompositeSeparator), true
}

// StyleKeyPtr is StyleKey for nullable values.
func StyleKeyPtr(raw *string) *string {
	if raw == nil {
		return nil
	}
	key, ok := StyleKey(*raw)
	if !ok {
		return nil
	}
	return &key
}

func normalizeComponent(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r == '-' || r == '_' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	c := b.String()
	if c == "" {
		return ""
	}
	trimmed := strings.TrimLeft(c, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}

// StyleKeyComponents splits a normalized key into its distinct components, in order.
func StyleKeyComponents(key string) []string {
	if key == "" {
		return nil
	}
	parts := strings.Split(key, CompositeSeparator)
	seen := make(map[string]struct{}, len(parts))
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// MatchKeys returns the components of a normalized key that participate in exact
// matching. A non-composite key always matches on itself; composite keys drop
// components shorter than MinComponentLength.
func MatchKeys(key string) []string {
	comps := StyleKeyComponents(key)
	if len(comps) <= 1 {
		return comps
	}
	out := comps[:0:0]
	for _, c := range comps {
		if len(c) >= MinComponentLength {
			out = append(out, c)
		}
	}
	return out
}
