package normalize

import (
	"regexp"
	"strings"
)

// EmbeddingFormatVersion tags every vector with the text format that produced it.
// Changing BuildEmbeddingText requires bumping this and regenerating all vectors.
const EmbeddingFormatVersion = "v1"

// EmbeddingDelimiter separates the style prefix from the product name.
const EmbeddingDelimiter = " | "

var (
	bracketToken   = regexp.MustCompile(`\[([^\]]+)\]`)
	bracketAny     = regexp.MustCompile(`\[[^\]]*\]`)
	womensAbbrev   = regexp.MustCompile(`(?i)\bwmns\b|\(w\)`)
	textStripChars = strings.NewReplacer(
		"-", " ",
		"_", " ",
		"(", "",
		")", "",
		"'", "",
		`"`, "",
	)
)

// BuildEmbeddingText returns the exact string sent to the embedding provider.
//
// Format (EmbeddingFormatVersion "v1"):
//   - lowercase
//   - "wmns" and "(w)" expand to "womens" before punctuation is stripped
//   - hyphens and underscores become spaces; parentheses and straight quotes are removed
//   - whitespace is collapsed
//   - with a style key: "<components joined by space> | <name>"
func BuildEmbeddingText(displayName string, styleKeyRaw *string) string {
	name := cleanText(displayName)

	if styleKeyRaw == nil {
		return name
	}
	key, ok := StyleKey(*styleKeyRaw)
	if !ok {
		return name
	}

	prefix := strings.ToLower(strings.Join(StyleKeyComponents(key), " "))
	if name == "" {
		return prefix
	}
	return prefix + EmbeddingDelimiter + name
}

// QueryText normalizes a free-text search query with the embedding text rules.
func QueryText(q string) string {
	return cleanText(q)
}

func cleanText(s string) string {
	s = strings.ToLower(s)
	s = womensAbbrev.ReplaceAllString(s, "womens")
	s = textStripChars.Replace(s)
	return collapseSpaces(s)
}

// DisplayName returns the stored form of a product name: uppercased with
// collapsed whitespace.
func DisplayName(name string) string {
	return collapseSpaces(strings.ToUpper(name))
}

// ItemName normalizes an inventory item label for a display-name join:
// bracketed tokens are removed, then DisplayName rules apply.
func ItemName(label string) string {
	return DisplayName(bracketAny.ReplaceAllString(label, " "))
}

// ExtractStyleHint returns the first bracketed token of an inventory label.
func ExtractStyleHint(label string) (string, bool) {
	m := bracketToken.FindStringSubmatch(label)
	if m == nil {
		return "", false
	}
	hint := strings.TrimSpace(m[1])
	return hint, hint != ""
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
