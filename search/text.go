package search

import (
	"strings"

	"github.com/poiesic/catalogsync/core"
	"github.com/poiesic/catalogsync/normalize"
)

// noiseWords say nothing about which product a listing is.
var noiseWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "of": true, "for": true,
	"with": true, "in": true, "by": true,
	"new": true, "ds": true, "vnds": true, "authentic": true, "brand": true,
	"size": true, "sz": true, "us": true, "uk": true, "eu": true,
	"shoe": true, "shoes": true, "sneaker": true, "sneakers": true, "pair": true,
}

// tokenize applies the query normalization rules and drops noise words.
func tokenize(text string) []string {
	words := strings.Fields(normalize.QueryText(text))
	out := words[:0]
	for _, w := range words {
		if !noiseWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// matchesVerbatim reports whether every meaningful query term appears in the
// product's name. A query field such as "dd1391-100" that normalizes to one of
// the product's style key components counts as a match before it is split
// into words.
func matchesVerbatim(p core.ProductRef, query string) bool {
	name := make(map[string]bool)
	for _, w := range tokenize(p.DisplayName) {
		name[w] = true
	}
	styles := make(map[string]bool)
	if p.StyleKeyNormalized != nil {
		for _, c := range normalize.MatchKeys(*p.StyleKeyNormalized) {
			styles[c] = true
		}
	}

	terms := 0
	for _, field := range strings.Fields(query) {
		if key, ok := normalize.StyleKey(field); ok && styles[key] {
			terms++
			continue
		}
		for _, w := range tokenize(field) {
			if !name[w] {
				return false
			}
			terms++
		}
	}
	return terms > 0
}
