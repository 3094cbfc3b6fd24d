// Package bm25 implements Okapi BM25 scoring over a corpus of documents,
// plus an optional Bleve-backed index for larger corpora.
package bm25

import (
	"regexp"
	"strings"
)

// DefaultMinTokenLen is the default minimum token length kept by Tokenize.
const DefaultMinTokenLen = 2

var splitRegex = regexp.MustCompile(`[a-zA-Z0-9_]+`)

// Tokenize lowercases text and splits on non-alphanumeric characters,
// retaining underscores, then drops tokens shorter than minLen. It is
// deterministic and allocation-conservative: tokens are extracted with a
// single regex pass rather than per-rune scanning.
func Tokenize(text string, minLen int) []string {
	if minLen <= 0 {
		minLen = DefaultMinTokenLen
	}
	matches := splitRegex.FindAllString(text, -1)
	tokens := make([]string, 0, len(matches))
	for _, m := range matches {
		lower := strings.ToLower(m)
		if len(lower) >= minLen {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}
