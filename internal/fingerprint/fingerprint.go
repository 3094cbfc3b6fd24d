// Package fingerprint detects duplicated code via a Rabin-Karp rolling hash
// over normalized token windows.
package fingerprint

import "strings"

// base and prime are large 64-bit-safe constants chosen to keep rolling
// hash collisions rare without overflowing uint64 arithmetic during the
// base^w term.
const (
	base  uint64 = 1000003
	prime uint64 = 1_000_000_007
)

// placeholders normalize identifiers and literals so that a renamed clone
// (same structure, different names) still fingerprints identically
// (Type-2 clone detection).
const (
	identifierPlaceholder = "\x01ID\x01"
	literalPlaceholder    = "\x01LIT\x01"
)

// Location is a single window's position within a file.
type Location struct {
	File      string
	StartLine int
	EndLine   int
	Window    int // token window size used to find this location
}

// Match is a pair of locations sharing a fingerprint.
type Match struct {
	A, B Location
}

// Token is one normalized lexical unit together with the source line it
// came from, so windows can be mapped back to line ranges.
type Token struct {
	Normalized string
	Line       int
}

// TokenClass classifies a raw token for normalization purposes.
type TokenClass int

const (
	ClassIdentifier TokenClass = iota
	ClassLiteral
	ClassOther // keywords, operators, punctuation: kept verbatim
)

// Normalize maps a raw token to its normalized form given its class.
func Normalize(raw string, class TokenClass) string {
	switch class {
	case ClassIdentifier:
		return identifierPlaceholder
	case ClassLiteral:
		return literalPlaceholder
	default:
		return raw
	}
}

// val maps a normalized token to a numeric value for the rolling hash.
// Using the polynomial rolling hash of the token's bytes keeps the
// normalization's placeholder tokens distinguishable from ClassOther
// tokens that happen to share characters.
func val(token string) uint64 {
	var h uint64
	for i := 0; i < len(token); i++ {
		h = (h*31 + uint64(token[i])) % prime
	}
	return h
}

// powBaseW returns base^w mod prime, used by the rolling step.
func powBaseW(w int) uint64 {
	result := uint64(1)
	b := base % prime
	for i := 0; i < w; i++ {
		result = (result * b) % prime
	}
	return result
}

// windowHashes computes, for every window of w consecutive tokens, the
// rolling hash of that window, using the incremental Rabin-Karp update.
func windowHashes(tokens []Token, w int) []uint64 {
	if w <= 0 || len(tokens) < w {
		return nil
	}
	n := len(tokens) - w + 1
	hashes := make([]uint64, n)

	// hash_0 = sum_{i<w} val(t_i) * base^(w-1-i) mod p
	var h uint64
	for i := 0; i < w; i++ {
		term := (val(tokens[i].Normalized) * powBaseW(w-1-i)) % prime
		h = (h + term) % prime
	}
	hashes[0] = h

	baseW := powBaseW(w)
	for k := 0; k < n-1; k++ {
		// hash_{k+1} = (hash_k*base - val(t_k)*base^w + val(t_{k+w})) mod p
		leading := (val(tokens[k].Normalized) * baseW) % prime
		shifted := (h * base) % prime
		next := (shifted + prime - leading) % prime // modular subtraction
		next = (next + val(tokens[k+w].Normalized)) % prime
		h = next % prime
		hashes[k+1] = h
	}

	return hashes
}

// Window is one fingerprinted token window ready for indexing.
type Window struct {
	Hash     uint64
	Location Location
}

// Fingerprint computes every window hash for one file's token stream.
func Fingerprint(file string, tokens []Token, w int) []Window {
	hashes := windowHashes(tokens, w)
	out := make([]Window, 0, len(hashes))
	for i, h := range hashes {
		out = append(out, Window{
			Hash: h,
			Location: Location{
				File:      file,
				StartLine: tokens[i].Line,
				EndLine:   tokens[i+w-1].Line,
				Window:    w,
			},
		})
	}
	return out
}

// FindMatches groups windows by hash and emits every cross-pair within a
// bucket, skipping same-file overlapping ranges. Hash equality is a
// candidate, not proof of a true duplicate; verify with NormalizedEqual
// before trusting a match downstream.
func FindMatches(windows []Window) []Match {
	buckets := make(map[uint64][]Location)
	for _, w := range windows {
		buckets[w.Hash] = append(buckets[w.Hash], w.Location)
	}

	var matches []Match
	for _, locs := range buckets {
		if len(locs) < 2 {
			continue
		}
		for i := 0; i < len(locs); i++ {
			for j := i + 1; j < len(locs); j++ {
				if locs[i].File == locs[j].File && overlaps(locs[i], locs[j]) {
					continue
				}
				matches = append(matches, Match{A: locs[i], B: locs[j]})
			}
		}
	}
	return matches
}

func overlaps(a, b Location) bool {
	return a.StartLine <= b.EndLine && b.StartLine <= a.EndLine
}

// NormalizedEqual verifies a hash-collision candidate by comparing the
// actual normalized token streams of the two windows, per §4.3's
// "downstream verification" step. This is implemented as a required
// verification pass, not optional, so admin-surfaced duplicate reports
// never include a hash-only false positive.
func NormalizedEqual(a, b []Token) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Normalized != b[i].Normalized {
			return false
		}
	}
	return true
}

// TokenizeForFingerprint is a minimal code-agnostic tokenizer: it splits on
// whitespace, classifies tokens as identifiers (alphabetic start),
// numeric/string literals, or "other" (operators/punctuation/keywords),
// and normalizes identifiers/literals to placeholders.
func TokenizeForFingerprint(lines []string, keywords map[string]struct{}) []Token {
	var tokens []Token
	for lineIdx, line := range lines {
		for _, raw := range splitLexemes(line) {
			class := classify(raw, keywords)
			tokens = append(tokens, Token{
				Normalized: Normalize(raw, class),
				Line:       lineIdx + 1,
			})
		}
	}
	return tokens
}

func splitLexemes(line string) []string {
	return strings.FieldsFunc(line, func(r rune) bool {
		return r == ' ' || r == '\t'
	})
}

func classify(raw string, keywords map[string]struct{}) TokenClass {
	if _, isKeyword := keywords[raw]; isKeyword {
		return ClassOther
	}
	if raw == "" {
		return ClassOther
	}
	c := raw[0]
	switch {
	case c >= '0' && c <= '9':
		return ClassLiteral
	case c == '"' || c == '\'' || c == '`':
		return ClassLiteral
	case (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_':
		return ClassIdentifier
	default:
		return ClassOther
	}
}
