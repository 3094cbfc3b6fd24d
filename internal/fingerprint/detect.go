package fingerprint

import (
	"sort"
	"strconv"
)

// StoredChunk is the subset of a vector's metadata duplication detection
// needs, kept independent of any particular vector store so this package
// never imports one.
type StoredChunk struct {
	FilePath  string
	Content   string
	StartLine int
}

// DetectDuplicates runs the full §4.3 pipeline over a collection's stored
// chunks: tokenize each chunk, fingerprint every window of w tokens,
// group by hash, and verify each hash-collision candidate by comparing
// normalized token streams before returning it. Only verified matches
// are returned.
func DetectDuplicates(chunks []StoredChunk, w int) []Match {
	var allWindows []Window
	tokensByFile := make(map[string][]Token)

	for _, c := range chunks {
		tokens := tokenizeChunk(c)
		tokensByFile[windowKey(c)] = tokens
		allWindows = append(allWindows, Fingerprint(windowKey(c), tokens, w)...)
	}

	candidates := FindMatches(allWindows)

	verified := make([]Match, 0, len(candidates))
	for _, m := range candidates {
		aTokens := tokensInRange(tokensByFile[m.A.File], m.A)
		bTokens := tokensInRange(tokensByFile[m.B.File], m.B)
		if NormalizedEqual(aTokens, bTokens) {
			verified = append(verified, m)
		}
	}

	sort.Slice(verified, func(i, j int) bool {
		if verified[i].A.File != verified[j].A.File {
			return verified[i].A.File < verified[j].A.File
		}
		return verified[i].A.StartLine < verified[j].A.StartLine
	})

	return verified
}

// windowKey disambiguates chunks from the same file by anchoring the
// fingerprinted "file" identity to file path + starting line, since a
// file is indexed as many independently-fingerprinted chunks.
func windowKey(c StoredChunk) string {
	return c.FilePath + "#" + strconv.Itoa(c.StartLine)
}

func tokenizeChunk(c StoredChunk) []Token {
	lines := splitLines(c.Content)
	tokens := TokenizeForFingerprint(lines, commonKeywords)
	for i := range tokens {
		tokens[i].Line += c.StartLine - 1
	}
	return tokens
}

func splitLines(content string) []string {
	var lines []string
	start := 0
	for i := 0; i < len(content); i++ {
		if content[i] == '\n' {
			lines = append(lines, content[start:i])
			start = i + 1
		}
	}
	lines = append(lines, content[start:])
	return lines
}

// tokensInRange slices the token stream for a file down to the window a
// Location names, by line range. Used to re-derive the exact token
// sequence a Match's Location covers, for NormalizedEqual verification.
func tokensInRange(tokens []Token, loc Location) []Token {
	var out []Token
	for _, t := range tokens {
		if t.Line >= loc.StartLine && t.Line <= loc.EndLine {
			out = append(out, t)
		}
	}
	return out
}

// commonKeywords covers keywords shared across the C-family languages the
// chunker targets, enough to keep them out of the identifier/literal
// placeholder classes during normalization.
var commonKeywords = map[string]struct{}{
	"func": {}, "func(": {}, "return": {}, "if": {}, "else": {}, "for": {},
	"while": {}, "switch": {}, "case": {}, "break": {}, "continue": {},
	"struct": {}, "interface": {}, "class": {}, "def": {}, "import": {},
	"package": {}, "var": {}, "const": {}, "let": {}, "type": {}, "map": {},
	"range": {}, "go": {}, "chan": {}, "select": {}, "defer": {}, "nil": {},
	"null": {}, "true": {}, "false": {}, "public": {}, "private": {},
	"static": {}, "void": {}, "new": {},
}
