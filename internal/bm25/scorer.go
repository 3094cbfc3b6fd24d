package bm25

import "math"

// Config tunes the BM25 scoring function.
type Config struct {
	K1          float64
	B           float64
	MinTokenLen int
}

// DefaultConfig returns suggested defaults.
func DefaultConfig() Config {
	return Config{K1: 1.2, B: 0.75, MinTokenLen: DefaultMinTokenLen}
}

// Document is the minimal shape Scorer needs: an identity and text content.
// Callers typically pass a chunk's ID and Content.
type Document struct {
	ID      string
	Content string
}

// Scorer holds per-corpus statistics (document frequency, average document
// length) derived from a snapshot of documents, and scores individual
// documents against a query using those statistics (spec's BM25Scorer).
//
// A Scorer is a derived view: it must be rebuilt whenever the underlying
// document set changes, it is not kept incrementally in sync.
type Scorer struct {
	cfg          Config
	documentFreq map[string]int
	totalDocs    int
	avgDocLen    float64
}

// NewScorer creates an empty Scorer; call Build before scoring.
func NewScorer(cfg Config) *Scorer {
	if cfg.K1 == 0 {
		cfg.K1 = DefaultConfig().K1
	}
	if cfg.B == 0 {
		cfg.B = DefaultConfig().B
	}
	if cfg.MinTokenLen <= 0 {
		cfg.MinTokenLen = DefaultMinTokenLen
	}
	return &Scorer{cfg: cfg, documentFreq: make(map[string]int)}
}

// Build recomputes document frequency and average document length from
// docs. It is safe to call repeatedly as the corpus changes; each call
// fully replaces the prior statistics.
func (s *Scorer) Build(docs []Document) {
	df := make(map[string]int, len(docs))
	var totalLen int
	for _, d := range docs {
		tokens := Tokenize(d.Content, s.cfg.MinTokenLen)
		totalLen += len(tokens)
		seen := make(map[string]struct{}, len(tokens))
		for _, t := range tokens {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}
	s.documentFreq = df
	s.totalDocs = len(docs)
	if len(docs) > 0 {
		s.avgDocLen = float64(totalLen) / float64(len(docs))
	} else {
		s.avgDocLen = 0
	}
}

// idf computes the inverse document frequency for a single term against the
// statistics currently held by s. A single-document corpus collapses IDF to
// 1.0 so scores stay positive and usable.
func (s *Scorer) idf(term string) float64 {
	if s.totalDocs <= 1 {
		return 1.0
	}
	df := float64(s.documentFreq[term])
	n := float64(s.totalDocs)
	return math.Log((n-df+0.5)/(df+0.5) + 1e-12)
}

// Score computes the Okapi BM25 score of doc against query, using the
// corpus statistics from the last Build call.
func (s *Scorer) Score(doc Document, query string) float32 {
	queryTerms := Tokenize(query, s.cfg.MinTokenLen)
	if len(queryTerms) == 0 {
		return 0
	}
	if s.avgDocLen == 0 {
		return 0
	}

	docTokens := Tokenize(doc.Content, s.cfg.MinTokenLen)
	if len(docTokens) == 0 {
		return 0
	}

	tf := make(map[string]int, len(docTokens))
	for _, t := range docTokens {
		tf[t]++
	}
	docLen := float64(len(docTokens))

	var score float64
	for _, term := range queryTerms {
		termFreq, present := tf[term]
		if !present {
			continue
		}
		idf := s.idf(term)
		numerator := float64(termFreq) * (s.cfg.K1 + 1)
		denominator := float64(termFreq) + s.cfg.K1*(1-s.cfg.B+s.cfg.B*docLen/s.avgDocLen)
		score += idf * (numerator / denominator)
	}
	return float32(score)
}

// ScoreBatch scores every document in docs against query, preserving order.
func (s *Scorer) ScoreBatch(docs []Document, query string) []float32 {
	out := make([]float32, len(docs))
	for i, d := range docs {
		out[i] = s.Score(d, query)
	}
	return out
}
