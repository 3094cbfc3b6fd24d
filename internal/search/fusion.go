// Package search implements the hybrid vector+BM25 search engine.
package search

import "sort"

// Candidate is one item to be scored and fused; both component scores
// are populated before Fuse is called.
type Candidate struct {
	ID        string
	VectorRaw float64
	BM25Raw   float64
	Metadata  map[string]string
}

// Fused is a single fused-and-ranked result.
type Fused struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Fuse implements the hybrid fusion step: both component scores are
// min-max normalized over the candidate set, then combined as
// alpha*normalized(vector) + (1-alpha)*normalized(bm25). With fewer than
// two candidates, normalization is skipped — there is nothing to spread
// across a [0,1] range — and raw scores are used directly. Raw and
// normalized scores are never mixed in the same sum.
func Fuse(candidates []Candidate, alpha float64) []Fused {
	if len(candidates) == 0 {
		return nil
	}

	vecScores := make([]float64, len(candidates))
	bmScores := make([]float64, len(candidates))
	for i, c := range candidates {
		vecScores[i] = c.VectorRaw
		bmScores[i] = c.BM25Raw
	}

	normVec, normBM := vecScores, bmScores
	if len(candidates) >= 2 {
		normVec = minMaxNormalize(vecScores)
		normBM = minMaxNormalize(bmScores)
	}

	out := make([]Fused, len(candidates))
	for i, c := range candidates {
		out[i] = Fused{
			ID:       c.ID,
			Score:    alpha*normVec[i] + (1-alpha)*normBM[i],
			Metadata: c.Metadata,
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// minMaxNormalize rescales values into [0,1]. A zero-span input (every
// value equal) maps everything to 0 — there is no ranking signal to
// preserve.
func minMaxNormalize(values []float64) []float64 {
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	out := make([]float64, len(values))
	span := hi - lo
	if span == 0 {
		return out
	}
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out
}
